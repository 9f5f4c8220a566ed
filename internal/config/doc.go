// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Defaults are applied for every optional field, so a minimal file only names
// the instance and the streams to open at startup.
package config
