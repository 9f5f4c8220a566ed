// Package sink delivers normalized messages to consumers.
//
// A stream supervisor pushes every NormalizedMessage into one Sink. The
// in-process BufferSink queues messages on a growable ring buffer so a slow
// consumer never stalls a receive loop; NATSSink and KafkaSink publish
// messages to external brokers for out-of-process consumers. MultiSink
// composes several of these behind one Sink.
package sink
