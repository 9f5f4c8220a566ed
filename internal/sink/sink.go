package sink

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/rickgao/marketstream/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrSinkClosed is returned by Deliver after a sink has been closed.
var ErrSinkClosed = errors.New("sink closed")

// Sink receives normalized messages from a stream supervisor.
//
// Deliver must be safe for concurrent use and must not block indefinitely;
// a supervisor calls it from its receive loop for every message.
type Sink interface {
	Deliver(msg *model.NormalizedMessage) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg *model.NormalizedMessage) error

// Deliver calls f(msg).
func (f SinkFunc) Deliver(msg *model.NormalizedMessage) error {
	return f(msg)
}

// MultiSink returns a sink that delivers each message to all of the given
// sinks in order. Every sink sees every message even when an earlier sink
// fails; the joined errors are returned.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, len(sinks))
	copy(out, sinks)
	return out
}

type multiSink []Sink

func (m multiSink) Deliver(msg *model.NormalizedMessage) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
