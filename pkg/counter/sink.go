package counter

// Sink receives rendered counts. Only the last write is meaningful.
type Sink interface {
	WriteCount(count int64)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(count int64)

// WriteCount calls f(count).
func (f SinkFunc) WriteCount(count int64) { f(count) }

type discardSink struct{}

func (discardSink) WriteCount(int64) {}
