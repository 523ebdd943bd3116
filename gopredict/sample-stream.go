package gopredict

// SampleStream carries samples from a producer goroutine to a single consumer.
// Ownership of each Sample travels through the channel.
type SampleStream struct {
	Outlet chan *Sample
	err    error
}

func NewSampleStream() *SampleStream {
	stream := &SampleStream{
		Outlet: make(chan *Sample, 16),
	}
	return stream
}

// CloseWithError records err (which may be nil) and closes the outlet.
// Only the producer may call this, exactly once.
func (stream *SampleStream) CloseWithError(err error) {
	stream.err = err
	if stream.Outlet != nil {
		close(stream.Outlet)
	}
}

func (stream *SampleStream) Close() {
	stream.CloseWithError(nil)
}

// Err returns the error the producer stopped with.  Only valid once Outlet has been drained.
func (stream *SampleStream) Err() error {
	return stream.err
}

func (stream *SampleStream) PushSample(s *Sample) {
	stream.Outlet <- s
}

// PullAll drains the stream, returning the number of samples discarded.
func (stream *SampleStream) PullAll() int {
	count := int(0)
	for range stream.Outlet {
		count++
	}
	return count
}
