package core

import "sync/atomic"

// Recorder receives diagnostic counters from the core.
// Implementations must be safe for concurrent use.
type Recorder interface {
	EventDropped()
	MessagePosted()
	ConnectionOpened()
	ConnectionClosed()
	ChannelCreated()
	ChannelRemoved()
}

type nopRecorder struct{}

func (nopRecorder) EventDropped()     {}
func (nopRecorder) MessagePosted()    {}
func (nopRecorder) ConnectionOpened() {}
func (nopRecorder) ConnectionClosed() {}
func (nopRecorder) ChannelCreated()   {}
func (nopRecorder) ChannelRemoved()   {}

// tally keeps the hub-wide totals reported by Hub.Stats and forwards
// everything to the configured Recorder.
type tally struct {
	Recorder
	dropped atomic.Uint64
}

func newTally(rec Recorder) *tally {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &tally{Recorder: rec}
}

func (t *tally) EventDropped() {
	t.dropped.Add(1)
	t.Recorder.EventDropped()
}
