package core

import "time"

// Recorder receives session and store measurements from middleware.
type Recorder interface {
	// SessionStarted counts a session start written to the store.
	SessionStarted(connector string, dir Direction)
	// SessionClosed counts a session close. matched reports whether a start
	// record was found; dur is only meaningful when it was.
	SessionClosed(connector string, dir Direction, matched bool, dur time.Duration)
	// StoreCall observes a single key-value store operation.
	StoreCall(op string, dur time.Duration, err error)
}

// NoOpRecorder discards all measurements.
type NoOpRecorder struct{}

// SessionStarted implements Recorder.
func (NoOpRecorder) SessionStarted(string, Direction) {}

// SessionClosed implements Recorder.
func (NoOpRecorder) SessionClosed(string, Direction, bool, time.Duration) {}

// StoreCall implements Recorder.
func (NoOpRecorder) StoreCall(string, time.Duration, error) {}
