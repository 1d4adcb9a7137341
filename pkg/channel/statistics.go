package channel

import "sync/atomic"

// Statistics tracks channel-level statistics
type Statistics struct {
	// Frame statistics
	numFramesTx  uint64
	numFramesRx  uint64
	numBadFrames uint64

	// Handler statistics
	numUnroutedFrames uint64
	numActiveHandlers uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

// FrameTx increments transmitted frames
func (s *Statistics) FrameTx() {
	atomic.AddUint64(&s.numFramesTx, 1)
}

// FrameRx increments received frames
func (s *Statistics) FrameRx() {
	atomic.AddUint64(&s.numFramesRx, 1)
}

// BadFrame increments malformed records
func (s *Statistics) BadFrame() {
	atomic.AddUint64(&s.numBadFrames, 1)
}

// UnroutedFrame increments frames with no registered handler
func (s *Statistics) UnroutedFrame() {
	atomic.AddUint64(&s.numUnroutedFrames, 1)
}

// SetActiveHandlers sets the number of registered handlers
func (s *Statistics) SetActiveHandlers(count uint64) {
	atomic.StoreUint64(&s.numActiveHandlers, count)
}

// GetFramesTx returns transmitted frames
func (s *Statistics) GetFramesTx() uint64 {
	return atomic.LoadUint64(&s.numFramesTx)
}

// GetFramesRx returns received frames
func (s *Statistics) GetFramesRx() uint64 {
	return atomic.LoadUint64(&s.numFramesRx)
}

// GetBadFrames returns malformed records
func (s *Statistics) GetBadFrames() uint64 {
	return atomic.LoadUint64(&s.numBadFrames)
}

// GetUnroutedFrames returns frames with no registered handler
func (s *Statistics) GetUnroutedFrames() uint64 {
	return atomic.LoadUint64(&s.numUnroutedFrames)
}

// GetActiveHandlers returns number of registered handlers
func (s *Statistics) GetActiveHandlers() uint64 {
	return atomic.LoadUint64(&s.numActiveHandlers)
}

// Reset resets all statistics
func (s *Statistics) Reset() {
	atomic.StoreUint64(&s.numFramesTx, 0)
	atomic.StoreUint64(&s.numFramesRx, 0)
	atomic.StoreUint64(&s.numBadFrames, 0)
	atomic.StoreUint64(&s.numUnroutedFrames, 0)
}
