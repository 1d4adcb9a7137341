package isotp

import (
	"sync/atomic"
	"time"
)

// Statistics tracks transfer-level metrics
type Statistics struct {
	// Frame counts
	TxFrames uint64
	RxFrames uint64

	// Transfer counts
	TxTransfers uint64
	RxTransfers uint64

	// Error counts
	MissedFrames    uint64
	BufferOverflows uint64

	// Timing (stored as Unix nano for atomic operations)
	lastTxTimeNano int64
	lastRxTimeNano int64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

// IncrementTxFrames increments transmitted frame count
func (s *Statistics) IncrementTxFrames() {
	atomic.AddUint64(&s.TxFrames, 1)
}

// IncrementRxFrames increments received frame count
func (s *Statistics) IncrementRxFrames() {
	atomic.AddUint64(&s.RxFrames, 1)
}

// IncrementTxTransfers increments completed outbound transfer count
func (s *Statistics) IncrementTxTransfers() {
	atomic.AddUint64(&s.TxTransfers, 1)
	atomic.StoreInt64(&s.lastTxTimeNano, time.Now().UnixNano())
}

// IncrementRxTransfers increments completed inbound transfer count
func (s *Statistics) IncrementRxTransfers() {
	atomic.AddUint64(&s.RxTransfers, 1)
	atomic.StoreInt64(&s.lastRxTimeNano, time.Now().UnixNano())
}

// IncrementMissedFrames increments sequence error count
func (s *Statistics) IncrementMissedFrames() {
	atomic.AddUint64(&s.MissedFrames, 1)
}

// IncrementBufferOverflows increments buffer overflow count
func (s *Statistics) IncrementBufferOverflows() {
	atomic.AddUint64(&s.BufferOverflows, 1)
}

// GetTxFrames returns transmitted frame count
func (s *Statistics) GetTxFrames() uint64 {
	return atomic.LoadUint64(&s.TxFrames)
}

// GetRxFrames returns received frame count
func (s *Statistics) GetRxFrames() uint64 {
	return atomic.LoadUint64(&s.RxFrames)
}

// GetTxTransfers returns completed outbound transfer count
func (s *Statistics) GetTxTransfers() uint64 {
	return atomic.LoadUint64(&s.TxTransfers)
}

// GetRxTransfers returns completed inbound transfer count
func (s *Statistics) GetRxTransfers() uint64 {
	return atomic.LoadUint64(&s.RxTransfers)
}

// GetMissedFrames returns sequence error count
func (s *Statistics) GetMissedFrames() uint64 {
	return atomic.LoadUint64(&s.MissedFrames)
}

// GetBufferOverflows returns buffer overflow count
func (s *Statistics) GetBufferOverflows() uint64 {
	return atomic.LoadUint64(&s.BufferOverflows)
}

// GetLastTxTime returns the last transmission time
func (s *Statistics) GetLastTxTime() time.Time {
	nano := atomic.LoadInt64(&s.lastTxTimeNano)
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano)
}

// GetLastRxTime returns the last reception time
func (s *Statistics) GetLastRxTime() time.Time {
	nano := atomic.LoadInt64(&s.lastRxTimeNano)
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano)
}

// Reset resets all statistics to zero
func (s *Statistics) Reset() {
	atomic.StoreUint64(&s.TxFrames, 0)
	atomic.StoreUint64(&s.RxFrames, 0)
	atomic.StoreUint64(&s.TxTransfers, 0)
	atomic.StoreUint64(&s.RxTransfers, 0)
	atomic.StoreUint64(&s.MissedFrames, 0)
	atomic.StoreUint64(&s.BufferOverflows, 0)
	atomic.StoreInt64(&s.lastTxTimeNano, 0)
	atomic.StoreInt64(&s.lastRxTimeNano, 0)
}
