package node

import (
	"sync"

	"cantp/isotp-go/pkg/can"
	"cantp/isotp-go/internal/logger"
	"cantp/isotp-go/pkg/isotp"
)

// PayloadHandler is called with each completed payload
type PayloadHandler func(payload []byte)

// ErrorHandler is called when a transfer fails
type ErrorHandler func(err error)

// Receiver reassembles ISO-TP transfers arriving on one CAN identifier.
//
// A fresh TransportDecoder is constructed for every transfer; after a
// completed or failed transfer the instance is discarded, per the decoder's
// one-instance-per-transfer contract. A Consecutive frame with no transfer
// in progress is dropped, and the receiver resynchronizes on the next
// Single or First frame.
type Receiver struct {
	id     uint32
	config isotp.Config
	logger logger.Logger
	stats  *isotp.Statistics

	onPayload PayloadHandler
	onError   ErrorHandler

	// In-progress transfer; nil when idle
	decoder *isotp.TransportDecoder
	mu      sync.Mutex
}

// NewReceiver creates a receiver for transfers on the given identifier
func NewReceiver(id uint32, config isotp.Config, log logger.Logger) *Receiver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Receiver{
		id:     id,
		config: config,
		logger: log,
		stats:  isotp.NewStatistics(),
	}
}

// OnPayload sets the completed-payload callback
func (r *Receiver) OnPayload(handler PayloadHandler) {
	r.onPayload = handler
}

// OnError sets the failed-transfer callback
func (r *Receiver) OnError(handler ErrorHandler) {
	r.onError = handler
}

// CANID implements channel.Handler
func (r *Receiver) CANID() uint32 {
	return r.id
}

// OnFrame implements channel.Handler. Frames must be delivered one at a
// time in arrival order; the bus read loop guarantees this.
func (r *Receiver) OnFrame(frame *can.Frame) error {
	if frame.RTR {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.EnableStatistics {
		r.stats.IncrementRxFrames()
	}

	frameType := isotp.FrameTypeOf(frame.Data[0])

	if r.decoder == nil {
		switch frameType {
		case isotp.FrameTypeSingle, isotp.FrameTypeFirst:
			decoder, err := isotp.NewTransportDecoder(r.config.MaxTransferSize)
			if err != nil {
				return err
			}
			r.decoder = decoder
		case isotp.FrameTypeConsecutive:
			// Stray continuation after an error or restart; wait for the
			// next transfer to resynchronize
			r.logger.Debug("Receiver %X: dropping stray consecutive frame", r.id)
			return nil
		case isotp.FrameTypeFlowControl:
			return nil
		}
	}

	size, done, err := r.decoder.Update(&frame.Data)
	if err != nil {
		// The transfer is dead; discard the instance and report
		r.decoder = nil
		r.recordError(err)
		r.logger.Warn("Receiver %X: transfer failed: %v", r.id, err)
		if r.onError != nil {
			r.onError(err)
		}
		return err
	}

	if done {
		data, _ := r.decoder.Data()
		payload := make([]byte, size)
		copy(payload, data)
		r.decoder = nil

		if r.config.EnableStatistics {
			r.stats.IncrementRxTransfers()
		}
		r.logger.Debug("Receiver %X: completed %d byte transfer", r.id, size)
		if r.onPayload != nil {
			r.onPayload(payload)
		}
	}

	return nil
}

// Reassembling returns true if a transfer is in progress
func (r *Receiver) Reassembling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decoder != nil
}

// Abort discards any in-progress transfer. The next Single or First frame
// starts a new one.
func (r *Receiver) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoder = nil
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats() *isotp.Statistics {
	return r.stats
}

// recordError updates error statistics for a failed transfer
func (r *Receiver) recordError(err error) {
	if !r.config.EnableStatistics {
		return
	}
	switch err.(type) {
	case *isotp.MissedFrameError:
		r.stats.IncrementMissedFrames()
	case *isotp.OverflowError, *isotp.BufferTooSmallError:
		r.stats.IncrementBufferOverflows()
	}
}
