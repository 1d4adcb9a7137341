package isotp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCapacity is returned when a decoder is constructed with a
	// capacity outside 1..MaxBytesPerTransfer
	ErrInvalidCapacity = errors.New("invalid decoder capacity")

	// ErrTransferTooLarge is returned when a payload exceeds the 12-bit
	// transfer length ceiling
	ErrTransferTooLarge = errors.New("payload exceeds maximum transfer length")
)

// OverflowError indicates a Single frame declared more payload than one
// frame can carry
type OverflowError struct {
	Length uint16 // Declared payload length
	Limit  uint16 // Per-frame payload maximum
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("received more data (%d) than expected (%d)", e.Length, e.Limit)
}

// MissedFrameError indicates a sequence discontinuity in Consecutive frames
type MissedFrameError struct {
	Expected uint8 // Required sequence index
	Actual   uint8 // Index the frame presented
}

func (e *MissedFrameError) Error() string {
	return fmt.Sprintf("missed frame; expected index %d, received index %d", e.Expected, e.Actual)
}

// BufferTooSmallError indicates a declared transfer length exceeds the
// decoder's fixed capacity
type BufferTooSmallError struct {
	Capacity uint16 // Decoder buffer capacity
	Length   uint16 // Declared transfer length
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("internal buffer (%d) is smaller than expected transfer length (%d)", e.Capacity, e.Length)
}

// InvalidLengthError indicates a First frame declared a total length below
// the multi-frame minimum. Such payloads must be sent as a Single frame.
type InvalidLengthError struct {
	Length uint16 // Declared transfer length
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("first frame declares %d bytes; transfers below %d bytes must use a single frame", e.Length, MinFirstFrameLength)
}
