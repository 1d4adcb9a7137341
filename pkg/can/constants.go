package can

import "errors"

// Classic CAN Constants

// Identifier limits
const (
	MaxStdID uint32 = 0x7FF      // Maximum 11-bit standard identifier
	MaxExtID uint32 = 0x1FFFFFFF // Maximum 29-bit extended identifier
)

// Frame sizes
const (
	MaxDataLen = 8  // Maximum data bytes in a classic CAN frame
	RecordSize = 16 // Size of a serialized frame record (SocketCAN can_frame layout)
)

// Record flag bits (stored in the high bits of the identifier field)
const (
	FlagExtended uint32 = 0x80000000 // EFF: extended 29-bit identifier
	FlagRTR      uint32 = 0x40000000 // RTR: remote transmission request
)

// Errors
var (
	ErrInvalidID      = errors.New("invalid CAN identifier")
	ErrInvalidLength  = errors.New("invalid CAN data length")
	ErrRecordTooShort = errors.New("record too short")
)
