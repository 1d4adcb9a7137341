package isotp

// ISO-TP (ISO 15765-2) transport constants for classic CAN framing
const (
	// MaxDataBytesPerFrame is the maximum number of payload bytes carried by
	// a Single or Consecutive frame.
	MaxDataBytesPerFrame = 7

	// NumBytesPerFrame is the number of bytes in one CAN frame.
	NumBytesPerFrame = 8

	// MaxBytesPerTransfer is the maximum payload size of one transfer
	// (12-bit length field).
	MaxBytesPerTransfer = 4095

	// FirstFrameDataBytes is the number of payload bytes carried by a First
	// frame after the two-byte header.
	FirstFrameDataBytes = 6

	// MinFirstFrameLength is the smallest total length a First frame may
	// declare. Shorter payloads must be sent as a Single frame.
	MinFirstFrameLength = 8
)

// Header bit layout
const (
	FrameTypeShift       = 4    // Frame type is the high nibble of byte 0
	FrameTypeMask  uint8 = 0xF0 // Frame type bits
	SequenceMask   uint8 = 0x0F // Consecutive-frame sequence index bits
	LengthHighMask uint8 = 0x0F // High bits of a First frame's 12-bit length
)
