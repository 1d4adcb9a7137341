package isotp

import "time"

// FrameType determines what kind of data is contained in a frame.
// It is encoded in the high nibble of the first frame byte.
type FrameType uint8

const (
	// FrameTypeSingle carries a complete payload in one frame
	FrameTypeSingle FrameType = 0
	// FrameTypeFirst opens a multi-frame transfer
	FrameTypeFirst FrameType = 1
	// FrameTypeConsecutive carries subsequent data of a multi-frame transfer
	FrameTypeConsecutive FrameType = 2
	// FrameTypeFlowControl is the receiver's pacing response to a First frame
	FrameTypeFlowControl FrameType = 3
)

// FrameTypeOf decodes the frame type from the first byte of a frame.
// Out-of-range nibble values decode to FrameTypeSingle; wire decode is
// permissive.
func FrameTypeOf(b byte) FrameType {
	switch ft := FrameType(b >> FrameTypeShift); ft {
	case FrameTypeSingle, FrameTypeFirst, FrameTypeConsecutive, FrameTypeFlowControl:
		return ft
	default:
		return FrameTypeSingle
	}
}

// String returns string representation of FrameType
func (t FrameType) String() string {
	switch t {
	case FrameTypeSingle:
		return "Single"
	case FrameTypeFirst:
		return "First"
	case FrameTypeConsecutive:
		return "Consecutive"
	case FrameTypeFlowControl:
		return "FlowControl"
	default:
		return "Unknown"
	}
}

// FlowControlStatus indicates whether a transfer may proceed
type FlowControlStatus uint8

const (
	// FlowStatusContinue allows the sender to continue
	FlowStatusContinue FlowControlStatus = 0
	// FlowStatusWait delays the transfer
	FlowStatusWait FlowControlStatus = 1
	// FlowStatusOverflow aborts the transfer
	FlowStatusOverflow FlowControlStatus = 2
	// FlowStatusUnknown is the fallback for out-of-range status codes
	FlowStatusUnknown FlowControlStatus = 3
)

// FlowControlStatusOf decodes a status byte, mapping out-of-range values to
// FlowStatusUnknown
func FlowControlStatusOf(b byte) FlowControlStatus {
	switch st := FlowControlStatus(b); st {
	case FlowStatusContinue, FlowStatusWait, FlowStatusOverflow:
		return st
	default:
		return FlowStatusUnknown
	}
}

// String returns string representation of FlowControlStatus
func (s FlowControlStatus) String() string {
	switch s {
	case FlowStatusContinue:
		return "Continue"
	case FlowStatusWait:
		return "Wait"
	case FlowStatusOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// Separation-time encoding boundaries
const (
	maxMillisSeparation  = 127  // 0-127: delay in milliseconds
	microSeparationFirst = 0xF1 // 0xF1-0xF9: 100-900 microseconds
	microSeparationLast  = 0xF9
)

// FlowControl is the message a receiver sends in response to a First frame.
// The reassembly path does not act on these frames; the codec exists for the
// transmit side and for diagnostics.
type FlowControl struct {
	// Status indicates if the transfer is allowed
	Status FlowControlStatus

	// BlockSize is the number of frames that can be sent before the next
	// flow control exchange. Zero allows the remaining frames without delay.
	BlockSize uint8

	// SeparationTime is the raw minimum-delay byte:
	//   0-127: delay in milliseconds
	//   0xF1-0xF9: delay from 100 to 900 microseconds
	//   other values reserved
	SeparationTime uint8
}

// ParseFlowControl decodes a FlowControl frame. Returns false if the frame
// is not a flow control frame.
func ParseFlowControl(frame *[NumBytesPerFrame]byte) (*FlowControl, bool) {
	if FrameTypeOf(frame[0]) != FrameTypeFlowControl {
		return nil, false
	}
	return &FlowControl{
		Status:         FlowControlStatusOf(frame[1]),
		BlockSize:      frame[2],
		SeparationTime: frame[3],
	}, true
}

// Frame encodes the flow control message into wire format
func (fc *FlowControl) Frame() [NumBytesPerFrame]byte {
	var frame [NumBytesPerFrame]byte
	frame[0] = uint8(FrameTypeFlowControl) << FrameTypeShift
	frame[1] = uint8(fc.Status)
	frame[2] = fc.BlockSize
	frame[3] = fc.SeparationTime
	return frame
}

// Delay returns the requested inter-frame delay as a duration. Reserved
// separation-time values return zero.
func (fc *FlowControl) Delay() time.Duration {
	st := fc.SeparationTime
	switch {
	case st <= maxMillisSeparation:
		return time.Duration(st) * time.Millisecond
	case st >= microSeparationFirst && st <= microSeparationLast:
		return time.Duration(st-0xF0) * 100 * time.Microsecond
	default:
		return 0
	}
}
