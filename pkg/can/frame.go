package can

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Frame represents a classic CAN (2.0A/2.0B) data-link frame
type Frame struct {
	// Header fields
	ID       uint32 // 11-bit (standard) or 29-bit (extended) identifier
	Extended bool   // true for a 29-bit identifier
	RTR      bool   // Remote transmission request

	// Payload
	Len  uint8   // Data length code, 0-8
	Data [8]byte // Frame data
}

// NewFrame creates a new CAN frame carrying the given data
func NewFrame(id uint32, data []byte) (*Frame, error) {
	if len(data) > MaxDataLen {
		return nil, ErrInvalidLength
	}

	frame := &Frame{
		ID:       id,
		Extended: id > MaxStdID,
		Len:      uint8(len(data)),
	}
	copy(frame.Data[:], data)

	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}

// Validate checks identifier range and data length
func (f *Frame) Validate() error {
	if f.Len > MaxDataLen {
		return ErrInvalidLength
	}
	if f.Extended {
		if f.ID > MaxExtID {
			return ErrInvalidID
		}
	} else {
		if f.ID > MaxStdID {
			return ErrInvalidID
		}
	}
	return nil
}

// Payload returns the valid data bytes of the frame
func (f *Frame) Payload() []byte {
	return f.Data[:f.Len]
}

// Serialize converts the frame to the 16-byte SocketCAN can_frame record:
//
//	0..3  identifier, little-endian, with EFF/RTR flags in the high bits
//	4     data length code
//	5..7  padding (zero)
//	8..15 data bytes
func (f *Frame) Serialize() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	id := f.ID
	if f.Extended {
		id |= FlagExtended
	}
	if f.RTR {
		id |= FlagRTR
	}

	record := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(record[0:4], id)
	record[4] = f.Len
	copy(record[8:], f.Data[:])

	return record, nil
}

// Parse parses a 16-byte SocketCAN record into a Frame
func Parse(record []byte) (*Frame, error) {
	if len(record) < RecordSize {
		return nil, ErrRecordTooShort
	}

	raw := binary.LittleEndian.Uint32(record[0:4])

	frame := &Frame{
		ID:       raw &^ (FlagExtended | FlagRTR),
		Extended: raw&FlagExtended != 0,
		RTR:      raw&FlagRTR != 0,
		Len:      record[4],
	}
	copy(frame.Data[:], record[8:RecordSize])

	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}

// String returns a string representation of the frame
func (f *Frame) String() string {
	var buf bytes.Buffer
	if f.Extended {
		buf.WriteString(fmt.Sprintf("Frame{ID=%08X, ", f.ID))
	} else {
		buf.WriteString(fmt.Sprintf("Frame{ID=%03X, ", f.ID))
	}
	if f.RTR {
		buf.WriteString("RTR, ")
	}
	buf.WriteString(fmt.Sprintf("Len=%d, Data=% X}", f.Len, f.Payload()))
	return buf.String()
}

// Clone creates a deep copy of the frame
func (f *Frame) Clone() *Frame {
	clone := *f
	return &clone
}
