package can

import (
	"bytes"
	"testing"
)

// TestNewFrame tests frame creation
func TestNewFrame(t *testing.T) {
	tests := []struct {
		name     string
		id       uint32
		data     []byte
		extended bool
	}{
		{
			name: "Standard identifier",
			id:   0x123,
			data: []byte{0x01, 0x02, 0x03},
		},
		{
			name:     "Extended identifier",
			id:       0x18DA10F1,
			data:     []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			extended: true,
		},
		{
			name: "Empty data",
			id:   0x7FF,
			data: nil,
		},
		{
			name: "Max data length",
			id:   0x000,
			data: make([]byte, MaxDataLen),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewFrame(tt.id, tt.data)
			if err != nil {
				t.Fatalf("NewFrame failed: %v", err)
			}

			if frame.ID != tt.id {
				t.Errorf("Expected ID %X, got %X", tt.id, frame.ID)
			}
			if frame.Extended != tt.extended {
				t.Errorf("Expected Extended=%v, got %v", tt.extended, frame.Extended)
			}
			if int(frame.Len) != len(tt.data) {
				t.Errorf("Expected Len %d, got %d", len(tt.data), frame.Len)
			}
			if !bytes.Equal(frame.Payload(), tt.data) && len(tt.data) > 0 {
				t.Errorf("Payload mismatch")
			}
		})
	}
}

// TestNewFrameInvalid tests rejection of invalid frames
func TestNewFrameInvalid(t *testing.T) {
	if _, err := NewFrame(0x123, make([]byte, 9)); err != ErrInvalidLength {
		t.Errorf("Expected ErrInvalidLength, got %v", err)
	}

	frame := &Frame{ID: MaxExtID + 1, Extended: true}
	if err := frame.Validate(); err != ErrInvalidID {
		t.Errorf("Expected ErrInvalidID, got %v", err)
	}

	frame = &Frame{ID: MaxStdID + 1, Extended: false}
	if err := frame.Validate(); err != ErrInvalidID {
		t.Errorf("Expected ErrInvalidID, got %v", err)
	}
}

// TestSerializeParse tests record round trip
func TestSerializeParse(t *testing.T) {
	tests := []struct {
		name string
		id   uint32
		rtr  bool
		data []byte
	}{
		{
			name: "Standard frame",
			id:   0x456,
			data: []byte{0xDE, 0xAD, 0xBE, 0xEF},
		},
		{
			name: "Extended frame full payload",
			id:   0x1ABCDEF0,
			data: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		},
		{
			name: "RTR frame",
			id:   0x100,
			rtr:  true,
			data: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewFrame(tt.id, tt.data)
			if err != nil {
				t.Fatalf("NewFrame failed: %v", err)
			}
			frame.RTR = tt.rtr

			record, err := frame.Serialize()
			if err != nil {
				t.Fatalf("Serialize failed: %v", err)
			}
			if len(record) != RecordSize {
				t.Fatalf("Expected %d byte record, got %d", RecordSize, len(record))
			}

			parsed, err := Parse(record)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if parsed.ID != frame.ID {
				t.Errorf("Expected ID %X, got %X", frame.ID, parsed.ID)
			}
			if parsed.Extended != frame.Extended {
				t.Errorf("Extended flag mismatch")
			}
			if parsed.RTR != frame.RTR {
				t.Errorf("RTR flag mismatch")
			}
			if !bytes.Equal(parsed.Payload(), frame.Payload()) {
				t.Errorf("Payload mismatch: % X vs % X", parsed.Payload(), frame.Payload())
			}
		})
	}
}

// TestParseTooShort tests rejection of truncated records
func TestParseTooShort(t *testing.T) {
	if _, err := Parse(make([]byte, RecordSize-1)); err != ErrRecordTooShort {
		t.Errorf("Expected ErrRecordTooShort, got %v", err)
	}
}

// TestClone tests deep copy
func TestClone(t *testing.T) {
	frame, _ := NewFrame(0x321, []byte{1, 2, 3})
	clone := frame.Clone()

	clone.Data[0] = 0xFF
	if frame.Data[0] == 0xFF {
		t.Errorf("Clone shares data with original")
	}
}
