package isotp

import (
	"testing"
	"time"
)

// TestFrameTypeOf tests frame type nibble decoding
func TestFrameTypeOf(t *testing.T) {
	tests := []struct {
		b        byte
		expected FrameType
	}{
		{0x00, FrameTypeSingle},
		{0x07, FrameTypeSingle},
		{0x10, FrameTypeFirst},
		{0x1F, FrameTypeFirst},
		{0x21, FrameTypeConsecutive},
		{0x30, FrameTypeFlowControl},
		{0x40, FrameTypeSingle}, // Out of range decodes permissively
		{0xF0, FrameTypeSingle},
	}

	for _, tt := range tests {
		if got := FrameTypeOf(tt.b); got != tt.expected {
			t.Errorf("FrameTypeOf(0x%02X): expected %s, got %s", tt.b, tt.expected, got)
		}
	}
}

// TestFlowControlStatusOf tests status byte decoding
func TestFlowControlStatusOf(t *testing.T) {
	if FlowControlStatusOf(0) != FlowStatusContinue {
		t.Errorf("Expected Continue for 0")
	}
	if FlowControlStatusOf(1) != FlowStatusWait {
		t.Errorf("Expected Wait for 1")
	}
	if FlowControlStatusOf(2) != FlowStatusOverflow {
		t.Errorf("Expected Overflow for 2")
	}
	if FlowControlStatusOf(9) != FlowStatusUnknown {
		t.Errorf("Expected Unknown for out-of-range value")
	}
}

// TestFlowControlRoundTrip tests the flow control frame codec
func TestFlowControlRoundTrip(t *testing.T) {
	fc := &FlowControl{
		Status:         FlowStatusWait,
		BlockSize:      8,
		SeparationTime: 20,
	}

	frame := fc.Frame()
	if FrameTypeOf(frame[0]) != FrameTypeFlowControl {
		t.Fatalf("Expected flow control frame type, got %s", FrameTypeOf(frame[0]))
	}

	parsed, ok := ParseFlowControl(&frame)
	if !ok {
		t.Fatalf("ParseFlowControl rejected a flow control frame")
	}
	if parsed.Status != fc.Status {
		t.Errorf("Expected status %s, got %s", fc.Status, parsed.Status)
	}
	if parsed.BlockSize != fc.BlockSize {
		t.Errorf("Expected block size %d, got %d", fc.BlockSize, parsed.BlockSize)
	}
	if parsed.SeparationTime != fc.SeparationTime {
		t.Errorf("Expected separation time %d, got %d", fc.SeparationTime, parsed.SeparationTime)
	}
}

// TestParseFlowControlWrongType tests rejection of non-flow-control frames
func TestParseFlowControlWrongType(t *testing.T) {
	frame := [NumBytesPerFrame]byte{0x10, 0x14}
	if _, ok := ParseFlowControl(&frame); ok {
		t.Errorf("Expected rejection of a first frame")
	}
}

// TestFlowControlDelay tests the separation-time scale
func TestFlowControlDelay(t *testing.T) {
	tests := []struct {
		st       uint8
		expected time.Duration
	}{
		{0, 0},
		{1, time.Millisecond},
		{127, 127 * time.Millisecond},
		{0xF1, 100 * time.Microsecond},
		{0xF5, 500 * time.Microsecond},
		{0xF9, 900 * time.Microsecond},
		{0x80, 0}, // Reserved
		{0xFA, 0}, // Reserved
	}

	for _, tt := range tests {
		fc := &FlowControl{SeparationTime: tt.st}
		if got := fc.Delay(); got != tt.expected {
			t.Errorf("Delay(0x%02X): expected %v, got %v", tt.st, tt.expected, got)
		}
	}
}
