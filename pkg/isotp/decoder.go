package isotp

// TransportDecoder reassembles one ISO-TP transfer from 8-byte CAN frames.
//
// A decoder instance serves exactly one transfer. It has no reset: after the
// transfer completes, or after Update returns an error, the instance must be
// discarded and a fresh one constructed before accepting further frames.
// Update is a pure state transition over memory the decoder exclusively
// owns; the caller is responsible for delivering frames one at a time in
// arrival order.
type TransportDecoder struct {
	// Payload bytes collected so far; capacity fixed at construction
	buf []byte
	// Total payload size once known
	expectedLength uint16
	// Bytes accumulated so far
	currentLength uint16
	// Sequence index the next Consecutive frame must present, 0-15
	nextIndex uint8
	// Set when Update returns an error; the transfer is dead
	failed bool
}

// NewTransportDecoder creates a decoder that accepts transfers up to
// capacity bytes. Capacity must be in 1..MaxBytesPerTransfer.
func NewTransportDecoder(capacity int) (*TransportDecoder, error) {
	if capacity < 1 || capacity > MaxBytesPerTransfer {
		return nil, ErrInvalidCapacity
	}
	return &TransportDecoder{
		buf: make([]byte, capacity),
	}, nil
}

// MaxSize returns the maximum transfer size this decoder can accept
func (d *TransportDecoder) MaxSize() int {
	return len(d.buf)
}

// Update feeds the next frame of the transfer into the decoder.
//   - If the frame completes the transfer, returns (size, true, nil).
//   - If more frames are needed, returns (0, false, nil).
//   - On error the transfer is dead: the decoder does not recover, and the
//     instance must be replaced before accepting further frames.
func (d *TransportDecoder) Update(frame *[NumBytesPerFrame]byte) (int, bool, error) {
	switch FrameTypeOf(frame[0]) {
	case FrameTypeSingle:
		// Payload length is the low nibble of the first byte
		length := uint16(frame[0] & SequenceMask)
		if length > MaxDataBytesPerFrame {
			return 0, false, d.fail(&OverflowError{Length: length, Limit: MaxDataBytesPerFrame})
		}
		if int(length) > len(d.buf) {
			return 0, false, d.fail(&BufferTooSmallError{Capacity: uint16(len(d.buf)), Length: length})
		}

		d.expectedLength = length
		d.currentLength = length
		copy(d.buf[:length], frame[1:1+length])
		return int(length), true, nil

	case FrameTypeFirst:
		// 12-bit total length: low nibble of byte 0 and all of byte 1
		length := uint16(frame[0]&LengthHighMask)<<8 | uint16(frame[1])
		if int(length) > len(d.buf) {
			return 0, false, d.fail(&BufferTooSmallError{Capacity: uint16(len(d.buf)), Length: length})
		}
		if length < MinFirstFrameLength {
			return 0, false, d.fail(&InvalidLengthError{Length: length})
		}

		d.expectedLength = length
		copy(d.buf[:FirstFrameDataBytes], frame[2:])
		d.currentLength = FirstFrameDataBytes
		d.nextIndex = 1
		return 0, false, nil

	case FrameTypeConsecutive:
		expected := d.nextIndex & SequenceMask
		actual := frame[0] & SequenceMask
		if expected != actual {
			// The failing frame is not consumed; the transfer is aborted
			return 0, false, d.fail(&MissedFrameError{Expected: expected, Actual: actual})
		}

		// Rolls over after 15; only the low 4 bits are ever compared
		d.nextIndex = (d.nextIndex + 1) & SequenceMask

		remaining := int(d.expectedLength - d.currentLength)
		chunk := MaxDataBytesPerFrame
		if remaining < chunk {
			chunk = remaining
		}

		start := int(d.currentLength)
		copy(d.buf[start:start+chunk], frame[1:1+chunk])
		d.currentLength += uint16(chunk)

		if d.Ready() {
			return int(d.currentLength), true, nil
		}
		return 0, false, nil

	case FrameTypeFlowControl:
		// Pacing is not interpreted by the reassembly path
		return 0, false, nil
	}

	return 0, false, nil
}

// fail marks the transfer as dead and passes the error through
func (d *TransportDecoder) fail(err error) error {
	d.failed = true
	return err
}

// Ready returns true if the complete payload has been received. A failed
// decoder is never ready.
func (d *TransportDecoder) Ready() bool {
	return !d.failed && d.expectedLength == d.currentLength
}

// Data returns the completed payload, if ready. The returned slice aliases
// the decoder's buffer and is stable across repeated calls as long as no
// further Update occurs.
func (d *TransportDecoder) Data() ([]byte, bool) {
	if !d.Ready() {
		return nil, false
	}
	return d.buf[:d.expectedLength], true
}
