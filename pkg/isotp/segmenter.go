package isotp

// Segment splits a payload into ISO-TP frames for transmission.
//
// Payloads of up to MaxDataBytesPerFrame bytes produce one Single frame.
// Larger payloads produce a First frame followed by Consecutive frames with
// sequence indices 1, 2, 3, ... rolling over after 15. Unused trailing frame
// bytes are zero.
func Segment(payload []byte) ([][NumBytesPerFrame]byte, error) {
	if len(payload) > MaxBytesPerTransfer {
		return nil, ErrTransferTooLarge
	}

	if len(payload) <= MaxDataBytesPerFrame {
		var frame [NumBytesPerFrame]byte
		frame[0] = uint8(FrameTypeSingle)<<FrameTypeShift | uint8(len(payload))
		copy(frame[1:], payload)
		return [][NumBytesPerFrame]byte{frame}, nil
	}

	length := len(payload)
	numConsecutive := (length - FirstFrameDataBytes + MaxDataBytesPerFrame - 1) / MaxDataBytesPerFrame
	frames := make([][NumBytesPerFrame]byte, 0, 1+numConsecutive)

	var first [NumBytesPerFrame]byte
	first[0] = uint8(FrameTypeFirst)<<FrameTypeShift | uint8(length>>8)&LengthHighMask
	first[1] = uint8(length)
	copy(first[2:], payload[:FirstFrameDataBytes])
	frames = append(frames, first)

	seq := uint8(1)
	for offset := FirstFrameDataBytes; offset < length; offset += MaxDataBytesPerFrame {
		end := offset + MaxDataBytesPerFrame
		if end > length {
			end = length
		}

		var frame [NumBytesPerFrame]byte
		frame[0] = uint8(FrameTypeConsecutive)<<FrameTypeShift | seq
		copy(frame[1:], payload[offset:end])
		frames = append(frames, frame)

		seq = (seq + 1) & SequenceMask
	}

	return frames, nil
}

// NumFrames returns the number of frames Segment will produce for a payload
// of the given size
func NumFrames(length int) int {
	if length <= MaxDataBytesPerFrame {
		return 1
	}
	return 1 + (length-FirstFrameDataBytes+MaxDataBytesPerFrame-1)/MaxDataBytesPerFrame
}
