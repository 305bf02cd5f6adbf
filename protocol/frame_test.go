package protocol

import "testing"

// buildFrame constructs a valid wire frame for body with the given
// sequence byte, computing length and CRC the way a real sender would.
func buildFrame(seq uint8, body []byte) []byte {
	length := MessageHeaderSize + len(body) + MessageTrailerSize
	frame := make([]byte, 0, length)
	frame = append(frame, byte(length), seq)
	frame = append(frame, body...)
	crc := CRC16(frame)
	frame = append(frame, byte(crc>>8), byte(crc), MessageSync)
	return frame
}

type recordingOutput struct {
	*ScratchOutput
	frames [][]byte
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{ScratchOutput: NewScratchOutput()}
}

// allBytes returns every byte written so far (ACKs and sender frames
// back to back), for assertions.
func (r *recordingOutput) allBytes() []byte {
	return r.Result()
}

func TestGoodFrameDispatchesAndAcks(t *testing.T) {
	var gotCmd uint16
	var gotArg uint32
	handler := func(cmdID uint16, data *[]byte) error {
		gotCmd = cmdID
		v, err := DecodeVLQUint(data)
		gotArg = v
		return err
	}

	out := newRecordingOutput()
	f := NewFramer(out, handler)

	body := []byte{0x01, 0x05} // command ID 1, argument 5
	frame := buildFrame(0x10, body)

	in := NewSliceInputBuffer(frame)
	f.Receive(in)

	if gotCmd != 1 || gotArg != 5 {
		t.Fatalf("expected handler(1, 5), got handler(%d, %d)", gotCmd, gotArg)
	}
	if f.NextSequence() != 0x11 {
		t.Fatalf("expected nextSequence 0x11, got 0x%02x", f.NextSequence())
	}

	ack := out.allBytes()
	wantAck := []byte{5, 0x11, 0, 0, MessageSync}
	crc := CRC16([]byte{5, 0x11})
	wantAck[2], wantAck[3] = byte(crc>>8), byte(crc)
	if len(ack) != 5 || string(ack) != string(wantAck) {
		t.Errorf("expected single ACK %v, got %v", wantAck, ack)
	}
	if in.Available() != 0 {
		t.Errorf("expected all bytes consumed, %d remain", in.Available())
	}
}

func TestGarbageBeforeFrameResyncs(t *testing.T) {
	called := false
	f := NewFramer(newRecordingOutput(), func(uint16, *[]byte) error {
		called = true
		return nil
	})

	garbage := []byte{0xFF, 0x00, MessageSync}
	body := []byte{0x01, 0x05}
	frame := buildFrame(0x10, body)

	input := append(append([]byte{}, garbage...), frame...)
	in := NewSliceInputBuffer(input)
	f.Receive(in)

	if !called {
		t.Error("expected handler to be called for the well-formed frame after resync")
	}
	if f.NextSequence() != 0x11 {
		t.Errorf("expected nextSequence 0x11 after accepting the frame, got 0x%02x", f.NextSequence())
	}
}

func TestCRCErrorDesyncsAndDoesNotDispatch(t *testing.T) {
	called := false
	out := newRecordingOutput()
	f := NewFramer(out, func(uint16, *[]byte) error {
		called = true
		return nil
	})

	frame := buildFrame(0x10, []byte{0x01, 0x05})
	frame[2] ^= 0xFF // flip a body byte, breaking the CRC

	in := NewSliceInputBuffer(frame)
	f.Receive(in)

	if called {
		t.Error("a CRC-mismatched frame must not be dispatched")
	}
	if f.NextSequence() != MessageDest {
		t.Errorf("sequence must not advance on CRC error, got 0x%02x", f.NextSequence())
	}
	// The mismatch desynchronizes the framer; it then resynchronizes on the
	// frame's own trailing sync byte and ACKs the unchanged sequence.
	wantAck := []byte{5, MessageDest, 0, 0, MessageSync}
	crc := CRC16([]byte{5, MessageDest})
	wantAck[2], wantAck[3] = byte(crc>>8), byte(crc)
	if got := out.allBytes(); string(got) != string(wantAck) {
		t.Errorf("a CRC mismatch must desynchronize the framer and ACK 0x%02x on resync, got output %v", MessageDest, got)
	}
}

func TestStaleSequenceIsNotRedispatched(t *testing.T) {
	calls := 0
	f := NewFramer(newRecordingOutput(), func(_ uint16, data *[]byte) error {
		calls++
		_, err := DecodeVLQUint(data) // consume the command's argument
		return err
	})

	frame := buildFrame(0x10, []byte{0x01, 0x05})

	f.Receive(NewSliceInputBuffer(append([]byte{}, frame...)))
	if calls != 1 {
		t.Fatalf("expected 1 dispatch after first send, got %d", calls)
	}

	// Resend the same (now stale) frame.
	f.Receive(NewSliceInputBuffer(append([]byte{}, frame...)))
	if calls != 1 {
		t.Errorf("a stale sequence must not be dispatched again, got %d calls", calls)
	}
	if f.NextSequence() != 0x11 {
		t.Errorf("expected nextSequence to remain 0x11, got 0x%02x", f.NextSequence())
	}
}

func TestSequenceWraparound(t *testing.T) {
	f := NewFramer(newRecordingOutput(), func(uint16, *[]byte) error { return nil })

	seq := uint8(MessageDest)
	for i := 0; i < 20; i++ {
		frame := buildFrame(seq, []byte{0x01})
		f.Receive(NewSliceInputBuffer(frame))

		want := ((seq + 1) & MessageSeqMask) | MessageDest
		if f.NextSequence() != want {
			t.Fatalf("iteration %d: expected nextSequence 0x%02x, got 0x%02x", i, want, f.NextSequence())
		}
		seq = want
	}
}

func TestFrameAcceptanceProperty(t *testing.T) {
	// Any body up to MAX_LEN-5, sequence matching DEST nibble: accepted,
	// dispatched when it matches nextSequence, and nextSequence advances.
	for bodyLen := 0; bodyLen <= MessageLengthMax-MessageLengthMin; bodyLen++ {
		body := make([]byte, bodyLen)
		for i := range body {
			body[i] = byte(i + 1)
		}

		called := false
		f := NewFramer(newRecordingOutput(), func(uint16, *[]byte) error {
			called = true
			return nil
		})

		frame := buildFrame(MessageDest, body)
		f.Receive(NewSliceInputBuffer(frame))

		if bodyLen > 0 && !called {
			t.Errorf("bodyLen=%d: expected dispatch", bodyLen)
		}
		want := uint8((MessageDest + 1) & MessageSeqMask | MessageDest)
		if f.NextSequence() != want {
			t.Errorf("bodyLen=%d: expected nextSequence 0x%02x, got 0x%02x", bodyLen, want, f.NextSequence())
		}
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	out := newRecordingOutput()
	f := NewFramer(out, nil)

	f.SendMessage(42, func(o OutputBuffer) {
		EncodeVLQUint(o, 7)
	})

	frame := out.allBytes()
	if len(frame) < MessageLengthMin {
		t.Fatalf("frame too short: %v", frame)
	}
	if int(frame[0]) != len(frame) {
		t.Errorf("declared length %d != actual length %d", frame[0], len(frame))
	}
	if frame[len(frame)-1] != MessageSync {
		t.Errorf("missing trailing sync byte")
	}
	crc := uint16(frame[len(frame)-3])<<8 | uint16(frame[len(frame)-2])
	if crc != CRC16(frame[:len(frame)-MessageTrailerSize]) {
		t.Error("CRC mismatch in encoded frame")
	}

	body := frame[MessageHeaderSize : len(frame)-MessageTrailerSize]
	cmdID, err := DecodeVLQUint(&body)
	if err != nil || cmdID != 42 {
		t.Fatalf("expected cmdID 42, got %d err %v", cmdID, err)
	}
	arg, err := DecodeVLQUint(&body)
	if err != nil || arg != 7 {
		t.Fatalf("expected arg 7, got %d err %v", arg, err)
	}
}
