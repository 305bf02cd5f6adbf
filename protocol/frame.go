package protocol

import "sync/atomic"

// CommandHandler dispatches a decoded command body. data is advanced past
// whatever the handler consumes; a handler that returns an error abandons
// the remainder of the frame's body (spec §4.4).
type CommandHandler func(cmdID uint16, data *[]byte) error

// Framer is the resynchronizing frame state machine of spec §4.3: it
// consumes raw bytes from an InputBuffer, validates length/sequence/CRC/
// sync, dispatches accepted bodies, and emits an ACK through output for
// every accepted frame and every resynchronization.
//
// Framer is purely reactive, synchronous and allocation-free. The two
// scalar cells it owns (synchronized, nextSequence) use sequentially
// consistent atomic operations so a sender running on another execution
// context (classically, an interrupt handler) may safely read
// nextSequence concurrently with Receive (spec §5).
type Framer struct {
	synchronized uint32 // atomic bool: 1 = Synchronized, 0 = Unsynchronized
	nextSequence uint32 // atomic uint8, always MessageDest|counter

	output  OutputBuffer
	handler CommandHandler

	resetCallback func()
	flushCallback func()
}

// NewFramer creates a Framer in the Synchronized state with
// nextSequence = MessageDest, writing ACKs and sender frames to output and
// dispatching accepted bodies to handler.
func NewFramer(output OutputBuffer, handler CommandHandler) *Framer {
	return &Framer{
		synchronized: 1,
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
}

// SetResetCallback installs a callback invoked when Receive observes the
// host restart its sequence counter back to MessageDest while the MCU's
// own nextSequence had already advanced — a host-side reconnect, not a
// framing error (spec SPEC_FULL "Host reset detection").
func (f *Framer) SetResetCallback(cb func()) { f.resetCallback = cb }

// SetFlushCallback installs a callback invoked immediately after an ACK is
// queued, so a transport can push the ACK to the wire ahead of anything
// a handler subsequently appends via the same output (spec SPEC_FULL
// "Flush-before-buffer callback").
func (f *Framer) SetFlushCallback(cb func()) { f.flushCallback = cb }

// NextSequence returns the MCU's expected next sequence byte
// (MessageDest | 4-bit counter).
func (f *Framer) NextSequence() uint8 {
	return uint8(atomic.LoadUint32(&f.nextSequence))
}

// Synchronized reports whether the framer is currently in the
// Synchronized state.
func (f *Framer) Synchronized() bool {
	return atomic.LoadUint32(&f.synchronized) != 0
}

func (f *Framer) setSynchronized(v bool) {
	if v {
		atomic.StoreUint32(&f.synchronized, 1)
	} else {
		atomic.StoreUint32(&f.synchronized, 0)
	}
}

// Reset returns the framer to its initial state: Synchronized,
// nextSequence = MessageDest. Useful after a transport-level disconnect.
func (f *Framer) Reset() {
	atomic.StoreUint32(&f.synchronized, 1)
	atomic.StoreUint32(&f.nextSequence, MessageDest)
	if f.resetCallback != nil {
		f.resetCallback()
	}
}

// Receive processes whatever bytes are currently available in input. It
// consumes data until input is empty or a frame is incomplete, then
// reports the number of bytes accepted back to input via Pop (spec §4.3).
func (f *Framer) Receive(input InputBuffer) {
	data := input.Data()
	total := len(data)

	for len(data) > 0 {
		if !f.Synchronized() {
			syncPos := -1
			for i, b := range data {
				if b == MessageSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			f.setSynchronized(true)
			f.sendAck()
			continue
		}

		if data[0] == MessageSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		length := int(data[messagePositionLen])
		if length < MessageLengthMin || length > MessageLengthMax {
			f.setSynchronized(false)
			continue
		}

		seq := data[messagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			f.setSynchronized(false)
			continue
		}

		if len(data) < length {
			break
		}

		if data[length-messageTrailerSync] != MessageSync {
			f.setSynchronized(false)
			continue
		}

		frameCRC := uint16(data[length-messageTrailerCRC])<<8 | uint16(data[length-messageTrailerCRC+1])
		actualCRC := CRC16(data[:length-MessageTrailerSize])
		if frameCRC != actualCRC {
			f.setSynchronized(false)
			continue
		}

		body := data[MessageHeaderSize : length-MessageTrailerSize]
		data = data[length:]

		expected := f.NextSequence()
		if seq == MessageDest && expected != MessageDest {
			atomic.StoreUint32(&f.nextSequence, MessageDest)
			expected = MessageDest
			if f.resetCallback != nil {
				f.resetCallback()
			}
		}

		if seq == expected {
			atomic.StoreUint32(&f.nextSequence, uint32(((seq+1)&MessageSeqMask)|MessageDest))
			f.dispatch(body)
		}
		f.sendAck()
	}

	consumed := total - len(data)
	input.Pop(consumed)
}

// dispatch decodes and invokes one command unit per iteration until body
// is exhausted or a decode fails, in which case the remainder is abandoned
// silently (spec §4.4, §7).
func (f *Framer) dispatch(body []byte) {
	for len(body) > 0 {
		cmdID, err := DecodeVLQUint(&body)
		if err != nil {
			return
		}
		if f.handler == nil {
			return
		}
		if err := f.handler(uint16(cmdID), &body); err != nil {
			return
		}
	}
}

// sendAck emits the fixed 5-byte ACK frame reflecting the current
// nextSequence, then flushes it ahead of any buffered sender output.
func (f *Framer) sendAck() {
	seq := f.NextSequence()
	crc := CRC16([]byte{MessageLengthMin, seq})
	f.output.Output([]byte{
		MessageLengthMin,
		seq,
		byte(crc >> 8),
		byte(crc),
		MessageSync,
	})
	if f.flushCallback != nil {
		f.flushCallback()
	}
}

// EncodeFrame writes one reply/output frame: a placeholder length byte and
// the current sequence byte, then body (typically a command ID followed by
// its encoded arguments), then backfills the length and appends the
// trailing CRC16 and sync byte — all in a single forward pass over output
// (spec §4.4).
func (f *Framer) EncodeFrame(body func(output OutputBuffer)) {
	cursor := f.output.CurPosition()
	seq := f.NextSequence()
	f.output.Output([]byte{0, seq})

	body(f.output)

	written := len(f.output.DataSince(cursor))
	f.output.Update(cursor, uint8(written+MessageTrailerSize))

	crc := CRC16(f.output.DataSince(cursor))
	f.output.Output([]byte{byte(crc >> 8), byte(crc), MessageSync})
}

// SendMessage writes a reply or output frame whose body is the VLQ command
// ID followed by args's encoded arguments.
func (f *Framer) SendMessage(cmdID uint16, args func(output OutputBuffer)) {
	f.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}
