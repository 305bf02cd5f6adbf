// Package hostsim plays the Klipper *host* role of the wire protocol
// purely so this module's own tests can exercise a Framer over a real
// byte pipe: it builds outgoing command frames, waits for ACKs, and
// decodes responses. It is a test harness, never a production dependency
// of the MCU runtime (spec SPEC_FULL "Host-side test harness").
package hostsim

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klipmcu/klipmcu/protocol"
)

// Frame is a parsed message: either an ACK (empty Payload) or a response
// (command ID + arguments still VLQ-encoded in Payload).
type Frame struct {
	Sequence uint8
	Payload  []byte
}

// Host drives the host side of the protocol against an io.ReadWriter
// (typically the read/write ends of a pipe wired to an MCU-side Framer in
// tests).
type Host struct {
	port io.ReadWriter

	currentSeq   uint32
	synchronized uint32

	in *protocol.FifoBuffer

	ackCh      chan Frame
	responseCh chan Frame

	writeMu sync.Mutex
	readMu  sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// New creates a Host reading/writing port and starts its background
// read loop.
func New(port io.ReadWriter) *Host {
	h := &Host{
		port:         port,
		currentSeq:   protocol.MessageDest,
		synchronized: 1,
		in:           protocol.NewFifoBuffer(1024),
		ackCh:        make(chan Frame, 1),
		responseCh:   make(chan Frame, 16),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go h.readLoop()
	return h
}

// Close stops the read loop.
func (h *Host) Close() error {
	close(h.stop)
	<-h.done
	return nil
}

// SendCommand encodes and writes a command frame, then blocks for its ACK.
func (h *Host) SendCommand(cmdID uint16, args func(protocol.OutputBuffer), timeout time.Duration) error {
	msg := h.buildCommand(cmdID, args)

	h.writeMu.Lock()
	_, err := h.port.Write(msg)
	h.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	select {
	case ack := <-h.ackCh:
		sent := uint8(atomic.LoadUint32(&h.currentSeq))
		expected := ((sent + 1) & protocol.MessageSeqMask) | protocol.MessageDest
		if ack.Sequence != expected {
			return fmt.Errorf("sequence mismatch: expected 0x%02x got 0x%02x", expected, ack.Sequence)
		}
		atomic.StoreUint32(&h.currentSeq, uint32(expected))
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("ACK timeout after %v", timeout)
	case <-h.stop:
		return fmt.Errorf("host stopped")
	}
}

// ReceiveResponse blocks for the next non-ACK frame.
func (h *Host) ReceiveResponse(timeout time.Duration) (Frame, error) {
	select {
	case r := <-h.responseCh:
		return r, nil
	case <-time.After(timeout):
		return Frame{}, fmt.Errorf("response timeout after %v", timeout)
	case <-h.stop:
		return Frame{}, fmt.Errorf("host stopped")
	}
}

func (h *Host) buildCommand(cmdID uint16, args func(protocol.OutputBuffer)) []byte {
	scratch := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()

	seq := uint8(atomic.LoadUint32(&h.currentSeq))
	length := protocol.MessageHeaderSize + len(payload) + protocol.MessageTrailerSize

	msg := make([]byte, 0, length)
	msg = append(msg, byte(length), seq)
	msg = append(msg, payload...)
	crc := protocol.CRC16(msg)
	msg = append(msg, byte(crc>>8), byte(crc), protocol.MessageSync)
	return msg
}

func (h *Host) readLoop() {
	defer close(h.done)
	buf := make([]byte, 256)
	for {
		select {
		case <-h.stop:
			return
		default:
		}
		n, err := h.port.Read(buf)
		if err != nil {
			if err == io.EOF {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}
		h.in.Extend(buf[:n])
		h.processFrames()
	}
}

func (h *Host) processFrames() {
	h.readMu.Lock()
	defer h.readMu.Unlock()

	data := h.in.Data()
	total := len(data)

	for len(data) > 0 {
		if atomic.LoadUint32(&h.synchronized) == 0 {
			pos := -1
			for i, b := range data {
				if b == protocol.MessageSync {
					pos = i
					break
				}
			}
			if pos < 0 {
				data = nil
				break
			}
			data = data[pos+1:]
			atomic.StoreUint32(&h.synchronized, 1)
			continue
		}

		if data[0] == protocol.MessageSync {
			data = data[1:]
			continue
		}
		if len(data) < protocol.MessageLengthMin {
			break
		}
		length := int(data[0])
		if length < protocol.MessageLengthMin || length > protocol.MessageLengthMax {
			atomic.StoreUint32(&h.synchronized, 0)
			continue
		}
		if len(data) < length {
			break
		}
		if data[length-1] != protocol.MessageSync {
			atomic.StoreUint32(&h.synchronized, 0)
			continue
		}
		frameCRC := uint16(data[length-3])<<8 | uint16(data[length-2])
		if protocol.CRC16(data[:length-protocol.MessageTrailerSize]) != frameCRC {
			atomic.StoreUint32(&h.synchronized, 0)
			continue
		}

		seq := data[1]
		payload := append([]byte(nil), data[protocol.MessageHeaderSize:length-protocol.MessageTrailerSize]...)
		data = data[length:]

		h.dispatch(Frame{Sequence: seq, Payload: payload})
	}

	h.in.Pop(total - len(data))
}

func (h *Host) dispatch(f Frame) {
	if len(f.Payload) == 0 {
		select {
		case h.ackCh <- f:
		default:
		}
		return
	}
	select {
	case h.responseCh <- f:
	default:
		select {
		case <-h.responseCh:
		default:
		}
		h.responseCh <- f
	}
}
