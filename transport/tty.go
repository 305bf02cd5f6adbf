package transport

import (
	"fmt"
	"time"

	goserial "github.com/daedaluz/goserial"
)

// ttyPort adapts github.com/daedaluz/goserial to the Port interface. It
// talks to the tty device through raw ioctls rather than a high-level
// serial library, trading portability (Linux-only) for direct control
// over line discipline — useful when a board's USB-CDC ACM device needs
// RS485 or break-signal handling tarm/serial doesn't expose.
type ttyPort struct {
	port *goserial.Port
}

// OpenTTY opens device in raw mode with the given read timeout.
func OpenTTY(device string, readTimeout time.Duration) (Port, error) {
	opts := goserial.NewOptions().SetReadTimeout(readTimeout)
	p, err := goserial.Open(device, opts)
	if err != nil {
		return nil, fmt.Errorf("open tty %s: %w", device, err)
	}
	if err := p.MakeRaw(); err != nil {
		p.Close()
		return nil, fmt.Errorf("set raw mode on %s: %w", device, err)
	}
	return &ttyPort{port: p}, nil
}

func (p *ttyPort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *ttyPort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *ttyPort) Close() error                { return p.port.Close() }
