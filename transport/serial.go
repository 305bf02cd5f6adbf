package transport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig configures a native serial connection to an MCU (spec §6
// "Transport sink/source contract").
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultSerialConfig returns the conventional Klipper serial settings;
// USB-CDC boards ignore Baud but a real UART link needs it.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{Device: device, Baud: 250000, ReadTimeout: 100 * time.Millisecond}
}

// serialPort adapts github.com/tarm/serial to the Port interface.
type serialPort struct {
	port *serial.Port
}

// OpenSerial opens a native serial port with cfg.
func OpenSerial(cfg SerialConfig) (Port, error) {
	conf := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	}
	p, err := serial.OpenPort(conf)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return &serialPort{port: p}, nil
}

func (p *serialPort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *serialPort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *serialPort) Close() error                { return p.port.Close() }
