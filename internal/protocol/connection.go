// internal/protocol/connection.go
package protocol

import (
	"fmt"

	"go.bug.st/serial"

	"uart-assist/internal/model"
)

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port    string        `json:"port"`
	Framing model.Framing `json:"framing"`
}

// Validate checks the configuration before any device I/O happens
func (c *SerialConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: serial port is required", model.ErrConfig)
	}
	return c.Framing.Validate()
}

// SerialMode converts the framing into the structure go.bug.st/serial opens with
func (c *SerialConfig) SerialMode() (*serial.Mode, error) {
	if err := c.Framing.Validate(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: c.Framing.Baud,
		DataBits: c.Framing.DataBits,
	}

	switch c.Framing.Parity {
	case model.ParityEven:
		mode.Parity = serial.EvenParity
	case model.ParityOdd:
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}

	if c.Framing.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}

	return mode, nil
}
