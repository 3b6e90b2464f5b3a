// internal/model/test.go
package model

import (
	"fmt"
	"strings"
)

// TestMode selects which test protocol runs for an invocation
type TestMode string

const (
	ModeLoopback TestMode = "loopback"
	ModeSend     TestMode = "send"
	ModeReceive  TestMode = "recv"
	ModeFile     TestMode = "file"
)

// ParseTestMode converts a mode name into a TestMode
func ParseTestMode(s string) (TestMode, error) {
	switch TestMode(s) {
	case ModeLoopback, ModeSend, ModeReceive, ModeFile:
		return TestMode(s), nil
	default:
		return "", fmt.Errorf("%w: invalid mode %q (should be loopback/send/recv/file)", ErrConfig, s)
	}
}

// OutputFormat controls payload interpretation and display
type OutputFormat string

const (
	FormatASCII OutputFormat = "ascii"
	FormatHex   OutputFormat = "hex"
)

// ParseOutputFormat converts a format name into an OutputFormat
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatASCII, FormatHex:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("%w: invalid format %q (should be ascii/hex)", ErrConfig, s)
	}
}

// Label returns the upper-case display name of the format
func (f OutputFormat) Label() string {
	return strings.ToUpper(string(f))
}

// Parity represents the serial parity setting
type Parity string

const (
	ParityNone Parity = "N"
	ParityEven Parity = "E"
	ParityOdd  Parity = "O"
)

// supportedBauds lists every rate the device layer can program
var supportedBauds = map[int]bool{
	1200: true, 2400: true, 4800: true, 9600: true, 19200: true, 38400: true,
	57600: true, 115200: true, 230400: true, 460800: true, 500000: true,
	576000: true, 921600: true, 1000000: true, 1152000: true, 1500000: true,
	2000000: true, 2500000: true, 3000000: true, 3500000: true, 4000000: true,
}

// IsSupportedBaud reports whether baud maps to a supported rate
func IsSupportedBaud(baud int) bool {
	return supportedBauds[baud]
}

// Framing is the byte-level encoding of a serial link
type Framing struct {
	Baud     int    `json:"baud"`
	DataBits int    `json:"data_bits"`
	Parity   Parity `json:"parity"`
	StopBits int    `json:"stop_bits"`
}

// DefaultFraming returns 115200 8N1
func DefaultFraming() Framing {
	return Framing{
		Baud:     115200,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1,
	}
}

// Validate rejects any framing the device layer cannot program
func (f Framing) Validate() error {
	if !IsSupportedBaud(f.Baud) {
		return fmt.Errorf("%w: unsupported baud rate %d", ErrConfig, f.Baud)
	}
	if f.DataBits < 5 || f.DataBits > 8 {
		return fmt.Errorf("%w: invalid data bit %d (should be 5-8)", ErrConfig, f.DataBits)
	}
	switch f.Parity {
	case ParityNone, ParityEven, ParityOdd:
	default:
		return fmt.Errorf("%w: invalid parity %q (should be N/E/O)", ErrConfig, f.Parity)
	}
	if f.StopBits != 1 && f.StopBits != 2 {
		return fmt.Errorf("%w: invalid stop bit %d (should be 1 or 2)", ErrConfig, f.StopBits)
	}
	return nil
}

// Notation returns the compact form, e.g. "8N1"
func (f Framing) Notation() string {
	return fmt.Sprintf("%d%s%d", f.DataBits, f.Parity, f.StopBits)
}

func (f Framing) String() string {
	return fmt.Sprintf("%d, %s", f.Baud, f.Notation())
}

// ParseFraming parses data bits, parity and stop bits from notation such as
// "8N1" or "7e2". The four character form carries a two digit stop field.
func ParseFraming(s string) (dataBits int, parity Parity, stopBits int, err error) {
	if len(s) < 3 || len(s) > 4 {
		return 0, "", 0, fmt.Errorf("%w: invalid uart config format %q (should be like 8N1)", ErrConfig, s)
	}

	dataBits = int(s[0]) - '0'
	if dataBits < 5 || dataBits > 8 {
		return 0, "", 0, fmt.Errorf("%w: invalid data bit %d (should be 5-8)", ErrConfig, dataBits)
	}

	parity = Parity(strings.ToUpper(s[1:2]))
	switch parity {
	case ParityNone, ParityEven, ParityOdd:
	default:
		return 0, "", 0, fmt.Errorf("%w: invalid parity %q (should be N/E/O)", ErrConfig, parity)
	}

	if len(s) == 3 {
		stopBits = int(s[2]) - '0'
	} else {
		stopBits = (int(s[2])-'0')*10 + (int(s[3]) - '0')
	}
	if stopBits != 1 && stopBits != 2 {
		return 0, "", 0, fmt.Errorf("%w: invalid stop bit %d (should be 1 or 2)", ErrConfig, stopBits)
	}

	return dataBits, parity, stopBits, nil
}
