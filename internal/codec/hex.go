// internal/codec/hex.go
package codec

import (
	"fmt"
	"strings"

	"uart-assist/internal/model"
)

// SendBufferSize is the largest payload a single send may carry
const SendBufferSize = 512

const upperHex = "0123456789ABCDEF"

// HexDecode converts packed hex text such as "af37126b4A" into bytes. The
// high nibble comes from the first character of each pair. capacity bounds
// the decoded length; a value <= 0 disables the bound.
func HexDecode(text string, capacity int) ([]byte, error) {
	n := len(text)
	if n == 0 || n%2 != 0 {
		return nil, fmt.Errorf("%w: length %d (must be even)", model.ErrInvalidHex, n)
	}
	if capacity > 0 && n/2 > capacity {
		return nil, fmt.Errorf("%w: %d bytes exceeds max %d", model.ErrInvalidHex, n/2, capacity)
	}

	out := make([]byte, n/2)
	for i := 0; i < n; i += 2 {
		hi, ok := nibble(text[i])
		if !ok {
			return nil, fmt.Errorf("%w: bad character at position %d: %q", model.ErrInvalidHex, i, text[i])
		}
		lo, ok := nibble(text[i+1])
		if !ok {
			return nil, fmt.Errorf("%w: bad character at position %d: %q", model.ErrInvalidHex, i+1, text[i+1])
		}
		out[i/2] = hi<<4 | lo
	}
	return out, nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// HexEncode renders b as two upper-case hex digits per byte with no separator
func HexEncode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 2)
	for _, c := range b {
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0F])
	}
	return sb.String()
}

// EncodePayload turns the configured send string into wire bytes
func EncodePayload(text string, format model.OutputFormat) ([]byte, error) {
	if format == model.FormatHex {
		return HexDecode(text, SendBufferSize)
	}
	if len(text) == 0 {
		return nil, model.ErrEmptyPayload
	}
	return []byte(text), nil
}
