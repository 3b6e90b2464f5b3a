// internal/codec/render.go
package codec

import (
	"strings"

	"uart-assist/internal/model"
)

const bytesPerHexLine = 16

// RenderASCII prints printable bytes verbatim and escapes the rest
func RenderASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c >= 0x20 && c < 0x7F:
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == 0:
			sb.WriteString(`\0`)
		default:
			sb.WriteString(`\x`)
			sb.WriteByte(upperHex[c>>4])
			sb.WriteByte(upperHex[c&0x0F])
		}
	}
	return sb.String()
}

// RenderHex prints "XX " per byte, sixteen bytes per line. Every line,
// including a short final one, ends with a newline.
func RenderHex(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b)*3 + len(b)/bytesPerHexLine + 1)
	for i, c := range b {
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0F])
		sb.WriteByte(' ')
		if (i+1)%bytesPerHexLine == 0 {
			sb.WriteByte('\n')
		}
	}
	if len(b)%bytesPerHexLine != 0 {
		sb.WriteByte('\n')
	}
	return sb.String()
}

// RenderHexInline prints space-separated "XX" pairs on a single line
func RenderHexInline(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0F])
	}
	return sb.String()
}

// Render picks the single-line display form for the given format
func Render(b []byte, format model.OutputFormat) string {
	if format == model.FormatHex {
		return RenderHexInline(b)
	}
	return RenderASCII(b)
}
