package codec

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uart-assist/internal/model"
)

func TestHexDecode(t *testing.T) {
	got, err := HexDecode("af37126b4A", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAF, 0x37, 0x12, 0x6B, 0x4A}, got)
}

func TestHexDecode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		capacity int
	}{
		{"empty", "", 0},
		{"odd length", "abc", 0},
		{"bad first nibble", "g0", 0},
		{"bad second nibble", "0g", 0},
		{"space", "0 ", 0},
		{"over capacity", "00112233", 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := HexDecode(tc.input, tc.capacity)
			require.ErrorIs(t, err, model.ErrInvalidHex)
			assert.Nil(t, got)
		})
	}
}

func TestHexDecode_CapacityBoundary(t *testing.T) {
	got, err := HexDecode("001122", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestHexDecode_RoundTripProperty(t *testing.T) {
	const digits = "0123456789abcdefABCDEF"
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := 2 * (1 + rng.Intn(64))
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteByte(digits[rng.Intn(len(digits))])
		}
		input := sb.String()

		decoded, err := HexDecode(input, 0)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, strings.ToUpper(input), HexEncode(decoded))
	}
}

func TestHexDecode_RejectsNonHexProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bad := "ghijklmnopqrstuvwxyzGHIJ-_ !\x00\xff"

	for i := 0; i < 200; i++ {
		n := 2 * (1 + rng.Intn(16))
		b := []byte(strings.Repeat("a", n))
		b[rng.Intn(n)] = bad[rng.Intn(len(bad))]

		got, err := HexDecode(string(b), 0)
		assert.ErrorIs(t, err, model.ErrInvalidHex)
		assert.Nil(t, got)
	}

	for n := 1; n < 40; n += 2 {
		_, err := HexDecode(strings.Repeat("0", n), 0)
		assert.ErrorIs(t, err, model.ErrInvalidHex, "odd length %d", n)
	}
}

func TestEncodePayload(t *testing.T) {
	got, err := EncodePayload("Hello", model.FormatASCII)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), got)

	got, err = EncodePayload("0d0A", model.FormatHex)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0D, 0x0A}, got)

	_, err = EncodePayload("", model.FormatASCII)
	assert.ErrorIs(t, err, model.ErrEmptyPayload)

	_, err = EncodePayload("xyz", model.FormatHex)
	assert.ErrorIs(t, err, model.ErrInvalidHex)

	_, err = EncodePayload(strings.Repeat("00", SendBufferSize+1), model.FormatHex)
	assert.ErrorIs(t, err, model.ErrInvalidHex)
}

func TestRenderASCII(t *testing.T) {
	in := []byte("ok\n\r\t\x00\x01\x7f\xff~ ")
	assert.Equal(t, `ok\n\r\t\0\x01\x7F\xFF~ `, RenderASCII(in))
	assert.Equal(t, "", RenderASCII(nil))
}

func TestRenderASCII_WidthProperty(t *testing.T) {
	for b := 0; b < 256; b++ {
		out := RenderASCII([]byte{byte(b)})
		switch {
		case b >= 0x20 && b <= 0x7E:
			assert.Len(t, out, 1, "byte 0x%02X", b)
		case b == '\n' || b == '\r' || b == '\t' || b == 0:
			assert.Len(t, out, 2, "byte 0x%02X", b)
		default:
			assert.Len(t, out, 4, "byte 0x%02X", b)
		}
	}
}

func TestRenderHex(t *testing.T) {
	assert.Equal(t, "", RenderHex(nil))
	assert.Equal(t, "00 FF 10 \n", RenderHex([]byte{0x00, 0xFF, 0x10}))

	sixteen := make([]byte, 16)
	out := RenderHex(sixteen)
	assert.Equal(t, strings.Repeat("00 ", 16)+"\n", out)
}

func TestRenderHex_LineCountProperty(t *testing.T) {
	for n := 1; n <= 70; n++ {
		out := RenderHex(make([]byte, n))
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

		want := (n + 15) / 16
		require.Len(t, lines, want, "n=%d", n)
		for i, line := range lines[:len(lines)-1] {
			assert.Len(t, strings.Fields(line), 16, "n=%d line %d", n, i)
		}
		last := n % 16
		if last == 0 {
			last = 16
		}
		assert.Len(t, strings.Fields(lines[len(lines)-1]), last, "n=%d last line", n)
	}
}

func TestRender(t *testing.T) {
	assert.Equal(t, `A\n`, Render([]byte("A\n"), model.FormatASCII))
	assert.Equal(t, "41 0A", Render([]byte("A\n"), model.FormatHex))
}

func TestRender_HexStaysOnOneLine(t *testing.T) {
	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}

	out := Render(payload, model.FormatHex)
	assert.NotContains(t, out, "\n")
	assert.Len(t, strings.Fields(out), 40)
	assert.Equal(t, "", RenderHexInline(nil))
}
