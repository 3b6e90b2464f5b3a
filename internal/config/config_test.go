package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uart-assist/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"-m", "send"})
	require.NoError(t, err)

	assert.Equal(t, ActionRun, cfg.Action)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Serial.Device)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, "8N1", cfg.Serial.Framing)
	assert.Equal(t, "123456", cfg.Test.Send)
	assert.Equal(t, 1000, cfg.Test.Interval)
	assert.Equal(t, time.Second, cfg.IntervalDuration())
	assert.Equal(t, 0, cfg.Test.Count)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.Monitor.ReadTimeout)
	assert.False(t, cfg.MonitorEnabled())
	assert.False(t, cfg.HistoryEnabled())

	mode, err := cfg.TestMode()
	require.NoError(t, err)
	assert.Equal(t, model.ModeSend, mode)

	framing, err := cfg.Framing()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultFraming(), framing)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"--mode=loopback", "-d", "/dev/ttyUSB0", "-b", "9600", "-c", "7e2",
		"-s", "af37126b4A", "-f", "hex", "-i", "250", "-n", "3",
		"--listen", ":8084", "--timestamp",
	})
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, "af37126b4A", cfg.Test.Send)
	assert.Equal(t, 250*time.Millisecond, cfg.IntervalDuration())
	assert.Equal(t, 3, cfg.Test.Count)
	assert.True(t, cfg.Output.Timestamp)
	assert.True(t, cfg.MonitorEnabled())

	format, err := cfg.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, model.FormatHex, format)

	framing, err := cfg.Framing()
	require.NoError(t, err)
	assert.Equal(t, model.Framing{Baud: 9600, DataBits: 7, Parity: model.ParityEven, StopBits: 2}, framing)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uart-assist.yaml")
	content := "serial:\n  device: /dev/ttyS3\n  baud: 57600\ntest:\n  send: from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("UART_ASSIST_SERIAL_BAUD", "38400")

	cfg, err := Load([]string{"-m", "send", "--config-file", path, "-s", "from-flag"})
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS3", cfg.Serial.Device)
	assert.Equal(t, 38400, cfg.Serial.Baud)
	assert.Equal(t, "from-flag", cfg.Test.Send)
}

func TestLoad_Actions(t *testing.T) {
	tests := []struct {
		args []string
		want Action
	}{
		{[]string{"-h"}, ActionHelp},
		{[]string{"--version"}, ActionVersion},
		{[]string{"-V"}, ActionVersion},
		{[]string{"--list-ports"}, ActionListPorts},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			cfg, err := Load(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Action)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"missing mode", []string{}, "mode is required"},
		{"bad mode", []string{"-m", "echo"}, "invalid mode"},
		{"bad format", []string{"-m", "send", "-f", "binary"}, "invalid format"},
		{"bad baud", []string{"-m", "send", "-b", "12345"}, "unsupported baud rate 12345"},
		{"bad framing", []string{"-m", "send", "-c", "9N1"}, "invalid data bit 9"},
		{"bad parity", []string{"-m", "send", "-c", "8X1"}, "invalid parity"},
		{"interval low", []string{"-m", "send", "-i", "0"}, "invalid interval 0"},
		{"interval high", []string{"-m", "send", "-i", "10001"}, "invalid interval 10001"},
		{"negative count", []string{"-m", "send", "-n", "-1"}, "invalid count -1"},
		{"file without path", []string{"-m", "file"}, "requires -F/--file"},
		{"unknown flag", []string{"-m", "send", "--bogus"}, "unknown flag"},
		{"positional", []string{"-m", "send", "extra"}, "unexpected argument"},
		{"log level", []string{"-m", "send", "--log-level", "loud"}, "logging.level"},
		{"missing config file", []string{"-m", "send", "--config-file", "/nonexistent/uart.yaml"}, "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestUsage(t *testing.T) {
	usage := Usage("uart-assist")

	assert.Contains(t, usage, "Usage: uart-assist [OPTIONS]")
	assert.Contains(t, usage, "-m, --mode")
	assert.Contains(t, usage, "-F, --file")
	assert.Contains(t, usage, `uart-assist -m recv -d /dev/ttyUSB0 -f hex`)
}
