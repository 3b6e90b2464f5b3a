package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"uart-assist/internal/config"
	"uart-assist/internal/discovery"
)

type stubScanner struct {
	ports []*discovery.PortInfo
	err   error
}

func (s *stubScanner) Scan(ctx context.Context) ([]*discovery.PortInfo, error) {
	return s.ports, s.err
}

func (s *stubScanner) GetScannerType() string { return "stub" }

func TestRun_InformationalActions(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-h"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Usage: uart-assist [OPTIONS]")
	assert.Contains(t, stdout.String(), "-m file -d /dev/ttyUSB0 -F script.json")

	stdout.Reset()
	assert.Equal(t, 0, run([]string{"-V"}, &stdout, &stderr))
	assert.Equal(t, "uart-assist version "+config.Version+"\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRun_InvalidConfiguration(t *testing.T) {
	tests := [][]string{
		{},
		{"-m", "burst"},
		{"-m", "send", "-i", "0"},
		{"-m", "file"},
		{"-m", "loopback", "-c", "9X1"},
	}

	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, run(args, &stdout, &stderr), "args %v", args)
		assert.Contains(t, stderr.String(), "Error:")
		assert.Empty(t, stdout.String())
	}
}

func TestListPorts(t *testing.T) {
	var stdout, stderr bytes.Buffer
	scanner := &stubScanner{ports: []*discovery.PortInfo{
		{Name: "/dev/ttyAMA0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
	}}
	assert.Equal(t, 0, listPorts(context.Background(), scanner, &stdout, &stderr))
	assert.Equal(t, "/dev/ttyAMA0\n/dev/ttyUSB0 [USB 0403:6001]\n", stdout.String())

	stdout.Reset()
	assert.Equal(t, 0, listPorts(context.Background(), &stubScanner{}, &stdout, &stderr))
	assert.Equal(t, "No serial ports found\n", stdout.String())

	assert.Equal(t, 1, listPorts(context.Background(), &stubScanner{err: errors.New("denied")}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "denied")
}
