// internal/discovery/scanner.go
package discovery

import (
	"context"
)

// PortScanner lists the serial devices a run could be pointed at
type PortScanner interface {
	Scan(ctx context.Context) ([]*PortInfo, error)
	GetScannerType() string
}

// PortInfo describes one serial device
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Label returns a one-line description for terminal listings
func (p *PortInfo) Label() string {
	if !p.IsUSB {
		return p.Name
	}
	label := p.Name + " [USB " + p.VID + ":" + p.PID
	if p.Product != "" {
		label += " " + p.Product
	}
	if p.SerialNumber != "" {
		label += " sn=" + p.SerialNumber
	}
	return label + "]"
}
