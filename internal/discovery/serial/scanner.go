// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"uart-assist/internal/discovery"
)

// DetailLister returns ports with USB details
type DetailLister func() ([]*enumerator.PortDetails, error)

// NameLister returns bare port names
type NameLister func() ([]string, error)

// Scanner implements serial port enumeration
type Scanner struct {
	logger   *zap.Logger
	details  DetailLister
	names    NameLister
	patterns []string
}

// NewScanner creates a scanner backed by go.bug.st/serial
func NewScanner(logger *zap.Logger) *Scanner {
	return NewScannerWith(logger, enumerator.GetDetailedPortsList, serial.GetPortsList, nil)
}

// NewScannerWith creates a scanner with explicit listers. An empty pattern
// list keeps every port.
func NewScannerWith(logger *zap.Logger, details DetailLister, names NameLister, patterns []string) *Scanner {
	return &Scanner{
		logger:   logger.With(zap.String("scanner", "serial")),
		details:  details,
		names:    names,
		patterns: patterns,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// Scan lists serial ports, falling back to bare names when USB details are
// unavailable on this platform
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.PortInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var ports []*discovery.PortInfo

	details, err := s.details()
	if err == nil {
		for _, d := range details {
			ports = append(ports, &discovery.PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
	} else {
		s.logger.Debug("Detailed port list unavailable", zap.Error(err))

		names, err := s.names()
		if err != nil {
			return nil, fmt.Errorf("failed to get serial ports: %w", err)
		}
		for _, name := range names {
			ports = append(ports, &discovery.PortInfo{Name: name})
		}
	}

	ports = s.filterPorts(ports)
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })

	s.logger.Debug("Serial scan completed", zap.Int("ports_found", len(ports)))
	return ports, nil
}

func (s *Scanner) filterPorts(ports []*discovery.PortInfo) []*discovery.PortInfo {
	if len(s.patterns) == 0 {
		return ports
	}

	filtered := make([]*discovery.PortInfo, 0, len(ports))
	for _, port := range ports {
		for _, pattern := range s.patterns {
			if strings.Contains(port.Name, pattern) {
				filtered = append(filtered, port)
				break
			}
		}
	}
	return filtered
}
