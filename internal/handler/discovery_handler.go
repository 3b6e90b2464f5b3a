// internal/handler/discovery_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"uart-assist/internal/discovery"
	"uart-assist/internal/utils"
)

const defaultScanTimeout = 5 * time.Second

// DiscoveryHandler lists the serial devices on the host
type DiscoveryHandler struct {
	scanner discovery.PortScanner
	logger  *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(scanner discovery.PortScanner, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		scanner: scanner,
		logger:  utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// ListPorts scans for serial devices. The optional timeout query bounds
// the scan (default 5s).
// @Summary List serial ports
// @Description Enumerate serial devices on the host, with USB details when available
// @Tags Ports
// @Produce json
// @Param timeout query string false "Scan timeout" default(5s)
// @Success 200 {object} utils.APIResponse "Port scan completed"
// @Failure 400 {object} utils.APIResponse "Invalid timeout"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /api/v1/ports [get]
func (h *DiscoveryHandler) ListPorts(c *gin.Context) {
	timeout := defaultScanTimeout
	if raw := c.Query("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			utils.ValidationErrorResponse(c, map[string]string{"timeout": "must be a positive duration such as 2s"})
			return
		}
		timeout = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	ports, err := h.scanner.Scan(ctx)
	if err != nil {
		h.logger.Error("Failed to scan ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", gin.H{
		"scanner":     h.scanner.GetScannerType(),
		"ports_found": len(ports),
		"ports":       ports,
	})
}
