package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"service-ninja/internal/domain"
)

// positiveTokens are the body values treated as a healthy indication.
var positiveTokens = map[string]bool{
	"ok":      true,
	"up":      true,
	"healthy": true,
	"pass":    true,
	"success": true,
}

// circuitOpenError marks a probe that was short-circuited by an open breaker.
// It classifies as a connection failure: the host was failing when the
// circuit opened.
type circuitOpenError struct {
	host string
}

func (e *circuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for host %s", e.host)
}

// classifyError buckets a transport error into the result error_type.
func classifyError(err error) domain.ErrorType {
	var coe *circuitOpenError
	if errors.As(err, &coe) {
		return domain.ErrorTypeConnection
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorTypeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrorTypeTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.ErrorTypeConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.ErrorTypeConnection
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return domain.ErrorTypeRequest
	}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domain.ErrorTypeRequest
	}
	return domain.ErrorTypeUnknown
}

// parseHealthBody decodes a JSON health payload when the Content-Type says
// JSON. Non-JSON responses yield a nil map.
func parseHealthBody(headers map[string]string, body string) (map[string]any, *domain.HealthDetails) {
	contentType := ""
	for name, value := range headers {
		if strings.EqualFold(name, "Content-Type") {
			contentType = value
			break
		}
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
		return nil, nil
	}

	var healthData map[string]any
	if err := json.Unmarshal([]byte(body), &healthData); err != nil {
		return nil, nil
	}

	details := &domain.HealthDetails{
		Version:   healthData["version"],
		Uptime:    healthData["uptime"],
		Timestamp: healthData["timestamp"],
	}
	details.Checks, _ = healthData["checks"].(map[string]any)
	details.Dependencies, _ = healthData["dependencies"].(map[string]any)
	details.Services, _ = healthData["services"].(map[string]any)
	return healthData, details
}

// isHealthy decides health from status code and decoded body. A 2xx response
// with no recognizable health field is healthy by status code alone.
func isHealthy(statusCode int, healthData map[string]any) bool {
	if statusCode < 200 || statusCode >= 300 {
		return false
	}
	if healthData == nil {
		return true
	}

	recognized := false
	if status, ok := healthData["status"].(string); ok {
		recognized = true
		if positiveTokens[strings.ToLower(status)] {
			return true
		}
	}
	if healthField, ok := healthData["health"].(string); ok {
		recognized = true
		if positiveTokens[strings.ToLower(healthField)] {
			return true
		}
	}
	if healthy, ok := healthData["healthy"].(bool); ok {
		recognized = true
		if healthy {
			return true
		}
	}
	if okField, ok := healthData["ok"].(bool); ok {
		recognized = true
		if okField {
			return true
		}
	}
	return !recognized
}
