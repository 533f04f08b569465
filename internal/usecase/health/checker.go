// Package health implements the HTTP probe engine: single-service health and
// liveness checks plus fleet-wide sweeps. Every public operation is total —
// probe failures of any kind come back as structured results, never as error
// returns or panics.
package health

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"service-ninja/internal/domain"
	"service-ninja/internal/infra/config"
	"service-ninja/internal/infra/tracer"
	"service-ninja/internal/usecase/eventbus"
)

// Placeholder display names used when a referenced entity cannot be resolved.
const (
	unknownProject     = "Unknown Project"
	unknownEnvironment = "Unknown Environment"
)

// Response body caps, matching what callers can usefully display.
const (
	healthBodyLimit = 1000
	aliveBodyLimit  = 500
)

// DefaultTimeoutSec applies when a caller passes a non-positive probe timeout.
const DefaultTimeoutSec = 30

// Checker probes individual services. One circuit breaker per endpoint host
// keeps a flapping host from absorbing probe traffic.
type Checker struct {
	store      domain.Store
	logger     *slog.Logger
	bus        domain.EventBus
	cfg        config.ProbeConfig
	passphrase string
	client     *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*probeOutcome]
}

// probeOutcome is the raw result of one HTTP exchange, before classification.
// body is capped for display; fullBody is what classification parses.
type probeOutcome struct {
	statusCode int
	headers    map[string]string
	body       string
	fullBody   string
	elapsed    time.Duration
}

// NewChecker builds a probe engine over the given store. bus may be nil when
// no one consumes probe events.
func NewChecker(store domain.Store, cfg config.ProbeConfig, logger *slog.Logger, bus domain.EventBus) *Checker {
	return &Checker{
		store:      store,
		logger:     logger,
		bus:        bus,
		cfg:        cfg,
		passphrase: config.Passphrase(),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker[*probeOutcome]),
	}
}

// CheckHealth probes the health endpoint of the service identified by
// (name, project, env) and classifies the response.
func (c *Checker) CheckHealth(ctx context.Context, serviceName, projectID, envID string, timeoutSec int) (result *domain.CheckResult) {
	if timeoutSec <= 0 {
		timeoutSec = DefaultTimeoutSec
	}

	projectName, envName := unknownProject, unknownEnvironment
	endpointURL := ""

	// Probes stay total even when something below panics.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("health check panicked", "service", serviceName, "panic", r)
			result = &domain.CheckResult{
				ServiceName: serviceName,
				ProjectName: projectName,
				EnvName:     envName,
				ProjectID:   projectID,
				EnvID:       envID,
				EndpointURL: endpointURL,
				ErrorType:   domain.ErrorTypeUnknown,
				Message:     fmt.Sprintf("Unexpected error checking service '%s': %v", serviceName, r),
			}
		}
		c.publishCheck(ctx, result)
	}()

	ctx, span := tracer.StartSpan(ctx, "health.check",
		tracer.StringAttr("service", serviceName),
		tracer.StringAttr("project_id", projectID),
		tracer.StringAttr("env_id", envID),
		tracer.IntAttr("timeout_sec", timeoutSec),
	)
	defer span.End()

	svc, err := c.store.FindService(ctx, serviceName, projectID, envID)
	if err != nil {
		return &domain.CheckResult{
			Message: fmt.Sprintf("Service '%s' not found for project/environment combination", serviceName),
		}
	}

	projectName, envName = c.displayNames(ctx, projectID, envID)

	endpointURL = svc.ProbeURL()
	if endpointURL == "" {
		return &domain.CheckResult{
			ServiceName: serviceName,
			ProjectName: projectName,
			EnvName:     envName,
			Message:     fmt.Sprintf("Service '%s' has no health check URL configured", serviceName),
		}
	}

	outcome, err := c.probe(ctx, endpointURL, svc.APIKey, timeoutSec, healthBodyLimit)
	if err != nil {
		errorType := classifyError(err)
		return &domain.CheckResult{
			ServiceName: serviceName,
			ProjectName: projectName,
			EnvName:     envName,
			ProjectID:   projectID,
			EnvID:       envID,
			EndpointURL: endpointURL,
			ErrorType:   errorType,
			Message:     failureMessage(serviceName, errorType, timeoutSec, err),
			TimeoutSec:  timeoutIf(errorType, timeoutSec),
		}
	}

	healthData, details := parseHealthBody(outcome.headers, outcome.fullBody)
	healthy := isHealthy(outcome.statusCode, healthData)
	span.SetAttributes(tracer.BoolAttr("healthy", healthy))

	word := "unhealthy"
	if healthy {
		word = "healthy"
	}
	return &domain.CheckResult{
		Success:        true,
		ServiceName:    serviceName,
		ProjectName:    projectName,
		EnvName:        envName,
		ProjectID:      projectID,
		EnvID:          envID,
		EndpointURL:    endpointURL,
		IsHealthy:      healthy,
		StatusCode:     outcome.statusCode,
		ResponseTimeMS: roundMS(outcome.elapsed),
		HealthData:     healthData,
		HealthDetails:  details,
		Message: fmt.Sprintf("Service '%s' in %s/%s is %s (HTTP %d)",
			serviceName, projectName, envName, word, outcome.statusCode),
		ResponseHeader: outcome.headers,
		ResponseBody:   outcome.body,
	}
}

// CheckHealthByID resolves the service record by id, then runs the usual
// health check against its own (name, project, env) coordinates.
func (c *Checker) CheckHealthByID(ctx context.Context, serviceID string, timeoutSec int) *domain.CheckResult {
	svc, err := c.store.GetServiceByID(ctx, serviceID)
	if err != nil {
		return &domain.CheckResult{
			Message: fmt.Sprintf("Service with ID '%s' not found", serviceID),
		}
	}
	return c.CheckHealth(ctx, svc.Name, svc.ProjectID, svc.EnvID, timeoutSec)
}

// CheckAlive probes for bare liveness: any 2xx means alive, the body is not
// inspected. The alive URL is preferred over the health URL.
func (c *Checker) CheckAlive(ctx context.Context, serviceName, projectID, envID string, timeoutSec int) (result *domain.AliveResult) {
	if timeoutSec <= 0 {
		timeoutSec = DefaultTimeoutSec
	}

	projectName, envName := unknownProject, unknownEnvironment
	endpointURL := ""

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("alive check panicked", "service", serviceName, "panic", r)
			result = &domain.AliveResult{
				ServiceName: serviceName,
				ProjectName: projectName,
				EnvName:     envName,
				EndpointURL: endpointURL,
				ErrorType:   domain.ErrorTypeUnknown,
				Message:     fmt.Sprintf("Unexpected error checking service '%s': %v", serviceName, r),
			}
		}
	}()

	ctx, span := tracer.StartSpan(ctx, "health.alive",
		tracer.StringAttr("service", serviceName),
		tracer.StringAttr("project_id", projectID),
		tracer.StringAttr("env_id", envID),
		tracer.IntAttr("timeout_sec", timeoutSec),
	)
	defer span.End()

	svc, err := c.store.FindService(ctx, serviceName, projectID, envID)
	if err != nil {
		return &domain.AliveResult{
			Message: fmt.Sprintf("Service '%s' not found for project/environment combination", serviceName),
		}
	}

	projectName, envName = c.displayNames(ctx, projectID, envID)

	endpointURL = svc.AliveCheckURL
	if endpointURL == "" {
		endpointURL = svc.HealthCheckURL
	}
	if endpointURL == "" {
		return &domain.AliveResult{
			ServiceName: serviceName,
			ProjectName: projectName,
			EnvName:     envName,
			Message:     fmt.Sprintf("Service '%s' has no health check URL configured", serviceName),
		}
	}

	outcome, err := c.probe(ctx, endpointURL, "", timeoutSec, aliveBodyLimit)
	if err != nil {
		errorType := classifyError(err)
		return &domain.AliveResult{
			ServiceName: serviceName,
			ProjectName: projectName,
			EnvName:     envName,
			EndpointURL: endpointURL,
			ErrorType:   errorType,
			Message:     failureMessage(serviceName, errorType, timeoutSec, err),
			TimeoutSec:  timeoutIf(errorType, timeoutSec),
		}
	}

	alive := outcome.statusCode >= 200 && outcome.statusCode < 300
	span.SetAttributes(tracer.BoolAttr("alive", alive))
	word := "not responding"
	if alive {
		word = "alive"
	}
	return &domain.AliveResult{
		Success:        true,
		ServiceName:    serviceName,
		ProjectName:    projectName,
		EnvName:        envName,
		EndpointURL:    endpointURL,
		IsAlive:        alive,
		StatusCode:     outcome.statusCode,
		ResponseTimeMS: roundMS(outcome.elapsed),
		Message: fmt.Sprintf("Service '%s' in %s/%s is %s (HTTP %d)",
			serviceName, projectName, envName, word, outcome.statusCode),
		ResponseHeader: outcome.headers,
		ResponseBody:   outcome.body,
	}
}

// probe performs a single GET through the endpoint host's circuit breaker.
func (c *Checker) probe(ctx context.Context, endpointURL, apiKey string, timeoutSec int, bodyLimit int) (*probeOutcome, error) {
	breaker := c.breakerFor(endpointURL)
	if breaker == nil {
		return c.doRequest(ctx, endpointURL, apiKey, timeoutSec, bodyLimit)
	}
	outcome, err := breaker.Execute(func() (*probeOutcome, error) {
		return c.doRequest(ctx, endpointURL, apiKey, timeoutSec, bodyLimit)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, &circuitOpenError{host: hostOf(endpointURL)}
	}
	return outcome, err
}

func (c *Checker) doRequest(ctx context.Context, endpointURL, apiKey string, timeoutSec, bodyLimit int) (*probeOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, err
	}
	userAgent := c.cfg.UserAgent
	if userAgent == "" {
		userAgent = "Service-Ninja-Agent/1.0"
	}
	req.Header.Set("User-Agent", userAgent)
	if apiKey != "" {
		key, err := c.resolveAPIKey(apiKey)
		if err != nil {
			return nil, err
		}
		req.Header.Set("apikey", key)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := c.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	full := string(body)
	text := full
	if len(text) > bodyLimit {
		text = text[:bodyLimit]
	}
	return &probeOutcome{
		statusCode: resp.StatusCode,
		headers:    headers,
		body:       text,
		fullBody:   full,
		elapsed:    elapsed,
	}, nil
}

// resolveAPIKey decrypts enc:-prefixed keys; plaintext keys pass through.
func (c *Checker) resolveAPIKey(apiKey string) (string, error) {
	if !config.IsEncrypted(apiKey) {
		return apiKey, nil
	}
	key, err := config.DecryptValue(strings.TrimPrefix(apiKey, config.EncPrefix), c.passphrase)
	if err != nil {
		return "", domain.NewDomainError("Checker.resolveAPIKey", domain.ErrDecryption, err.Error())
	}
	return key, nil
}

// breakerFor returns the circuit breaker guarding the endpoint's host, lazily
// creating it. Disabled breakers (MaxFailures 0) return nil.
func (c *Checker) breakerFor(endpointURL string) *gobreaker.CircuitBreaker[*probeOutcome] {
	if c.cfg.Breaker.MaxFailures == 0 {
		return nil
	}
	host := hostOf(endpointURL)
	if host == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	maxFailures := c.cfg.Breaker.MaxFailures
	cb := gobreaker.NewCircuitBreaker[*probeOutcome](gobreaker.Settings{
		Name:        "probe:" + host,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    c.cfg.Breaker.Interval,
		Timeout:     c.cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	c.breakers[host] = cb
	return cb
}

func (c *Checker) displayNames(ctx context.Context, projectID, envID string) (string, string) {
	projectName, envName := unknownProject, unknownEnvironment
	if p, err := c.store.GetProjectByID(ctx, projectID); err == nil {
		projectName = p.Name
	}
	if e, err := c.store.GetEnvironmentByID(ctx, envID); err == nil {
		envName = e.Name
	}
	return projectName, envName
}

func (c *Checker) publishCheck(ctx context.Context, result *domain.CheckResult) {
	if c.bus == nil || result == nil {
		return
	}
	c.bus.Publish(ctx, eventbus.NewEvent(domain.EventCheckCompleted, result))
}

// failureMessage renders the user-facing message for a failed probe.
func failureMessage(serviceName string, errorType domain.ErrorType, timeoutSec int, err error) string {
	switch errorType {
	case domain.ErrorTypeTimeout:
		return fmt.Sprintf("Service '%s' health check timed out after %d seconds", serviceName, timeoutSec)
	case domain.ErrorTypeConnection:
		return fmt.Sprintf("Service '%s' is unreachable - connection failed", serviceName)
	case domain.ErrorTypeRequest:
		return fmt.Sprintf("Service '%s' health check failed: %v", serviceName, err)
	default:
		return fmt.Sprintf("Unexpected error checking service '%s': %v", serviceName, err)
	}
}

// timeoutIf reports the configured timeout only on timeout failures, matching
// the result contract.
func timeoutIf(errorType domain.ErrorType, timeoutSec int) int {
	if errorType == domain.ErrorTypeTimeout {
		return timeoutSec
	}
	return 0
}

func roundMS(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000.0
	return float64(int(ms*100+0.5)) / 100
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
