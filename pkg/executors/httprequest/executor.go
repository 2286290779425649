// Package httprequest provides a task executor that calls an external HTTP
// endpoint, typically a webhook into another system of record.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vantagecrm/leadflow/pkg/protocol"
)

const defaultTimeoutSeconds = 30

var (
	ErrHostInvalid = errors.New("http request host is missing or invalid")
	ErrServerError = errors.New("server error, retrying")
)

// Executor performs an HTTP request with optional headers, body, and retry
// behavior.
type Executor struct {
	Method   string
	Protocol string
	Host     string
	Path     string
	Headers  map[string]string
	Body     string
	Timeout  time.Duration
	Retry    RetryConfig
}

// RetryConfig defines retry behavior for failed requests.
type RetryConfig struct {
	Attempts int
	Delay    int
}

func NewExecutor(parameters map[string]any) (*Executor, error) {
	method, _ := parameters["method"].(string)

	host, ok := parameters["host"].(string)
	if !ok || host == "" {
		return nil, fmt.Errorf("missing or invalid 'host' in parameters: %w", ErrHostInvalid)
	}

	path, _ := parameters["path"].(string)
	if path == "" {
		path = "/"
	}

	scheme, _ := parameters["protocol"].(string)
	if scheme == "" {
		scheme = "https"
	}

	body, _ := parameters["body"].(string)

	headers := make(map[string]string)

	if headersConfig, exists := parameters["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	retry := RetryConfig{Attempts: 1, Delay: 0}
	if retryConfig, exists := parameters["retry"]; exists {
		retry = parseRetryConfig(retryConfig)
	}

	if method == "" {
		method = http.MethodGet
	}

	return &Executor{
		Method:   strings.ToUpper(method),
		Protocol: scheme,
		Host:     host,
		Path:     path,
		Headers:  headers,
		Body:     body,
		Timeout:  defaultTimeoutSeconds * time.Second,
		Retry:    retry,
	}, nil
}

func parseRetryConfig(retryConfig any) RetryConfig {
	retry := RetryConfig{Attempts: 1, Delay: 0}

	retryMap, ok := retryConfig.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok {
		retry.Attempts = int(attempts)
	}

	if delay, ok := retryMap["delay"].(float64); ok {
		retry.Delay = int(delay)
	}

	return retry
}

func (e *Executor) url() string {
	return e.Protocol + "://" + e.Host + e.Path
}

func (e *Executor) Execute(ctx context.Context, input protocol.ExecutionInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With(
		"executor_type", "http_request",
		"instance_id", input.InstanceID,
		"method", e.Method,
		"host", e.Host,
	)
	logger.Info("Executing HTTP request task")

	statusCode, bodyBytes, err := e.doWithRetry(ctx, logger)
	if err != nil {
		return nil, err
	}

	var body any
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		body = string(bodyBytes)
	}

	logger.Info("HTTP request task completed", "status_code", statusCode)

	return map[string]any{
		"status_code": statusCode,
		"body":        body,
	}, nil
}

// doWithRetry performs the request and drains the response body before the
// per-attempt timeout context is cancelled; cancelling earlier would abort
// the body read mid-stream.
func (e *Executor) doWithRetry(ctx context.Context, logger *slog.Logger) (int, []byte, error) {
	var lastErr error

	client := &http.Client{}

	for attempt := 1; attempt <= e.Retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.Info("Retrying HTTP request", "attempt", attempt, "max_attempts", e.Retry.Attempts)
			time.Sleep(time.Duration(e.Retry.Delay) * time.Second)
		}

		retryOnServerError := attempt < e.Retry.Attempts

		statusCode, bodyBytes, err := e.doAttempt(ctx, client, logger, retryOnServerError)
		if err != nil {
			lastErr = err

			continue
		}

		return statusCode, bodyBytes, nil
	}

	return 0, nil, fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
}

func (e *Executor) doAttempt(ctx context.Context, client *http.Client, logger *slog.Logger, retryOnServerError bool) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if e.Body != "" {
		bodyReader = strings.NewReader(e.Body)
	}

	req, err := http.NewRequestWithContext(reqCtx, e.Method, e.url(), bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range e.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode >= http.StatusInternalServerError && retryOnServerError {
		return 0, nil, fmt.Errorf("%w (status %d)", ErrServerError, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, bodyBytes, nil
}
