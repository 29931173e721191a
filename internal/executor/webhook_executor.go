package executor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/retry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// DefaultWebhookTimeout bounds webhook calls that do not configure
// their own timeout.
const DefaultWebhookTimeout = 30 * time.Second

const maxBodySnippet = 256

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.Code, e.Body)
}

// StatusCode returns the HTTP status code of the response.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// WebhookExecutor delivers step payloads to external HTTP endpoints.
// Requests share one pooled client.
type WebhookExecutor struct {
	BaseExecutor
	client         *fasthttp.Client
	defaultTimeout time.Duration
}

// NewWebhookExecutor creates a webhook executor. A nil client gets a
// pooled default; a non-positive timeout falls back to
// DefaultWebhookTimeout.
func NewWebhookExecutor(client *fasthttp.Client, defaultTimeout time.Duration) *WebhookExecutor {
	if client == nil {
		client = &fasthttp.Client{
			MaxConnsPerHost:     512,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         DefaultWebhookTimeout,
			WriteTimeout:        DefaultWebhookTimeout,
		}
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultWebhookTimeout
	}
	return &WebhookExecutor{
		BaseExecutor:   NewBaseExecutor(types.StepKindWebhook),
		client:         client,
		defaultTimeout: defaultTimeout,
	}
}

// Execute sends the configured request and reports the response status
// and decoded body.
func (e *WebhookExecutor) Execute(ctx context.Context, step *types.StepDefinition, input map[string]any, execCtx *ExecutionContext) (*Result, error) {
	cfg := step.Webhook
	if cfg == nil {
		return nil, types.NewConfigurationError("webhook step missing webhook configuration: " + step.ID)
	}
	if err := validateWebhookURL(cfg.URL); err != nil {
		return nil, types.NewConfigurationError("invalid webhook url in step " + step.ID).WithCause(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = fasthttp.MethodPost
	}

	var payload any = input
	if cfg.Body != nil {
		payload = cfg.Body
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return nil, e.failf(step.ID, "encode webhook body: %s", err.Error()).WithCause(err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(cfg.URL)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	if err := e.client.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) || time.Now().After(deadline) {
			return nil, e.failf(step.ID, "webhook timed out after %s", timeout).
				MarkRetryable().WithCause(err)
		}
		stepErr := e.failf(step.ID, "webhook request failed: %s", err.Error()).WithCause(err)
		if retry.IsRetryable(err) {
			stepErr.MarkRetryable()
		}
		return nil, stepErr
	}

	status := resp.StatusCode()
	respBody := append([]byte(nil), resp.Body()...)

	if status < 200 || status > 299 {
		statusErr := &StatusError{Code: status, Body: bodySnippet(respBody)}
		stepErr := e.failf(step.ID, "%s", statusErr.Error()).WithCause(statusErr)
		if retry.IsRetryable(statusErr) {
			stepErr.MarkRetryable()
		}
		return nil, stepErr
	}

	return &Result{Output: map[string]any{
		"status": status,
		"body":   decodeWebhookBody(respBody),
	}}, nil
}

// validateWebhookURL requires an absolute http or https URL with a host.
func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() {
		return fmt.Errorf("url must be absolute: %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %q", raw)
	}
	return nil
}

// decodeWebhookBody returns the response body as decoded JSON when it
// parses, the raw string otherwise.
func decodeWebhookBody(body []byte) any {
	if len(body) == 0 {
		return ""
	}
	var decoded any
	if err := sonic.Unmarshal(body, &decoded); err == nil {
		return decoded
	}
	return string(body)
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodySnippet {
		s = s[:maxBodySnippet]
	}
	return s
}
