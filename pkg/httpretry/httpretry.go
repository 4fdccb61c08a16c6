// Package httpretry sends JSON requests to upstream services with a small
// bounded retry on transport failures and 5xx answers.
package httpretry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
)

const errorBodyLimit int64 = 1024

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError
}

// Policy bounds the retries of one call.
type Policy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy retries twice starting at 200ms.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p Policy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Request describes one JSON call.
type Request struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
}

// DoJSON sends req and decodes a 2xx body into out (when out is non-nil).
// 4xx answers fail immediately; transport errors and 5xx are retried per
// policy. Errors are CodeDependency.
func DoJSON(ctx context.Context, client Doer, policy Policy, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal request")
		}
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
		if err != nil {
			return err
		}
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		httpReq.Header.Set("Accept", "application/json")
		for k, v := range req.Headers {
			if v != "" {
				httpReq.Header.Set(k, v)
			}
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
			statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
			if statusErr.Temporary() {
				return retry.RetryableError(statusErr)
			}
			return statusErr
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", method, redact(req.URL)))
	}
	return nil
}

// IsStatus reports whether err carries an upstream status code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
