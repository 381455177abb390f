package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 15 * time.Second
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// Do executes the request built by newReq and returns the body of a 200
// response. Non-200 answers and transport failures become ProviderErrors;
// retryable ones are retried with exponential backoff. newReq is called once
// per attempt so request bodies can be rebuilt.
func Do(ctx context.Context, client *http.Client, provider string, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	var lastErr error
	for attempt := range maxAttempts {
		body, err := doOnce(ctx, client, provider, newReq)
		if err == nil {
			return body, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt < maxAttempts-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

func doOnce(ctx context.Context, client *http.Client, provider string, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	req, err := newReq(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, NewProviderError(CategoryTimeout, provider, "request timed out", err)
		}
		return nil, NewProviderError(CategoryOutage, provider, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewProviderError(CategoryOutage, provider, "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
		return nil, NewProviderError(StatusCategory(resp.StatusCode), provider, msg, nil)
	}
	return body, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
