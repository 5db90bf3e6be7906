package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/openai/openai-go"

	"dailysignal/pkg/faults"
	"dailysignal/pkg/retry"
)

// RetryPolicy builds the attempt budget from MaxRetries (retries after the
// first call).
func RetryPolicy(maxRetries int) retry.Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return retry.New(retry.Policy{Attempts: maxRetries + 1})
}

// classify tags SDK and transport errors with the pipeline fault kinds:
// rejected credentials are configuration errors, throttling, timeouts and
// server errors are retryable outages.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return faults.Mark(faults.KindConfiguration, err)
		case http.StatusTooManyRequests,
			http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return faults.Mark(faults.KindProviderUnavailable, err)
		default:
			return err
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return faults.Mark(faults.KindProviderUnavailable, err)
	}
	return err
}
