package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/require"

	"dailysignal/pkg/faults"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want faults.Kind
	}{
		{name: "nil", err: nil, want: faults.KindNone},
		{name: "rate limited", err: &openai.Error{StatusCode: http.StatusTooManyRequests}, want: faults.KindProviderUnavailable},
		{name: "request timeout", err: &openai.Error{StatusCode: http.StatusRequestTimeout}, want: faults.KindProviderUnavailable},
		{name: "server error", err: &openai.Error{StatusCode: http.StatusInternalServerError}, want: faults.KindProviderUnavailable},
		{name: "gateway timeout", err: &openai.Error{StatusCode: http.StatusGatewayTimeout}, want: faults.KindProviderUnavailable},
		{name: "unauthorized", err: &openai.Error{StatusCode: http.StatusUnauthorized}, want: faults.KindConfiguration},
		{name: "forbidden", err: &openai.Error{StatusCode: http.StatusForbidden}, want: faults.KindConfiguration},
		{name: "bad request", err: &openai.Error{StatusCode: http.StatusBadRequest}, want: faults.KindUnknown},
		{name: "dial error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: faults.KindProviderUnavailable},
		{name: "truncated body", err: fmt.Errorf("read: %w", io.ErrUnexpectedEOF), want: faults.KindProviderUnavailable},
		{name: "cancelled", err: context.Canceled, want: faults.KindUnknown},
		{name: "plain", err: errors.New("boom"), want: faults.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, faults.KindOf(classify(tt.err)))
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	require.Equal(t, 3, RetryPolicy(2).Attempts)
	require.Equal(t, 1, RetryPolicy(-4).Attempts)
}
