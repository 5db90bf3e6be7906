package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapAndKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"provider", Wrap(KindProviderUnavailable, "yahoo: http %d", 503), KindProviderUnavailable},
		{"incomplete", Wrap(KindDataIncomplete, "market: ma200 window short"), KindDataIncomplete},
		{"configuration", Wrap(KindConfiguration, "calendar: no trading day"), KindConfiguration},
		{"consistency", Wrap(KindConsistency, "store: snapshot differs"), KindConsistency},
		{"plain", errors.New("boom"), KindUnknown},
		{"nested", fmt.Errorf("step: %w", Wrap(KindConfiguration, "missing key")), KindConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapMessage(t *testing.T) {
	err := Wrap(KindProviderUnavailable, "serper: http %d", 502)
	require.EqualError(t, err, "serper: http 502: provider unavailable")
	require.True(t, Retryable(err))
	require.False(t, Fatal(err))
}

func TestMarkKeepsChain(t *testing.T) {
	err := Mark(KindProviderUnavailable, context.DeadlineExceeded)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrProviderUnavailable)

	already := Wrap(KindConfiguration, "x")
	require.Same(t, already, Mark(KindConfiguration, already))
	require.Nil(t, Mark(KindConfiguration, nil))
}

func TestConfigurationOutranks(t *testing.T) {
	err := Mark(KindConfiguration, Wrap(KindProviderUnavailable, "serper: http 401"))
	require.Equal(t, KindConfiguration, KindOf(err))
	require.True(t, Fatal(err))
	require.False(t, Retryable(err))
}
