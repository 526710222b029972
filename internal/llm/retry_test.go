package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	failures int
	calls    int
	err      error
	out      string
	lastOpts CallOptions
}

func (s *stubClient) GenerateContent(_ context.Context, _ string, _ ModelTier, opts ...CallOption) (string, error) {
	s.calls++
	s.lastOpts = ApplyOptions(opts...)
	if s.calls <= s.failures {
		return "", s.err
	}
	return s.out, nil
}

func (s *stubClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier, opts ...CallOption) (string, error) {
	return s.GenerateContent(ctx, prompt, tier, opts...)
}

func (s *stubClient) GetModel(ModelTier) string { return "stub-model" }
func (s *stubClient) Provider() Provider        { return "stub" }
func (s *stubClient) Close() error              { return nil }

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestRetryingClient_SucceedsAfterFailures(t *testing.T) {
	stub := &stubClient{failures: 2, err: errors.New("503"), out: "ok"}
	client := WithRetry(stub, fastRetry(3), nil)

	out, err := client.GenerateContent(context.Background(), "p", TierLite, WithTemperature(0.5))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, stub.calls)
	assert.InDelta(t, 0.5, *stub.lastOpts.Temperature, 1e-6)
}

func TestRetryingClient_GivesUp(t *testing.T) {
	cause := errors.New("quota")
	stub := &stubClient{failures: 10, err: cause}
	client := WithRetry(stub, fastRetry(2), nil)

	_, err := client.GenerateJSON(context.Background(), "p", TierLite)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, stub.calls)
}

func TestRetryingClient_NoRetries(t *testing.T) {
	cause := errors.New("boom")
	stub := &stubClient{failures: 1, err: cause}
	client := WithRetry(stub, fastRetry(0), nil)

	_, err := client.GenerateContent(context.Background(), "p", TierLite)
	assert.Equal(t, cause, err)
	assert.Equal(t, 1, stub.calls)
}

func TestRetryingClient_Cancelled(t *testing.T) {
	stub := &stubClient{out: "never"}
	client := WithRetry(stub, fastRetry(3), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GenerateContent(ctx, "p", TierLite)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stub.calls)
}

func TestRetryingClient_DelegatesMetadata(t *testing.T) {
	client := WithRetry(&stubClient{}, DefaultRetryConfig(), nil)
	assert.Equal(t, "stub-model", client.GetModel(TierAdvanced))
	assert.Equal(t, Provider("stub"), client.Provider())
}
