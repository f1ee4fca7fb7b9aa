package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"procurement-core/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	errs  []error
	calls int
	model string
}

func (p *scriptedProvider) Generate(context.Context, string) (*entity.Generation, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	return &entity.Generation{Content: "{}", Model: p.model}, nil
}

func TestResilientProvider_Generate_RetriesTransientErrors(t *testing.T) {
	primary := &scriptedProvider{errs: []error{errors.New("googleapi: Error 503: model overloaded")}, model: "primary"}
	r := NewResilientProvider(primary, nil, WithRetries(2, time.Millisecond))

	resp, err := r.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Model)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 1, resp.Metadata["retry_count"])
}

func TestResilientProvider_Generate_NoRetryOnPermanentError(t *testing.T) {
	primary := &scriptedProvider{errs: []error{errors.New("invalid api key")}}
	r := NewResilientProvider(primary, nil, WithRetries(2, time.Millisecond))

	_, err := r.Generate(context.Background(), "prompt")

	require.Error(t, err)
	assert.Equal(t, 1, primary.calls)
}

func TestResilientProvider_Generate_FallsBack(t *testing.T) {
	rateLimited := errors.New("429 rate limit")
	primary := &scriptedProvider{errs: []error{rateLimited, rateLimited, rateLimited}}
	fallback := &scriptedProvider{model: "fallback"}
	r := NewResilientProvider(primary, fallback, WithRetries(2, time.Millisecond))

	resp, err := r.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, "fallback", resp.Model)
	assert.Equal(t, true, resp.Metadata["fallback_used"])
}

func TestResilientProvider_Generate_BothFail(t *testing.T) {
	primary := &scriptedProvider{errs: []error{errors.New("bad request")}}
	fallback := &scriptedProvider{errs: []error{errors.New("also bad")}}
	r := NewResilientProvider(primary, fallback, WithRetries(0, time.Millisecond))

	_, err := r.Generate(context.Background(), "prompt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "both primary and fallback failed")
}

func TestResilientProvider_CalculateBackoff(t *testing.T) {
	r := NewResilientProvider(nil, nil, WithRetries(2, 100*time.Millisecond))

	for attempt, base := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond} {
		got := r.calculateBackoff(attempt)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+base/5)
	}
}
