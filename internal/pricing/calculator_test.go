package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlplane/internal/models"
	"controlplane/internal/storage"
)

type stubSource struct {
	rows  map[string]*models.PricingModel
	err   error
	calls int
}

func (s *stubSource) Get(ctx context.Context, providerType, model string) (*models.PricingModel, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	row, ok := s.rows[providerType+"/"+model]
	if !ok {
		return nil, storage.ErrPricingNotFound
	}
	return row, nil
}

func newSource() *stubSource {
	return &stubSource{
		rows: map[string]*models.PricingModel{
			"openai/gpt-4o": {
				ProviderType:    "openai",
				Model:           "gpt-4o",
				InputCostPer1K:  models.MicroUSD(2500), // $0.0025 per 1K in
				OutputCostPer1K: models.MicroUSD(10000), // $0.01 per 1K out
				Enabled:         true,
			},
		},
	}
}

func TestCalculator_Cost(t *testing.T) {
	calc := NewCalculator(newSource(), 0, 0)
	ctx := context.Background()

	cost, err := calc.Cost(ctx, "openai", "gpt-4o", 1000, 500)
	require.NoError(t, err)
	assert.False(t, cost.Unpriced)
	// 1000 * 2500/1000 + 500 * 10000/1000 = 2500 + 5000
	assert.Equal(t, models.MicroUSD(7500), cost.MicroUSD)
	assert.InDelta(t, 0.0075, cost.USD(), 1e-9)
}

func TestCalculator_Cost_ZeroTokensZeroCost(t *testing.T) {
	calc := NewCalculator(newSource(), 0, 0)

	cost, err := calc.Cost(context.Background(), "openai", "gpt-4o", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, models.MicroUSD(0), cost.MicroUSD)
}

func TestCalculator_Cost_Monotonic(t *testing.T) {
	calc := NewCalculator(newSource(), 0, 0)
	ctx := context.Background()

	base, err := calc.Cost(ctx, "openai", "gpt-4o", 1000, 1000)
	require.NoError(t, err)

	moreIn, err := calc.Cost(ctx, "openai", "gpt-4o", 2000, 1000)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, moreIn.MicroUSD, base.MicroUSD)

	moreOut, err := calc.Cost(ctx, "openai", "gpt-4o", 1000, 2000)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, moreOut.MicroUSD, base.MicroUSD)
}

func TestCalculator_Cost_UnpricedModel(t *testing.T) {
	source := newSource()
	calc := NewCalculator(source, 0, 0)
	ctx := context.Background()

	cost, err := calc.Cost(ctx, "openai", "gpt-unknown", 1000, 1000)
	require.NoError(t, err)
	assert.True(t, cost.Unpriced)
	assert.Equal(t, models.MicroUSD(0), cost.MicroUSD)

	// The miss is cached: exact and wildcard lookups happen once, then nothing.
	calls := source.calls
	_, err = calc.Cost(ctx, "openai", "gpt-unknown", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, calls, source.calls)
}

func TestCalculator_Cost_ProviderTypeAliases(t *testing.T) {
	source := &stubSource{
		rows: map[string]*models.PricingModel{
			"aws-bedrock/claude-3-haiku": {
				ProviderType:    "aws-bedrock",
				Model:           "claude-3-haiku",
				InputCostPer1K:  models.MicroUSD(250),
				OutputCostPer1K: models.MicroUSD(1250),
				Enabled:         true,
			},
		},
	}
	calc := NewCalculator(source, 0, 0)
	ctx := context.Background()

	// Providers stored with alias types price against the canonical row.
	for _, alias := range []string{"aws", "bedrock", "AWS-Bedrock"} {
		cost, err := calc.Cost(ctx, alias, "claude-3-haiku", 1000, 1000)
		require.NoError(t, err)
		assert.False(t, cost.Unpriced, "alias %q", alias)
		assert.Equal(t, models.MicroUSD(1500), cost.MicroUSD, "alias %q", alias)
	}

	// All aliases share one cache entry.
	assert.Equal(t, 1, source.calls)
}

func TestCalculator_Cost_WildcardFallback(t *testing.T) {
	source := &stubSource{
		rows: map[string]*models.PricingModel{
			"google-vertex/*": {
				ProviderType:    "google-vertex",
				Model:           WildcardModel,
				InputCostPer1K:  models.MicroUSD(1000),
				OutputCostPer1K: models.MicroUSD(2000),
				Enabled:         true,
			},
			"google-vertex/gemini-pro": {
				ProviderType:    "google-vertex",
				Model:           "gemini-pro",
				InputCostPer1K:  models.MicroUSD(500),
				OutputCostPer1K: models.MicroUSD(1500),
				Enabled:         true,
			},
		},
	}
	calc := NewCalculator(source, 0, 0)
	ctx := context.Background()

	// An exact row wins over the wildcard.
	cost, err := calc.Cost(ctx, "google-vertex", "gemini-pro", 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, models.MicroUSD(2000), cost.MicroUSD)

	// Models without an exact row price against the wildcard.
	cost, err = calc.Cost(ctx, "vertexai", "gemini-flash", 1000, 1000)
	require.NoError(t, err)
	assert.False(t, cost.Unpriced)
	assert.Equal(t, models.MicroUSD(3000), cost.MicroUSD)
}

func TestCalculator_Cost_CachesRows(t *testing.T) {
	source := newSource()
	calc := NewCalculator(source, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := calc.Cost(ctx, "openai", "gpt-4o", 100, 100)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, source.calls)
}

func TestCalculator_Cost_SourceError(t *testing.T) {
	source := &stubSource{err: errors.New("db down")}
	calc := NewCalculator(source, 0, 0)

	_, err := calc.Cost(context.Background(), "openai", "gpt-4o", 1, 1)
	assert.Error(t, err)
}

func TestCalculator_Cost_TruncatesSubMicro(t *testing.T) {
	source := &stubSource{
		rows: map[string]*models.PricingModel{
			"openai/tiny": {
				ProviderType:    "openai",
				Model:           "tiny",
				InputCostPer1K:  models.MicroUSD(75), // $0.000075 per 1K
				OutputCostPer1K: models.MicroUSD(75),
				Enabled:         true,
			},
		},
	}
	calc := NewCalculator(source, 0, 0)

	// 7 tokens * 75 / 1000 = 0.525 micro-USD, truncates to 0.
	cost, err := calc.Cost(context.Background(), "openai", "tiny", 7, 0)
	require.NoError(t, err)
	assert.Equal(t, models.MicroUSD(0), cost.MicroUSD)
}
