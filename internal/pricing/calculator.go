package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"controlplane/internal/models"
	"controlplane/internal/storage"
	"controlplane/internal/utils"
)

// WildcardModel is the model value of a catch-all pricing row.
const WildcardModel = "*"

// Source looks up pricing rows.
type Source interface {
	Get(ctx context.Context, providerType, model string) (*models.PricingModel, error)
}

// Cost is a priced (or unpriced) invocation.
type Cost struct {
	MicroUSD models.MicroUSD
	// Unpriced marks models with no enabled pricing row. They cost
	// zero and are flagged in audit metadata rather than rejected.
	Unpriced bool
}

// USD converts for presentation.
func (c Cost) USD() float64 {
	return c.MicroUSD.USD()
}

// Calculator computes invocation cost from per-1000-token prices,
// reading pricing rows through a TTL cache. All arithmetic is integer
// micro-USD; fractions below a micro-dollar truncate toward zero.
type Calculator struct {
	source Source
	cache  *storage.LRUCache
	logger *utils.Logger
}

// NewCalculator creates a cost calculator.
func NewCalculator(source Source, cacheSize int, cacheTTL time.Duration) *Calculator {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Calculator{
		source: source,
		cache:  storage.NewLRUCache(cacheSize, cacheTTL),
		logger: utils.NewLogger("pricing"),
	}
}

// Cost prices an invocation. A missing pricing row yields a zero,
// Unpriced cost; only infrastructure failures return an error.
func (c *Calculator) Cost(ctx context.Context, providerType, model string, tokensIn, tokensOut int) (Cost, error) {
	pricing, err := c.lookup(ctx, providerType, model)
	if errors.Is(err, storage.ErrPricingNotFound) {
		c.logger.Warn("no pricing for model", "provider_type", providerType, "model", model)
		return Cost{Unpriced: true}, nil
	}
	if err != nil {
		return Cost{}, fmt.Errorf("pricing lookup failed: %w", err)
	}

	in := int64(tokensIn) * int64(pricing.InputCostPer1K) / 1000
	out := int64(tokensOut) * int64(pricing.OutputCostPer1K) / 1000

	return Cost{MicroUSD: models.MicroUSD(in + out)}, nil
}

func (c *Calculator) lookup(ctx context.Context, providerType, model string) (*models.PricingModel, error) {
	providerType = canonicalType(providerType)
	key := providerType + "/" + model

	if cached, ok := c.cache.Get(key); ok {
		if cached == nil {
			return nil, storage.ErrPricingNotFound
		}
		return cached.(*models.PricingModel), nil
	}

	pricing, err := c.source.Get(ctx, providerType, model)
	if errors.Is(err, storage.ErrPricingNotFound) {
		// A wildcard row prices every model of a provider type that has
		// no exact entry.
		pricing, err = c.source.Get(ctx, providerType, WildcardModel)
	}
	if errors.Is(err, storage.ErrPricingNotFound) {
		// Negative entries are cached too, so unpriced models do not
		// hit the database on every request.
		c.cache.Set(key, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, pricing)
	return pricing, nil
}

// canonicalType folds provider type aliases onto the names pricing rows
// are stored under, mirroring the adapter factory's alias table.
func canonicalType(providerType string) string {
	switch strings.ToLower(strings.TrimSpace(providerType)) {
	case models.ProviderTypeOpenAI, "openai-compatible":
		return models.ProviderTypeOpenAI
	case models.ProviderTypeAzure, "azure":
		return models.ProviderTypeAzure
	case models.ProviderTypeBedrock, "aws", "bedrock":
		return models.ProviderTypeBedrock
	case models.ProviderTypeVertex, "google", "vertex", "vertexai":
		return models.ProviderTypeVertex
	default:
		return strings.ToLower(strings.TrimSpace(providerType))
	}
}
