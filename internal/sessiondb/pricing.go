package sessiondb

import (
	"database/sql"
	"time"
)

// Usage is the token accounting for one turn, used to price it.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}

// fallbackRates is used when no model_pricing row matches, keyed by a
// coarse provider name.
var fallbackRates = map[string]struct{ input, output, cacheRead float64 }{
	"claude":  {input: 3.0, output: 15.0, cacheRead: 0.3},
	"codex":   {input: 2.5, output: 10.0, cacheRead: 0.25},
	"gemini":  {input: 1.25, output: 5.0, cacheRead: 0.125},
	"default": {input: 3.0, output: 15.0, cacheRead: 0.3},
}

// CalculateCost looks up model_pricing by exact pattern match, then by
// LIKE wildcard pattern, restricted to rows currently in effect, ordered
// by exactness, then pattern length (longest first), then recency, per
// spec.md §4.I's cost model.
func (db *DB) CalculateCost(provider, model string, usage Usage) (float64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	row := db.QueryRow(`
		SELECT input_per_mtok, output_per_mtok, cache_read_per_mtok
		FROM model_pricing
		WHERE provider = ?
		  AND (effective_until IS NULL OR effective_until > ?)
		  AND (model_pattern = ? OR ? LIKE model_pattern)
		ORDER BY (model_pattern = ?) DESC, LENGTH(model_pattern) DESC, effective_from DESC
		LIMIT 1
	`, provider, now, model, model, model)

	var in, out, cache float64
	err := row.Scan(&in, &out, &cache)
	switch {
	case err == nil:
		return cost(in, out, cache, usage), nil
	case err == sql.ErrNoRows:
		rates, ok := fallbackRates[provider]
		if !ok {
			rates = fallbackRates["default"]
		}
		return cost(rates.input, rates.output, rates.cacheRead, usage), nil
	default:
		return 0, err
	}
}

// priceTurns fills each turn's CostUSD from the pricing table for
// (provider, model), used by the provider importers after parsing.
func (db *DB) priceTurns(provider, model string, turns []Turn) error {
	for i := range turns {
		c, err := db.CalculateCost(provider, model, Usage{
			InputTokens:     turns[i].InputTokens,
			OutputTokens:    turns[i].OutputTokens,
			CacheReadTokens: turns[i].CacheReadTokens,
		})
		if err != nil {
			return err
		}
		turns[i].CostUSD = c
	}
	return nil
}

func cost(inputRate, outputRate, cacheReadRate float64, u Usage) float64 {
	return (float64(u.InputTokens)*inputRate +
		float64(u.OutputTokens)*outputRate +
		float64(u.CacheReadTokens)*cacheReadRate) / 1e6
}
