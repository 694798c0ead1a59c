package sessiondb

import "testing"

func insertPricingRow(t *testing.T, db *DB, provider, pattern string, in, out, cache float64, from string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO model_pricing (provider, model_pattern, input_per_mtok, output_per_mtok, cache_read_per_mtok, effective_from)
		VALUES (?, ?, ?, ?, ?, ?)
	`, provider, pattern, in, out, cache, from)
	if err != nil {
		t.Fatal(err)
	}
}

func TestCalculateCostExactMatch(t *testing.T) {
	db := newTestDB(t)
	insertPricingRow(t, db, "claude", "claude-3-opus", 15, 75, 1.5, "2024-01-01T00:00:00Z")

	cost, err := db.CalculateCost("claude", "claude-3-opus", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if cost != 90 {
		t.Fatalf("expected cost 90, got %v", cost)
	}
}

func TestCalculateCostLikeFallbackPattern(t *testing.T) {
	db := newTestDB(t)
	insertPricingRow(t, db, "claude", "claude-3-%", 3, 15, 0.3, "2024-01-01T00:00:00Z")

	cost, err := db.CalculateCost("claude", "claude-3-haiku", Usage{InputTokens: 1_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if cost != 3 {
		t.Fatalf("expected cost 3, got %v", cost)
	}
}

func TestCalculateCostNoMatchUsesFallbackRates(t *testing.T) {
	db := newTestDB(t)
	cost, err := db.CalculateCost("claude", "unknown-model", Usage{InputTokens: 1_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if cost != fallbackRates["claude"].input {
		t.Fatalf("expected fallback rate %v, got %v", fallbackRates["claude"].input, cost)
	}
}

func TestCalculateCostPrefersLongestWildcardMatch(t *testing.T) {
	db := newTestDB(t)
	insertPricingRow(t, db, "claude", "claude-%", 1, 5, 0.1, "2024-01-01T00:00:00Z")
	insertPricingRow(t, db, "claude", "claude-sonnet-4-5-%", 3, 15, 0.3, "2024-01-01T00:00:00Z")

	cost, err := db.CalculateCost("claude", "claude-sonnet-4-5-20250101",
		Usage{InputTokens: 1_000_000, OutputTokens: 500_000})
	if err != nil {
		t.Fatal(err)
	}
	if cost != 10.5 {
		t.Fatalf("expected cost 10.5 from the longer pattern, got %v", cost)
	}
}

func TestCalculateCostPrefersExactOverLike(t *testing.T) {
	db := newTestDB(t)
	insertPricingRow(t, db, "claude", "claude-3-%", 3, 15, 0.3, "2024-01-01T00:00:00Z")
	insertPricingRow(t, db, "claude", "claude-3-opus", 15, 75, 1.5, "2024-06-01T00:00:00Z")

	cost, err := db.CalculateCost("claude", "claude-3-opus", Usage{InputTokens: 1_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if cost != 15 {
		t.Fatalf("expected exact-match rate 15, got %v", cost)
	}
}
