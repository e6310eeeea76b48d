package mocks

import (
	"testing"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

func TestDataGenerator_Generate(t *testing.T) {
	gen := NewDataGenerator(42) // Fixed seed for reproducibility
	config := DefaultConfig()
	config.Count = 100

	bars := gen.Generate(config)

	if len(bars) != 100 {
		t.Errorf("expected 100 bars, got %d", len(bars))
	}

	// Verify bars are in chronological order
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			t.Errorf("bars not in chronological order at index %d", i)
		}
	}

	// Verify symbol and timeframe are stamped on every bar
	for i, bar := range bars {
		if bar.Symbol != config.Symbol {
			t.Errorf("expected symbol %s at index %d, got %s", config.Symbol, i, bar.Symbol)
		}
		if bar.Timeframe != config.Timeframe {
			t.Errorf("expected timeframe %s at index %d, got %s", config.Timeframe, i, bar.Timeframe)
		}
	}

	// Verify OHLC values are positive
	for i, bar := range bars {
		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			t.Errorf("invalid OHLC values at index %d: O=%f H=%f L=%f C=%f",
				i, bar.Open, bar.High, bar.Low, bar.Close)
		}
	}

	// Verify High >= Low
	for i, bar := range bars {
		if bar.High < bar.Low {
			t.Errorf("High < Low at index %d: H=%f L=%f", i, bar.High, bar.Low)
		}
	}

	// Verify bars are spaced by the timeframe
	expectedInterval := config.Timeframe.Duration()
	for i := 1; i < len(bars); i++ {
		actualInterval := bars[i].Time.Sub(bars[i-1].Time)
		if actualInterval != expectedInterval {
			t.Errorf("unexpected interval at index %d: expected %v, got %v",
				i, expectedInterval, actualInterval)
		}
	}
}

func TestDataGenerator_Reproducibility(t *testing.T) {
	// Same seed should produce same results
	gen1 := NewDataGenerator(42)
	gen2 := NewDataGenerator(42)

	config := DefaultConfig()
	config.Count = 10

	bars1 := gen1.Generate(config)
	bars2 := gen2.Generate(config)

	for i := range bars1 {
		if bars1[i].Close != bars2[i].Close {
			t.Errorf("bars not reproducible at index %d: got %f and %f",
				i, bars1[i].Close, bars2[i].Close)
		}
	}
}

func TestDataGenerator_Different_Seeds(t *testing.T) {
	gen1 := NewDataGenerator(42)
	gen2 := NewDataGenerator(123)

	config := DefaultConfig()
	config.Count = 10

	bars1 := gen1.Generate(config)
	bars2 := gen2.Generate(config)

	// Different seeds should produce different results
	sameCount := 0
	for i := range bars1 {
		if bars1[i].Close == bars2[i].Close {
			sameCount++
		}
	}

	if sameCount == len(bars1) {
		t.Error("different seeds produced identical bars")
	}
}

func TestGenerate10K(t *testing.T) {
	bars := Generate10K("TEST")

	if len(bars) != 10000 {
		t.Errorf("expected 10000 bars, got %d", len(bars))
	}

	// Verify first bar
	if bars[0].Symbol != "TEST" {
		t.Errorf("expected symbol TEST, got %s", bars[0].Symbol)
	}

	// Verify chronological order
	for i := 1; i < 100; i++ { // Check first 100 for speed
		if !bars[i].Time.After(bars[i-1].Time) {
			t.Errorf("bars not in chronological order at index %d", i)
		}
	}
}

func TestGenerateMultiSymbol(t *testing.T) {
	symbols := []string{"NIFTY", "BANKNIFTY", "FINNIFTY"}
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 100

	bars := gen.GenerateMultiSymbol(symbols, config)

	expectedTotal := len(symbols) * config.Count
	if len(bars) != expectedTotal {
		t.Errorf("expected %d bars, got %d", expectedTotal, len(bars))
	}

	// Verify each symbol has bars
	symbolCounts := make(map[string]int)
	for _, bar := range bars {
		symbolCounts[bar.Symbol]++
	}

	for _, symbol := range symbols {
		if symbolCounts[symbol] != config.Count {
			t.Errorf("expected %d bars for %s, got %d",
				config.Count, symbol, symbolCounts[symbol])
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Count != 10000 {
		t.Errorf("expected default count 10000, got %d", config.Count)
	}

	if config.Symbol != "TEST" {
		t.Errorf("expected default symbol TEST, got %s", config.Symbol)
	}

	if config.Timeframe != types.Timeframe1m {
		t.Errorf("expected default timeframe 1m, got %s", config.Timeframe)
	}

	if config.InitialPrice != 100.0 {
		t.Errorf("expected default initial price 100.0, got %f", config.InitialPrice)
	}
}
