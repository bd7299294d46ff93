package game

import (
	"math"
	"testing"
)

func TestMultiplierAt(t *testing.T) {
	if got := multiplierAt(0, GROWTH_RATE); got != 1.00 {
		t.Errorf("multiplierAt(0) = %v, want 1.00", got)
	}

	// exp(0.06 * 11.55) is a shade over 2.0
	if got := multiplierAt(11.552, GROWTH_RATE); got != 2.00 {
		t.Errorf("multiplierAt(11.552) = %v, want 2.00", got)
	}

	// Monotonic and always on the hundredths grid
	prev := 0.0
	for elapsed := 0.0; elapsed < 30; elapsed += 0.1 {
		got := multiplierAt(elapsed, GROWTH_RATE)
		if got < prev {
			t.Fatalf("multiplierAt(%v) = %v, below previous %v", elapsed, got, prev)
		}
		scaled := got * 100
		if math.Abs(scaled-math.Round(scaled)) > 1e-9 {
			t.Fatalf("multiplierAt(%v) = %v, not a two-decimal value", elapsed, got)
		}
		prev = got
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BettingWindow != BETTING_TIME {
		t.Errorf("BettingWindow = %v, want %v", cfg.BettingWindow, BETTING_TIME)
	}
	if cfg.TickInterval != TICK_INTERVAL {
		t.Errorf("TickInterval = %v, want %v", cfg.TickInterval, TICK_INTERVAL)
	}
	if cfg.GrowthRate != GROWTH_RATE {
		t.Errorf("GrowthRate = %v, want %v", cfg.GrowthRate, GROWTH_RATE)
	}
	if cfg.MaxMultiplier != MAX_MULTIPLIER {
		t.Errorf("MaxMultiplier = %v, want %v", cfg.MaxMultiplier, MAX_MULTIPLIER)
	}
}
