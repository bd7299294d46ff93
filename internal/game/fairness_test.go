package game

import (
	"math"
	"strings"
	"testing"
)

func TestDeriveCrashPoint_Deterministic(t *testing.T) {
	seed := "deterministic_test_seed"
	salt := "1725100000000"

	m1, h1 := DeriveCrashPoint(seed, salt, MAX_MULTIPLIER)
	m2, h2 := DeriveCrashPoint(seed, salt, MAX_MULTIPLIER)
	m3, h3 := DeriveCrashPoint(seed, salt, MAX_MULTIPLIER)

	if m1 != m2 || m2 != m3 {
		t.Errorf("DeriveCrashPoint() multiplier not deterministic: got %v, %v, %v", m1, m2, m3)
	}
	if h1 != h2 || h2 != h3 {
		t.Errorf("DeriveCrashPoint() hash not deterministic: got %v, %v, %v", h1, h2, h3)
	}
}

func TestDeriveCrashPoint_Range(t *testing.T) {
	seeds := []string{"a", "b", "c", "seed_1", "seed_2", "longer_seed_for_variety"}
	salts := []string{"1", "2", "1725100000000", "x", "y", "z"}

	for _, seed := range seeds {
		for _, salt := range salts {
			mult, hash := DeriveCrashPoint(seed, salt, MAX_MULTIPLIER)

			if mult < MIN_MULTIPLIER {
				t.Errorf("DeriveCrashPoint(%q,%q) = %v, below %v", seed, salt, mult, MIN_MULTIPLIER)
			}
			if mult > MAX_MULTIPLIER {
				t.Errorf("DeriveCrashPoint(%q,%q) = %v, above %v", seed, salt, mult, MAX_MULTIPLIER)
			}
			if len(hash) != 64 {
				t.Errorf("DeriveCrashPoint(%q,%q) hash length = %d, want 64", seed, salt, len(hash))
			}
		}
	}
}

func TestDeriveCrashPoint_TwoDecimalGrid(t *testing.T) {
	// The engine compares the crash point against two-decimal ticks, so the
	// derived value must sit exactly on the hundredths grid.
	for i := 0; i < 200; i++ {
		mult, _ := DeriveCrashPoint("grid_seed", strings.Repeat("s", i+1), MAX_MULTIPLIER)
		scaled := mult * 100
		if math.Abs(scaled-math.Round(scaled)) > 1e-9 {
			t.Fatalf("DeriveCrashPoint() = %v, not a two-decimal value", mult)
		}
	}
}

func TestDeriveCrashPoint_RespectsMax(t *testing.T) {
	// With a max of 1.00 every derivation must clamp to exactly the minimum.
	for i := 0; i < 50; i++ {
		mult, _ := DeriveCrashPoint("clamp_seed", strings.Repeat("x", i+1), MIN_MULTIPLIER)
		if mult != MIN_MULTIPLIER {
			t.Fatalf("DeriveCrashPoint() with max=min = %v, want %v", mult, MIN_MULTIPLIER)
		}
	}
}

func TestDeriveCrashPoint_DifferentInputs(t *testing.T) {
	m1, _ := DeriveCrashPoint("seed", "salt_1", MAX_MULTIPLIER)
	m2, _ := DeriveCrashPoint("seed", "salt_2", MAX_MULTIPLIER)
	m3, _ := DeriveCrashPoint("seed", "salt_3", MAX_MULTIPLIER)

	if m1 == m2 && m2 == m3 {
		t.Error("DeriveCrashPoint() produced the same multiplier for three different salts (unlikely)")
	}
}

func TestGenerateSeed(t *testing.T) {
	seed1 := GenerateSeed()
	seed2 := GenerateSeed()

	if seed1 == seed2 {
		t.Error("GenerateSeed() produced duplicate seeds")
	}
	if len(seed1) != 64 { // 32 bytes = 64 hex characters
		t.Errorf("GenerateSeed() length = %v, want 64", len(seed1))
	}
}

func TestVerifyCrashPoint(t *testing.T) {
	seed := "verification_test_seed"
	salt := "1725100000123"
	mult, hash := DeriveCrashPoint(seed, salt, MAX_MULTIPLIER)

	tests := []struct {
		name       string
		seed       string
		salt       string
		hash       string
		multiplier float64
		want       bool
	}{
		{
			name:       "Valid verification",
			seed:       seed,
			salt:       salt,
			hash:       hash,
			multiplier: mult,
			want:       true,
		},
		{
			name:       "Wrong multiplier",
			seed:       seed,
			salt:       salt,
			hash:       hash,
			multiplier: mult + 1.0,
			want:       false,
		},
		{
			name:       "Wrong seed",
			seed:       "wrong_seed",
			salt:       salt,
			hash:       hash,
			multiplier: mult,
			want:       false,
		},
		{
			name:       "Wrong hash",
			seed:       seed,
			salt:       salt,
			hash:       strings.Repeat("0", 64),
			multiplier: mult,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifyCrashPoint(tt.seed, tt.salt, tt.hash, tt.multiplier, MAX_MULTIPLIER)
			if got != tt.want {
				t.Errorf("VerifyCrashPoint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkDeriveCrashPoint(b *testing.B) {
	for i := 0; i < b.N; i++ {
		DeriveCrashPoint("benchmark_seed", "benchmark_salt", MAX_MULTIPLIER)
	}
}

func BenchmarkGenerateSeed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateSeed()
	}
}
