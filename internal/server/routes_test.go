package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"crash/internal/game"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Validation", fmt.Errorf("%w: bad amount", game.ErrValidation), http.StatusBadRequest},
		{"Not found", fmt.Errorf("%w: round x", game.ErrNotFound), http.StatusNotFound},
		{"State", fmt.Errorf("%w: betting closed", game.ErrState), http.StatusConflict},
		{"Conflict", fmt.Errorf("%w: already cashed out", game.ErrConflict), http.StatusConflict},
		{"Insufficient balance", fmt.Errorf("%w: need more", game.ErrInsufficientBalance), http.StatusPaymentRequired},
		{"Oracle unavailable", fmt.Errorf("%w: feed down", game.ErrOracleUnavailable), http.StatusServiceUnavailable},
		{"Persistence", fmt.Errorf("%w: write failed", game.ErrPersistence), http.StatusInternalServerError},
		{"Unknown", fmt.Errorf("something else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestVerifyRoundHandler(t *testing.T) {
	s := &FiberServer{
		App: fiber.New(),
		cfg: game.DefaultConfig(),
	}
	s.App.Post("/api/v1/game/verify", s.verifyRoundHandler)

	seed := "handler_test_seed"
	salt := "1725100000777"
	mult, hash := game.DeriveCrashPoint(seed, salt, game.MAX_MULTIPLIER)

	tests := []struct {
		name       string
		body       fiber.Map
		wantStatus int
		wantValid  bool
	}{
		{
			name:       "Valid proof",
			body:       fiber.Map{"seed": seed, "salt": salt, "hash": hash, "multiplier": mult},
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
		{
			name:       "Tampered multiplier",
			body:       fiber.Map{"seed": seed, "salt": salt, "hash": hash, "multiplier": mult + 5},
			wantStatus: http.StatusOK,
			wantValid:  false,
		},
		{
			name:       "Missing fields",
			body:       fiber.Map{"seed": seed},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, _ := json.Marshal(tt.body)
			req, _ := http.NewRequest("POST", "/api/v1/game/verify", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.App.Test(req)
			if err != nil {
				t.Fatalf("could not perform request: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var result struct {
				Valid bool `json:"valid"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				t.Fatalf("could not decode response: %v", err)
			}
			if result.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", result.Valid, tt.wantValid)
			}
		})
	}
}
