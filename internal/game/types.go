package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type Phase string

const (
	PhaseBetting Phase = "BETTING"
	PhaseActive  Phase = "ACTIVE"
	PhaseCrashed Phase = "CRASHED"
)

// Bet is a single wager inside a round. Amounts are exact decimals at eight
// places; the multiplier is a ratio, not money, and stays float64.
type Bet struct {
	BetID               string          `json:"bet_id"`
	PlayerID            string          `json:"player_id"`
	USDAmount           decimal.Decimal `json:"usd_amount"`
	CryptoAmount        decimal.Decimal `json:"crypto_amount"`
	Currency            string          `json:"currency"`
	CashedOut           bool            `json:"cashed_out"`
	MultiplierAtCashout float64         `json:"multiplier_at_cashout,omitempty"`
	PlacedAt            time.Time       `json:"placed_at"`
}

// Round is one full lifecycle: betting window, multiplier climb, crash.
// Phase and timing fields are owned by the engine; bets and cash-out flags
// are owned by the coordinator.
type Round struct {
	RoundID           string        `json:"round_id"`
	CrashMultiplier   float64       `json:"-"` // hidden until crash
	CurrentMultiplier float64       `json:"current_multiplier"`
	Phase             Phase         `json:"phase"`
	StartTime         time.Time     `json:"start_time"`
	BettingEndsAt     time.Time     `json:"betting_ends_at"`
	CrashTime         time.Time     `json:"crash_time,omitempty"`
	Bets              []Bet         `json:"bets,omitempty"`
	Proof             FairnessProof `json:"provably_fair"`
}

// Transaction is an immutable audit record of one balance-affecting event.
type Transaction struct {
	TxID         string          `json:"tx_id"`
	PlayerID     string          `json:"player_id"`
	USDAmount    decimal.Decimal `json:"usd_amount"`
	CryptoAmount decimal.Decimal `json:"crypto_amount"`
	Currency     string          `json:"currency"`
	Type         string          `json:"transaction_type"` // "bet" or "cashout"
	ReferenceTag string          `json:"transaction_hash"`
	PriceAtTime  decimal.Decimal `json:"price_at_time"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Player identity plus per-currency balances.
type Player struct {
	PlayerID string                     `json:"player_id"`
	Name     string                     `json:"name"`
	Wallet   map[string]decimal.Decimal `json:"wallet"`
}

// Request/response bodies shared by the HTTP and WebSocket surfaces.

type BetRequest struct {
	PlayerID  string          `json:"player_id"`
	RoundID   string          `json:"round_id"`
	USDAmount decimal.Decimal `json:"usd_amount"`
	Currency  string          `json:"currency"`
}

type BetResponse struct {
	BetID            string          `json:"bet_id"`
	CryptoAmount     decimal.Decimal `json:"crypto_amount"`
	Currency         string          `json:"currency"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

type CashoutRequest struct {
	PlayerID   string  `json:"player_id"`
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
}

type CashoutResponse struct {
	BetID         string          `json:"bet_id"`
	Multiplier    float64         `json:"multiplier"`
	CryptoPayout  decimal.Decimal `json:"crypto_payout"`
	USDEquivalent decimal.Decimal `json:"usd_equivalent"`
	Currency      string          `json:"currency"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// Broadcast event payloads. Delivery is fire-and-forget.

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type BettingOpenedEvent struct {
	RoundID        string  `json:"round_id"`
	WindowDuration float64 `json:"window_duration"`
	Salt           string  `json:"salt"`
	Hash           string  `json:"hash"`
}

type RoundStartedEvent struct {
	RoundID string `json:"round_id"`
}

type MultiplierTickEvent struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
}

type RoundCrashedEvent struct {
	RoundID         string  `json:"round_id"`
	CrashMultiplier float64 `json:"crash_multiplier"`
	Seed            string  `json:"seed"`
	Salt            string  `json:"salt"`
	Hash            string  `json:"hash"`
}

type BetPlacedEvent struct {
	PlayerID  string          `json:"player_id"`
	RoundID   string          `json:"round_id"`
	USDAmount decimal.Decimal `json:"usd_amount"`
	Currency  string          `json:"currency"`
}

type PlayerCashedOutEvent struct {
	PlayerID   string          `json:"player_id"`
	RoundID    string          `json:"round_id"`
	Multiplier float64         `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
	Currency   string          `json:"currency"`
}
