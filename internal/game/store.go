package game

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the durable ledger consumed by the engine and coordinator.
// Implementations live in internal/ledger. Conditional updates are
// compare-and-swap: they fail with ErrConflict when the stored state no
// longer matches the expected prior value.
type Store interface {
	FindPlayer(ctx context.Context, playerID string) (*Player, error)
	ListPlayers(ctx context.Context) ([]Player, error)

	// UpdatePlayerBalance succeeds only if the stored balance for the
	// currency still equals expected.
	UpdatePlayerBalance(ctx context.Context, playerID, currency string, expected, amount decimal.Decimal) error

	CreateRound(ctx context.Context, round *Round) error
	FindRound(ctx context.Context, roundID string) (*Round, error)
	AppendBet(ctx context.Context, roundID string, bet Bet) error

	// UpdateBetCashout flips the cashed-out flag, conditional on the bet not
	// already being cashed out.
	UpdateBetCashout(ctx context.Context, roundID, betID string, multiplier float64) error

	// UpdateRoundPhase records a phase transition. crashTime is only set on
	// the transition to PhaseCrashed.
	UpdateRoundPhase(ctx context.Context, roundID string, phase Phase, crashTime time.Time) error

	AppendTransaction(ctx context.Context, tx Transaction) error
	ListTransactions(ctx context.Context, playerID string) ([]Transaction, error)
}

// Broadcaster fans an event out to all connected observers. Delivery is
// best-effort; callers never block on it.
type Broadcaster interface {
	Broadcast(event interface{})
}

// RoundAuthority answers "what phase is this round in, right now". The
// engine is the production implementation; it is the single source of truth
// for gating bets and cash-outs.
type RoundAuthority interface {
	RoundPhase(roundID string) (Phase, error)
}

// PriceSource supplies the current unit price for a currency code.
type PriceSource interface {
	GetUnitPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
