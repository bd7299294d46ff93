// Package ledger provides the durable record store for players, rounds and
// transactions. PostgreSQL is the source of truth; the in-memory
// implementation mirrors its conditional-update semantics for tests and
// development.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"crash/internal/game"
)

// MemoryStore implements game.Store with in-memory maps. Conditional updates
// behave exactly like the SQL versions: they fail with game.ErrConflict when
// the stored value no longer matches the expected prior state.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[string]*game.Player
	rounds  map[string]*game.Round
	txs     []game.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]*game.Player),
		rounds:  make(map[string]*game.Round),
	}
}

// AddPlayer seeds a player. Not part of game.Store; used by tests and the
// dev bootstrap.
func (s *MemoryStore) AddPlayer(p game.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := p
	cp.Wallet = make(map[string]decimal.Decimal, len(p.Wallet))
	for cur, amt := range p.Wallet {
		cp.Wallet[cur] = amt
	}
	s.players[p.PlayerID] = &cp
}

func (s *MemoryStore) FindPlayer(_ context.Context, playerID string) (*game.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", game.ErrNotFound, playerID)
	}
	return copyPlayer(p), nil
}

func (s *MemoryStore) ListPlayers(_ context.Context) ([]game.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]game.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *copyPlayer(p))
	}
	return players, nil
}

func (s *MemoryStore) UpdatePlayerBalance(_ context.Context, playerID, currency string, expected, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return fmt.Errorf("%w: player %s", game.ErrNotFound, playerID)
	}
	if !p.Wallet[currency].Equal(expected) {
		return fmt.Errorf("%w: balance for %s changed concurrently", game.ErrConflict, currency)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative balance", game.ErrConflict)
	}
	p.Wallet[currency] = amount
	return nil
}

func (s *MemoryStore) CreateRound(_ context.Context, round *game.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rounds[round.RoundID]; exists {
		return fmt.Errorf("%w: round %s already exists", game.ErrConflict, round.RoundID)
	}
	cp := *round
	cp.Bets = append([]game.Bet(nil), round.Bets...)
	s.rounds[round.RoundID] = &cp
	return nil
}

func (s *MemoryStore) FindRound(_ context.Context, roundID string) (*game.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("%w: round %s", game.ErrNotFound, roundID)
	}
	cp := *r
	cp.Bets = append([]game.Bet(nil), r.Bets...)
	return &cp, nil
}

func (s *MemoryStore) AppendBet(_ context.Context, roundID string, bet game.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return fmt.Errorf("%w: round %s", game.ErrNotFound, roundID)
	}
	for _, b := range r.Bets {
		if b.PlayerID == bet.PlayerID && !b.CashedOut {
			return fmt.Errorf("%w: player %s already has an active bet", game.ErrConflict, bet.PlayerID)
		}
	}
	r.Bets = append(r.Bets, bet)
	return nil
}

func (s *MemoryStore) UpdateBetCashout(_ context.Context, roundID, betID string, multiplier float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return fmt.Errorf("%w: round %s", game.ErrNotFound, roundID)
	}
	for i := range r.Bets {
		if r.Bets[i].BetID != betID {
			continue
		}
		if r.Bets[i].CashedOut {
			return fmt.Errorf("%w: bet %s already cashed out", game.ErrConflict, betID)
		}
		r.Bets[i].CashedOut = true
		r.Bets[i].MultiplierAtCashout = multiplier
		return nil
	}
	return fmt.Errorf("%w: bet %s", game.ErrNotFound, betID)
}

func (s *MemoryStore) UpdateRoundPhase(_ context.Context, roundID string, phase game.Phase, crashTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return fmt.Errorf("%w: round %s", game.ErrNotFound, roundID)
	}
	r.Phase = phase
	if !crashTime.IsZero() {
		r.CrashTime = crashTime
	}
	return nil
}

func (s *MemoryStore) AppendTransaction(_ context.Context, tx game.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = append(s.txs, tx)
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, playerID string) ([]game.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []game.Transaction
	for _, tx := range s.txs {
		if tx.PlayerID == playerID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func copyPlayer(p *game.Player) *game.Player {
	cp := *p
	cp.Wallet = make(map[string]decimal.Decimal, len(p.Wallet))
	for cur, amt := range p.Wallet {
		cp.Wallet[cur] = amt
	}
	return &cp
}
