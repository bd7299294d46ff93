package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// Wallet amounts are fixed at eight decimal places everywhere.
	AMOUNT_PRECISION = 8

	MIN_BET_USD = 1.0
	MAX_BET_USD = 10000.0
)

// Coordinator validates and executes wager placement and settlement against
// the ledger store and the live round. It is the sole writer of player
// balances, bet cash-out flags and transaction records.
//
// A player's balance is the unit of mutual exclusion: operations for the
// same player serialize on a per-player lock, operations for different
// players proceed independently.
type Coordinator struct {
	store  Store
	oracle PriceSource
	rounds RoundAuthority
	hub    Broadcaster

	locksMu     sync.Mutex
	playerLocks map[string]*sync.Mutex
}

func NewCoordinator(store Store, oracle PriceSource, rounds RoundAuthority, hub Broadcaster) *Coordinator {
	return &Coordinator{
		store:       store,
		oracle:      oracle,
		rounds:      rounds,
		hub:         hub,
		playerLocks: make(map[string]*sync.Mutex),
	}
}

func (c *Coordinator) playerLock(playerID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	mu, ok := c.playerLocks[playerID]
	if !ok {
		mu = &sync.Mutex{}
		c.playerLocks[playerID] = mu
	}
	return mu
}

// PlaceBet debits the player's wallet at the current oracle price, appends
// the bet to the live round and records a placement transaction. Only valid
// while the round is in its betting window, and only one open bet per player
// per round.
func (c *Coordinator) PlaceBet(ctx context.Context, req BetRequest) (*BetResponse, error) {
	if req.PlayerID == "" || req.RoundID == "" || req.Currency == "" {
		return nil, fmt.Errorf("%w: missing bet details", ErrValidation)
	}
	minBet := decimal.NewFromFloat(MIN_BET_USD)
	maxBet := decimal.NewFromFloat(MAX_BET_USD)
	if req.USDAmount.LessThan(minBet) || req.USDAmount.GreaterThan(maxBet) {
		return nil, fmt.Errorf("%w: bet must be between %.2f and %.2f USD", ErrValidation, MIN_BET_USD, MAX_BET_USD)
	}

	phase, err := c.rounds.RoundPhase(req.RoundID)
	if err != nil {
		return nil, fmt.Errorf("%w: round %s", ErrNotFound, req.RoundID)
	}
	if phase != PhaseBetting {
		return nil, fmt.Errorf("%w: betting is closed (phase %s)", ErrState, phase)
	}

	mu := c.playerLock(req.PlayerID)
	mu.Lock()
	defer mu.Unlock()

	player, err := c.store.FindPlayer(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}

	round, err := c.store.FindRound(ctx, req.RoundID)
	if err != nil {
		return nil, err
	}
	for _, b := range round.Bets {
		if b.PlayerID == req.PlayerID && !b.CashedOut {
			return nil, fmt.Errorf("%w: player already has an active bet in this round", ErrConflict)
		}
	}

	price, err := c.oracle.GetUnitPrice(ctx, req.Currency)
	if err != nil {
		return nil, err
	}

	cryptoAmount := req.USDAmount.Div(price).Round(AMOUNT_PRECISION)
	if cryptoAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: bet converts to a zero %s amount", ErrValidation, req.Currency)
	}

	balance := player.Wallet[req.Currency]
	if balance.LessThan(cryptoAmount) {
		return nil, fmt.Errorf("%w: have %s %s, need %s", ErrInsufficientBalance,
			balance.String(), req.Currency, cryptoAmount.String())
	}

	newBalance := balance.Sub(cryptoAmount)
	if err := c.store.UpdatePlayerBalance(ctx, req.PlayerID, req.Currency, balance, newBalance); err != nil {
		return nil, err
	}

	// The window can expire between the phase check and the debit. The
	// engine's in-memory phase is authoritative, so re-check and roll the
	// debit back rather than append a bet to an active round.
	if phase, err := c.rounds.RoundPhase(req.RoundID); err != nil || phase != PhaseBetting {
		if rbErr := c.store.UpdatePlayerBalance(ctx, req.PlayerID, req.Currency, newBalance, balance); rbErr != nil {
			log.Printf("[BET] Rollback failed for player %s: %v", req.PlayerID, rbErr)
		}
		return nil, fmt.Errorf("%w: betting is closed", ErrState)
	}

	bet := Bet{
		BetID:        uuid.NewString(),
		PlayerID:     req.PlayerID,
		USDAmount:    req.USDAmount,
		CryptoAmount: cryptoAmount,
		Currency:     req.Currency,
		PlacedAt:     time.Now(),
	}
	if err := c.store.AppendBet(ctx, req.RoundID, bet); err != nil {
		if rbErr := c.store.UpdatePlayerBalance(ctx, req.PlayerID, req.Currency, newBalance, balance); rbErr != nil {
			log.Printf("[BET] Rollback failed for player %s: %v", req.PlayerID, rbErr)
		}
		return nil, err
	}

	tx := Transaction{
		TxID:         uuid.NewString(),
		PlayerID:     req.PlayerID,
		USDAmount:    req.USDAmount,
		CryptoAmount: cryptoAmount,
		Currency:     req.Currency,
		Type:         "bet",
		ReferenceTag: newReferenceTag(),
		PriceAtTime:  price,
		Timestamp:    time.Now(),
	}
	if err := c.store.AppendTransaction(ctx, tx); err != nil {
		log.Printf("[BET] Transaction record failed for bet %s: %v", bet.BetID, err)
	}

	c.hub.Broadcast(Event{Type: "bet_placed", Data: BetPlacedEvent{
		PlayerID:  req.PlayerID,
		RoundID:   req.RoundID,
		USDAmount: req.USDAmount,
		Currency:  req.Currency,
	}})

	log.Printf("[BET] Player %s bet %s USD (%s %s) in round %s",
		req.PlayerID, req.USDAmount.String(), cryptoAmount.String(), req.Currency, req.RoundID)

	return &BetResponse{
		BetID:            bet.BetID,
		CryptoAmount:     cryptoAmount,
		Currency:         req.Currency,
		RemainingBalance: newBalance,
	}, nil
}

// Cashout settles the player's open bet at the observed multiplier. The
// engine's authoritative phase gates eligibility; the conditional flag flip
// on the stored bet guarantees exactly-once settlement even when duplicate
// requests or the crash transition race it.
func (c *Coordinator) Cashout(ctx context.Context, req CashoutRequest) (*CashoutResponse, error) {
	if req.PlayerID == "" || req.RoundID == "" {
		return nil, fmt.Errorf("%w: missing cashout details", ErrValidation)
	}
	if req.Multiplier < MIN_MULTIPLIER {
		return nil, fmt.Errorf("%w: multiplier %.2f below %.2f", ErrValidation, req.Multiplier, MIN_MULTIPLIER)
	}

	if err := c.checkCashoutPhase(req.RoundID); err != nil {
		return nil, err
	}

	mu := c.playerLock(req.PlayerID)
	mu.Lock()
	defer mu.Unlock()

	round, err := c.store.FindRound(ctx, req.RoundID)
	if err != nil {
		return nil, err
	}

	var bet *Bet
	for i := range round.Bets {
		if round.Bets[i].PlayerID == req.PlayerID && !round.Bets[i].CashedOut {
			bet = &round.Bets[i]
			break
		}
	}
	if bet == nil {
		return nil, fmt.Errorf("%w: no active bet for player %s in round %s", ErrNotFound, req.PlayerID, req.RoundID)
	}

	price, err := c.oracle.GetUnitPrice(ctx, bet.Currency)
	if err != nil {
		return nil, err
	}

	// Re-check right before the flag flip: a cashout arriving after the
	// crash instant is too late no matter what multiplier the client saw.
	if err := c.checkCashoutPhase(req.RoundID); err != nil {
		return nil, err
	}

	if err := c.store.UpdateBetCashout(ctx, req.RoundID, bet.BetID, req.Multiplier); err != nil {
		return nil, err
	}

	mult := decimal.NewFromFloat(req.Multiplier)
	payout := bet.CryptoAmount.Mul(mult).Round(AMOUNT_PRECISION)
	usdPayout := payout.Mul(price).Round(2)

	player, err := c.store.FindPlayer(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}
	balance := player.Wallet[bet.Currency]
	newBalance := balance.Add(payout)
	if err := c.store.UpdatePlayerBalance(ctx, req.PlayerID, bet.Currency, balance, newBalance); err != nil {
		// The flag is already flipped; a lost credit must surface, never
		// disappear silently.
		log.Printf("[CASHOUT] Credit failed for bet %s after flag flip: %v", bet.BetID, err)
		return nil, fmt.Errorf("%w: credit failed for bet %s", ErrPersistence, bet.BetID)
	}

	tx := Transaction{
		TxID:         uuid.NewString(),
		PlayerID:     req.PlayerID,
		USDAmount:    usdPayout,
		CryptoAmount: payout,
		Currency:     bet.Currency,
		Type:         "cashout",
		ReferenceTag: newReferenceTag(),
		PriceAtTime:  price,
		Timestamp:    time.Now(),
	}
	if err := c.store.AppendTransaction(ctx, tx); err != nil {
		log.Printf("[CASHOUT] Transaction record failed for bet %s: %v", bet.BetID, err)
	}

	c.hub.Broadcast(Event{Type: "player_cashed_out", Data: PlayerCashedOutEvent{
		PlayerID:   req.PlayerID,
		RoundID:    req.RoundID,
		Multiplier: req.Multiplier,
		Payout:     payout,
		Currency:   bet.Currency,
	}})

	log.Printf("[CASHOUT] Player %s cashed out at %.2fx (payout %s %s)",
		req.PlayerID, req.Multiplier, payout.String(), bet.Currency)

	return &CashoutResponse{
		BetID:         bet.BetID,
		Multiplier:    req.Multiplier,
		CryptoPayout:  payout,
		USDEquivalent: usdPayout,
		Currency:      bet.Currency,
		NewBalance:    newBalance,
	}, nil
}

func (c *Coordinator) checkCashoutPhase(roundID string) error {
	phase, err := c.rounds.RoundPhase(roundID)
	if err != nil {
		return fmt.Errorf("%w: round %s", ErrNotFound, roundID)
	}
	switch phase {
	case PhaseActive:
		return nil
	case PhaseBetting:
		return fmt.Errorf("%w: round has not started", ErrState)
	default:
		return fmt.Errorf("%w: round already crashed", ErrState)
	}
}

// newReferenceTag mints the unique reference token carried by a transaction
// record, styled like an on-chain tx hash.
func newReferenceTag() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}
