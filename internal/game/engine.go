package game

import (
	"context"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TICK_INTERVAL  = 100 * time.Millisecond
	BETTING_TIME   = 10 * time.Second
	ROUND_COOLDOWN = 10 * time.Second
	GROWTH_RATE    = 0.06

	PERSIST_TIMEOUT = 5 * time.Second
)

// Config holds the round timing and curve parameters. The growth rate and
// multiplier cap are configurable rather than hard-coded so the crash curve
// can be tuned without touching the engine.
type Config struct {
	BettingWindow time.Duration
	TickInterval  time.Duration
	Cooldown      time.Duration
	GrowthRate    float64
	MaxMultiplier float64
}

func DefaultConfig() Config {
	return Config{
		BettingWindow: BETTING_TIME,
		TickInterval:  TICK_INTERVAL,
		Cooldown:      ROUND_COOLDOWN,
		GrowthRate:    GROWTH_RATE,
		MaxMultiplier: MAX_MULTIPLIER,
	}
}

// Engine owns the round lifecycle: it derives the crash point, drives the
// Betting -> Active -> Crashed transitions on its own timers and is the sole
// writer of a round's phase and timing fields. Exactly one round is live at
// a time; a new one starts automatically after the cooldown.
type Engine struct {
	cfg          Config
	store        Store
	hub          Broadcaster
	ctx          context.Context
	stateMutex   sync.RWMutex
	currentRound *Round
	stopChan     chan struct{}
	stopOnce     sync.Once
}

func NewEngine(cfg Config, store Store, hub Broadcaster) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		ctx:      context.Background(),
		stopChan: make(chan struct{}),
	}
}

func (e *Engine) Start() {
	go e.gameLoop()
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
}

// CurrentRound returns a snapshot copy of the live round, or nil between
// rounds.
func (e *Engine) CurrentRound() *Round {
	e.stateMutex.RLock()
	defer e.stateMutex.RUnlock()
	if e.currentRound == nil {
		return nil
	}
	roundCopy := *e.currentRound
	return &roundCopy
}

// RoundPhase reports the authoritative phase of the given round. Requests
// naming any round other than the live one get ErrNotFound.
func (e *Engine) RoundPhase(roundID string) (Phase, error) {
	e.stateMutex.RLock()
	defer e.stateMutex.RUnlock()
	if e.currentRound == nil || e.currentRound.RoundID != roundID {
		return "", ErrNotFound
	}
	return e.currentRound.Phase, nil
}

// CurrentMultiplier returns the last broadcast multiplier of the live round.
func (e *Engine) CurrentMultiplier() float64 {
	e.stateMutex.RLock()
	defer e.stateMutex.RUnlock()
	if e.currentRound == nil {
		return MIN_MULTIPLIER
	}
	return e.currentRound.CurrentMultiplier
}

func (e *Engine) gameLoop() {
	for {
		select {
		case <-e.stopChan:
			log.Println("[GAME] Round loop stopped")
			return
		default:
			e.runRound()
		}
	}
}

func (e *Engine) runRound() {
	seed := GenerateSeed()
	salt := strconv.FormatInt(time.Now().UnixMilli(), 10)
	crashPoint, hash := DeriveCrashPoint(seed, salt, e.cfg.MaxMultiplier)

	roundID := uuid.NewString()
	now := time.Now()

	round := &Round{
		RoundID:           roundID,
		CrashMultiplier:   crashPoint,
		CurrentMultiplier: MIN_MULTIPLIER,
		Phase:             PhaseBetting,
		StartTime:         now,
		BettingEndsAt:     now.Add(e.cfg.BettingWindow),
		Proof:             FairnessProof{Seed: seed, Salt: salt, Hash: hash},
	}

	e.stateMutex.Lock()
	e.currentRound = round
	e.stateMutex.Unlock()

	log.Printf("[GAME] === ROUND %s ===", roundID)
	log.Printf("[FAIR] Commitment: %s...", hash[:16])
	log.Printf("[FAIR] Crash point: %.2fx (hidden)", crashPoint)

	persisted := *round
	e.persist("create round", func(ctx context.Context) error {
		return e.store.CreateRound(ctx, &persisted)
	})

	e.hub.Broadcast(Event{Type: "betting_opened", Data: BettingOpenedEvent{
		RoundID:        roundID,
		WindowDuration: e.cfg.BettingWindow.Seconds(),
		Salt:           salt,
		Hash:           hash,
	}})

	bettingTimer := time.NewTimer(e.cfg.BettingWindow)
	defer bettingTimer.Stop()

	select {
	case <-bettingTimer.C:
	case <-e.stopChan:
		return
	}

	e.stateMutex.Lock()
	e.currentRound.Phase = PhaseActive
	e.currentRound.StartTime = time.Now()
	startTime := e.currentRound.StartTime
	e.stateMutex.Unlock()

	e.persist("phase active", func(ctx context.Context) error {
		return e.store.UpdateRoundPhase(ctx, roundID, PhaseActive, time.Time{})
	})

	e.hub.Broadcast(Event{Type: "round_started", Data: RoundStartedEvent{RoundID: roundID}})

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			elapsed := time.Since(startTime).Seconds()
			mult := multiplierAt(elapsed, e.cfg.GrowthRate)

			if mult >= crashPoint {
				crashTime := time.Now()
				e.stateMutex.Lock()
				e.currentRound.Phase = PhaseCrashed
				e.currentRound.CurrentMultiplier = crashPoint
				e.currentRound.CrashTime = crashTime
				e.stateMutex.Unlock()

				e.persist("phase crashed", func(ctx context.Context) error {
					return e.store.UpdateRoundPhase(ctx, roundID, PhaseCrashed, crashTime)
				})

				e.hub.Broadcast(Event{Type: "round_crashed", Data: RoundCrashedEvent{
					RoundID:         roundID,
					CrashMultiplier: crashPoint,
					Seed:            seed,
					Salt:            salt,
					Hash:            hash,
				}})

				log.Printf("[GAME] === ROUND %s crashed at %.2fx ===", roundID, crashPoint)

				select {
				case <-time.After(e.cfg.Cooldown):
				case <-e.stopChan:
				}
				return
			}

			e.stateMutex.Lock()
			e.currentRound.CurrentMultiplier = mult
			e.stateMutex.Unlock()

			e.hub.Broadcast(Event{Type: "multiplier_tick", Data: MultiplierTickEvent{
				RoundID:    roundID,
				Multiplier: mult,
			}})

		case <-e.stopChan:
			return
		}
	}
}

// persist runs a store write off the timer goroutine. The in-memory phase is
// authoritative for gameplay timing, so a failed write is retried once and
// otherwise only logged; it never stalls the broadcast schedule.
func (e *Engine) persist(op string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, PERSIST_TIMEOUT)
		defer cancel()

		if err := fn(ctx); err == nil {
			return
		} else {
			log.Printf("[GAME] Persist %s failed: %v (retrying)", op, err)
		}

		retryCtx, retryCancel := context.WithTimeout(e.ctx, PERSIST_TIMEOUT)
		defer retryCancel()
		if err := fn(retryCtx); err != nil {
			log.Printf("[GAME] Persist %s failed after retry: %v", op, err)
		}
	}()
}

// multiplierAt computes the displayed multiplier after elapsed seconds of
// the active phase. Exponential growth rounded to two decimals; monotonic,
// so it reaches the (two-decimal) crash point at a deterministic instant.
func multiplierAt(elapsed, rate float64) float64 {
	return math.Round(math.Exp(rate*elapsed)*100) / 100
}
