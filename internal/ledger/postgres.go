package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"crash/internal/game"
)

// PostgresStore implements game.Store on PostgreSQL. Monetary values are
// NUMERIC columns scanned through ::TEXT so no precision is lost crossing
// the wire. Conditional updates are WHERE-guarded single statements; a zero
// row count means the expected prior state was gone.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindPlayer(ctx context.Context, playerID string) (*game.Player, error) {
	p := &game.Player{PlayerID: playerID, Wallet: make(map[string]decimal.Decimal)}

	err := s.pool.QueryRow(ctx,
		`SELECT name FROM players WHERE id = $1`, playerID).Scan(&p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %s", game.ErrNotFound, playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find player: %v", game.ErrPersistence, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT currency, amount::TEXT FROM balances WHERE player_id = $1`, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: load balances: %v", game.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var currency, amountS string
		if err := rows.Scan(&currency, &amountS); err != nil {
			return nil, fmt.Errorf("%w: scan balance: %v", game.ErrPersistence, err)
		}
		amount, _ := decimal.NewFromString(amountS)
		p.Wallet[currency] = amount
	}
	return p, rows.Err()
}

func (s *PostgresStore) ListPlayers(ctx context.Context) ([]game.Player, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM players ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list players: %v", game.ErrPersistence, err)
	}
	defer rows.Close()

	var players []game.Player
	for rows.Next() {
		var p game.Player
		if err := rows.Scan(&p.PlayerID, &p.Name); err != nil {
			return nil, fmt.Errorf("%w: scan player: %v", game.ErrPersistence, err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *PostgresStore) UpdatePlayerBalance(ctx context.Context, playerID, currency string, expected, amount decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO balances (player_id, currency, amount)
		 VALUES ($1, $2, $4::NUMERIC)
		 ON CONFLICT (player_id, currency)
		 DO UPDATE SET amount = EXCLUDED.amount
		 WHERE balances.amount = $3::NUMERIC`,
		playerID, currency, expected.String(), amount.String())
	if err != nil {
		return fmt.Errorf("%w: update balance: %v", game.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: balance for %s changed concurrently", game.ErrConflict, currency)
	}
	return nil
}

func (s *PostgresStore) CreateRound(ctx context.Context, round *game.Round) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rounds (id, crash_multiplier, phase, start_time, betting_ends_at, seed, salt, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		round.RoundID, round.CrashMultiplier, round.Phase,
		round.StartTime, round.BettingEndsAt,
		round.Proof.Seed, round.Proof.Salt, round.Proof.Hash)
	if err != nil {
		return fmt.Errorf("%w: create round: %v", game.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) FindRound(ctx context.Context, roundID string) (*game.Round, error) {
	var r game.Round
	var crashTime *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, crash_multiplier, phase, start_time, betting_ends_at, crash_time, seed, salt, hash
		 FROM rounds WHERE id = $1`, roundID).
		Scan(&r.RoundID, &r.CrashMultiplier, &r.Phase, &r.StartTime, &r.BettingEndsAt,
			&crashTime, &r.Proof.Seed, &r.Proof.Salt, &r.Proof.Hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: round %s", game.ErrNotFound, roundID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find round: %v", game.ErrPersistence, err)
	}
	if crashTime != nil {
		r.CrashTime = *crashTime
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, player_id, usd_amount::TEXT, crypto_amount::TEXT, currency,
		        cashed_out, COALESCE(multiplier_at_cashout, 0), placed_at
		 FROM bets WHERE round_id = $1 ORDER BY placed_at`, roundID)
	if err != nil {
		return nil, fmt.Errorf("%w: load bets: %v", game.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var b game.Bet
		var usdS, cryptoS string
		if err := rows.Scan(&b.BetID, &b.PlayerID, &usdS, &cryptoS, &b.Currency,
			&b.CashedOut, &b.MultiplierAtCashout, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("%w: scan bet: %v", game.ErrPersistence, err)
		}
		b.USDAmount, _ = decimal.NewFromString(usdS)
		b.CryptoAmount, _ = decimal.NewFromString(cryptoS)
		r.Bets = append(r.Bets, b)
	}
	return &r, rows.Err()
}

func (s *PostgresStore) AppendBet(ctx context.Context, roundID string, bet game.Bet) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO bets (id, round_id, player_id, usd_amount, crypto_amount, currency, cashed_out, placed_at)
		 SELECT $1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, FALSE, $7
		 WHERE NOT EXISTS (
		     SELECT 1 FROM bets
		     WHERE round_id = $2 AND player_id = $3 AND cashed_out = FALSE
		 )`,
		bet.BetID, roundID, bet.PlayerID,
		bet.USDAmount.String(), bet.CryptoAmount.String(), bet.Currency, bet.PlacedAt)
	if err != nil {
		return fmt.Errorf("%w: append bet: %v", game.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: player %s already has an active bet", game.ErrConflict, bet.PlayerID)
	}
	return nil
}

func (s *PostgresStore) UpdateBetCashout(ctx context.Context, roundID, betID string, multiplier float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets SET cashed_out = TRUE, multiplier_at_cashout = $3
		 WHERE id = $2 AND round_id = $1 AND cashed_out = FALSE`,
		roundID, betID, multiplier)
	if err != nil {
		return fmt.Errorf("%w: update bet cashout: %v", game.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: bet %s already cashed out or missing", game.ErrConflict, betID)
	}
	return nil
}

func (s *PostgresStore) UpdateRoundPhase(ctx context.Context, roundID string, phase game.Phase, crashTime time.Time) error {
	var crash *time.Time
	if !crashTime.IsZero() {
		crash = &crashTime
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE rounds SET phase = $2, crash_time = COALESCE($3, crash_time)
		 WHERE id = $1`,
		roundID, phase, crash)
	if err != nil {
		return fmt.Errorf("%w: update round phase: %v", game.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: round %s", game.ErrNotFound, roundID)
	}
	return nil
}

func (s *PostgresStore) AppendTransaction(ctx context.Context, tx game.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, player_id, usd_amount, crypto_amount, currency, tx_type, reference_tag, price_at_time, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5, $6, $7, $8::NUMERIC, $9)`,
		tx.TxID, tx.PlayerID, tx.USDAmount.String(), tx.CryptoAmount.String(),
		tx.Currency, tx.Type, tx.ReferenceTag, tx.PriceAtTime.String(), tx.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: append transaction: %v", game.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, playerID string) ([]game.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player_id, usd_amount::TEXT, crypto_amount::TEXT, currency,
		        tx_type, reference_tag, price_at_time::TEXT, created_at
		 FROM transactions WHERE player_id = $1 ORDER BY created_at`, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", game.ErrPersistence, err)
	}
	defer rows.Close()

	var txs []game.Transaction
	for rows.Next() {
		var tx game.Transaction
		var usdS, cryptoS, priceS string
		if err := rows.Scan(&tx.TxID, &tx.PlayerID, &usdS, &cryptoS, &tx.Currency,
			&tx.Type, &tx.ReferenceTag, &priceS, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", game.ErrPersistence, err)
		}
		tx.USDAmount, _ = decimal.NewFromString(usdS)
		tx.CryptoAmount, _ = decimal.NewFromString(cryptoS)
		tx.PriceAtTime, _ = decimal.NewFromString(priceS)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
