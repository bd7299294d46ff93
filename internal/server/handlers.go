package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"crash/internal/game"
)

// statusForError maps the game error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, game.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, game.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrState), errors.Is(err, game.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, game.ErrInsufficientBalance):
		return fiber.StatusPaymentRequired
	case errors.Is(err, game.ErrOracleUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	return c.JSON(health)
}

// getGameStateHandler returns the live round. The crash multiplier is never
// serialized and the seed is stripped until the round has crashed, so the
// commitment cannot be inverted mid-round.
func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	round := s.engine.CurrentRound()
	if round == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active game round",
		})
	}
	if round.Phase != game.PhaseCrashed {
		round.Proof.Seed = ""
	}
	return c.JSON(round)
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := s.coordinator.PlaceBet(c.Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(resp)
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := s.coordinator.Cashout(c.Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(resp)
}

func (s *FiberServer) verifyRoundHandler(c *fiber.Ctx) error {
	var req struct {
		Seed       string  `json:"seed"`
		Salt       string  `json:"salt"`
		Hash       string  `json:"hash"`
		Multiplier float64 `json:"multiplier"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Seed == "" || req.Salt == "" || req.Hash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Seed, salt and hash are required",
		})
	}

	valid := game.VerifyCrashPoint(req.Seed, req.Salt, req.Hash, req.Multiplier, s.cfg.MaxMultiplier)
	return c.JSON(fiber.Map{"valid": valid})
}

func (s *FiberServer) listPlayersHandler(c *fiber.Ctx) error {
	players, err := s.store.ListPlayers(c.Context())
	if err != nil {
		return errorJSON(c, err)
	}

	out := make([]fiber.Map, 0, len(players))
	for _, p := range players {
		out = append(out, fiber.Map{
			"player_id": p.PlayerID,
			"name":      p.Name,
		})
	}
	return c.JSON(out)
}

// getWalletHandler returns per-currency balances and their USD equivalents
// at the current oracle price. A currency whose price cannot be resolved is
// reported with its crypto amount only.
func (s *FiberServer) getWalletHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	if playerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	player, err := s.store.FindPlayer(c.Context(), playerID)
	if err != nil {
		return errorJSON(c, err)
	}

	crypto := fiber.Map{}
	usdEquivalent := fiber.Map{}
	for currency, amount := range player.Wallet {
		crypto[currency] = amount
		price, err := s.oracle.GetUnitPrice(c.Context(), currency)
		if err != nil {
			log.Printf("[WALLET] Price lookup failed for %s: %v", currency, err)
			continue
		}
		usdEquivalent[currency] = amount.Mul(price).Round(2)
	}

	return c.JSON(fiber.Map{
		"player_id":      playerID,
		"crypto":         crypto,
		"usd_equivalent": usdEquivalent,
	})
}

func (s *FiberServer) listTransactionsHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	if playerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	txs, err := s.store.ListTransactions(c.Context(), playerID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(txs)
}

// WebSocket surface: pushes the live round on connect, then serves
// place_bet / cashout / ping messages from the client.

type wsClientMessage struct {
	Type       string          `json:"type"`
	RoundID    string          `json:"round_id,omitempty"`
	USDAmount  decimal.Decimal `json:"usd_amount,omitempty"`
	Currency   string          `json:"currency,omitempty"`
	Multiplier float64         `json:"multiplier,omitempty"`
}

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	playerID := conn.Query("player_id", "anonymous")

	log.Printf("[WS] New connection from player: %s", playerID)

	client := s.hub.RegisterClient(conn, playerID)
	client.SendInitialState(s.currentRoundPublic())

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for player %s: %v", playerID, err)
			s.hub.UnregisterClient(conn)
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg wsClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "place_bet":
			resp, err := s.coordinator.PlaceBet(context.Background(), game.BetRequest{
				PlayerID:  playerID,
				RoundID:   msg.RoundID,
				USDAmount: msg.USDAmount,
				Currency:  msg.Currency,
			})
			writeWSResult(conn, "bet_result", resp, err)

		case "cashout":
			resp, err := s.coordinator.Cashout(context.Background(), game.CashoutRequest{
				PlayerID:   playerID,
				RoundID:    msg.RoundID,
				Multiplier: msg.Multiplier,
			})
			writeWSResult(conn, "cashout_result", resp, err)

		case "ping":
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			conn.WriteMessage(websocket.TextMessage, pong)
		}
	}
}

func (s *FiberServer) currentRoundPublic() *game.Round {
	round := s.engine.CurrentRound()
	if round != nil && round.Phase != game.PhaseCrashed {
		round.Proof.Seed = ""
	}
	return round
}

func writeWSResult(conn *websocket.Conn, eventType string, data interface{}, err error) {
	var payload []byte
	if err != nil {
		payload, _ = json.Marshal(game.Event{Type: eventType, Data: fiber.Map{"error": err.Error()}})
	} else {
		payload, _ = json.Marshal(game.Event{Type: eventType, Data: data})
	}
	conn.WriteMessage(websocket.TextMessage, payload)
}
