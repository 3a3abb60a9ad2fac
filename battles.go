package main

import (
	"database/sql"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type BattleOutcome struct {
	BattleID   string        `json:"battleId"`
	Result     *BattleResult `json:"result"`
	Reward     int64         `json:"reward"`
	NewBalance int64         `json:"newBalance,omitempty"`
}

// fightBattle simulates a battle against a random catalog opponent and
// records the outcome. On a player win the battle row insert and the
// reward credit commit together; a loss records the row with zero
// reward.
func fightBattle(db *sql.DB, chart TypeChart, reward int64, playerID string, cardID int64, rng *rand.Rand) (*BattleOutcome, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var owned int
	err = tx.QueryRow(`
		SELECT quantity
		FROM player_cards
		WHERE player_id = $1 AND card_id = $2
	`, playerID, cardID).Scan(&owned)
	if err == sql.ErrNoRows || (err == nil && owned < 1) {
		return nil, errInsufficientInventory
	}
	if err != nil {
		return nil, err
	}

	playerCard, err := scanCard(tx.QueryRow(`
		SELECT `+cardColumns+`
		FROM cards
		WHERE card_id = $1
	`, cardID))
	if err != nil {
		return nil, err
	}

	opponent, err := randomCardTx(tx)
	if err != nil {
		return nil, err
	}

	result := runBattle(playerCard, opponent, chart, rng)

	outcome := &BattleOutcome{Result: result}
	if result.Winner == "player" {
		outcome.Reward = reward
	}

	battleID, balance, err := recordBattleTx(tx, playerID, playerCard.ID, opponent.ID, result.Winner, outcome.Reward)
	if err != nil {
		return nil, err
	}
	outcome.BattleID = battleID
	outcome.NewBalance = balance

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return outcome, nil
}

// recordBattleWin handles the reward endpoint: the posted amount is
// ignored and the server-side reward is credited with the battle row.
func recordBattleWin(db *sql.DB, reward int64, playerID string, cardID, opponentCardID int64) (*BattleOutcome, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	battleID, balance, err := recordBattleTx(tx, playerID, cardID, opponentCardID, "player", reward)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &BattleOutcome{
		BattleID:   battleID,
		Reward:     reward,
		NewBalance: balance,
	}, nil
}

// recordBattleTx appends the battle row and, on a player win, credits
// the reward and advances battle challenges, all inside the caller's
// transaction.
func recordBattleTx(tx *sql.Tx, playerID string, cardID, opponentCardID int64, winner string, reward int64) (string, int64, error) {
	battleID := uuid.NewString()
	now := time.Now().UTC()

	if _, err := tx.Exec(`
		INSERT INTO battles (battle_id, player_id, player_card_id, opponent_card_id, winner, reward, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, battleID, playerID, cardID, opponentCardID, winner, reward, now); err != nil {
		return "", 0, err
	}

	var balance int64
	if winner == "player" {
		var err error
		balance, err = creditCoinsTx(tx, playerID, reward, SourceBattleReward, now)
		if err != nil {
			return "", 0, err
		}
		if err := bumpChallengeProgressTx(tx, playerID, RequirementBattles, 1); err != nil {
			return "", 0, err
		}
	}
	return battleID, balance, nil
}
