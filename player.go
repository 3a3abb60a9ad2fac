package main

import (
	"database/sql"
	"time"
)

type Player struct {
	PlayerID string
	Coins    int64
}

// Coin ledger sources.
const (
	SourcePackBasic       = "pack_basic"
	SourcePackPremium     = "pack_premium"
	SourceMarketBuy       = "market_buy"
	SourceMarketSale      = "market_sale"
	SourceBattleReward    = "battle_reward"
	SourceAchievement     = "achievement"
	SourceChallenge       = "challenge"
	SourceStreakMilestone = "streak_milestone"
	SourceSignupGrant     = "signup_grant"
)

// New accounts start with enough coins for a few basic packs.
const signupCoinGrant = 200

func loadPlayer(db *sql.DB, playerID string) (*Player, error) {
	var p Player
	err := db.QueryRow(`
		SELECT player_id, coins
		FROM players
		WHERE player_id = $1
	`, playerID).Scan(&p.PlayerID, &p.Coins)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_, _ = db.Exec(`
		UPDATE players
		SET last_active_at = NOW()
		WHERE player_id = $1
	`, playerID)

	return &p, nil
}

func loadPlayerTx(tx *sql.Tx, playerID string) (*Player, error) {
	var p Player
	err := tx.QueryRow(`
		SELECT player_id, coins
		FROM players
		WHERE player_id = $1
	`, playerID).Scan(&p.PlayerID, &p.Coins)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func playerExists(db *sql.DB, playerID string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM players WHERE player_id = $1)
	`, playerID).Scan(&exists)
	return exists, err
}

// creditCoinsTx adds coins to the player under a row lock and appends
// the ledger entry. Returns the post-credit balance.
func creditCoinsTx(tx *sql.Tx, playerID string, amount int64, source string, now time.Time) (int64, error) {
	var before int64
	if err := tx.QueryRow(`
		SELECT coins
		FROM players
		WHERE player_id = $1
		FOR UPDATE
	`, playerID).Scan(&before); err != nil {
		return 0, err
	}

	after := before + amount
	if _, err := tx.Exec(`
		UPDATE players
		SET coins = $2
		WHERE player_id = $1
	`, playerID, after); err != nil {
		return 0, err
	}

	if err := appendCoinLedgerTx(tx, playerID, source, amount, before, after, now); err != nil {
		return 0, err
	}
	return after, nil
}

// debitCoinsTx removes coins from the player under a row lock, failing
// with errInsufficientFunds before any mutation when the balance is
// short. Returns the post-debit balance.
func debitCoinsTx(tx *sql.Tx, playerID string, amount int64, source string, now time.Time) (int64, error) {
	var before int64
	if err := tx.QueryRow(`
		SELECT coins
		FROM players
		WHERE player_id = $1
		FOR UPDATE
	`, playerID).Scan(&before); err != nil {
		return 0, err
	}
	if before < amount {
		return 0, errInsufficientFunds
	}

	after := before - amount
	if _, err := tx.Exec(`
		UPDATE players
		SET coins = $2
		WHERE player_id = $1
	`, playerID, after); err != nil {
		return 0, err
	}

	if err := appendCoinLedgerTx(tx, playerID, source, -amount, before, after, now); err != nil {
		return 0, err
	}
	return after, nil
}

func appendCoinLedgerTx(tx *sql.Tx, playerID string, source string, amount, before, after int64, now time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO coin_ledger (player_id, source, amount, coins_before, coins_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, playerID, source, amount, before, after, now)
	return err
}
