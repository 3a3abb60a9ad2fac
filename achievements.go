package main

import (
	"database/sql"
	"time"
)

// Achievement categories as stored in the catalog.
const (
	CategoryPack       = "pack"
	CategoryCollection = "collection"
	CategoryLegendary  = "legendary"
	CategoryBattle     = "battle"
	CategoryTrade      = "trade"
)

type Achievement struct {
	AchievementID int64  `json:"achievementId"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Requirement   int    `json:"requirement"`
	Reward        int64  `json:"reward"`
	Progress      int    `json:"progress"`
	Completed     bool   `json:"completed"`
	Claimed       bool   `json:"claimed"`
}

// progressForCategory maps a category onto the live stat it is
// measured against.
func progressForCategory(stats *PlayerStats, category string) int {
	switch category {
	case CategoryPack:
		return stats.PacksOpened
	case CategoryCollection:
		return stats.UniqueCards
	case CategoryLegendary:
		return stats.LegendaryCards
	case CategoryBattle:
		return stats.BattlesWon
	case CategoryTrade:
		return stats.TradesDone
	}
	return 0
}

// listAchievements returns the full catalog with per-player progress.
// Progress is derived from the current stats, not from the stored
// rows, so it never lags behind the ledgers.
func listAchievements(db *sql.DB, playerID string) ([]Achievement, error) {
	stats, err := computePlayerStats(db, playerID)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT a.achievement_id, a.name, a.description, a.category,
		       a.requirement, a.reward, pa.claimed_at IS NOT NULL
		FROM achievements a
		LEFT JOIN player_achievements pa
		    ON pa.achievement_id = a.achievement_id AND pa.player_id = $1
		ORDER BY a.achievement_id
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var achievements []Achievement
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.AchievementID, &a.Name, &a.Description,
			&a.Category, &a.Requirement, &a.Reward, &a.Claimed); err != nil {
			return nil, err
		}
		a.Progress = progressForCategory(stats, a.Category)
		if a.Progress > a.Requirement {
			a.Progress = a.Requirement
		}
		a.Completed = a.Progress >= a.Requirement
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

type AchievementClaim struct {
	AchievementID  int64  `json:"achievementId"`
	Name           string `json:"name"`
	Reward         int64  `json:"reward"`
	NewBalance     int64  `json:"newBalance"`
	AlreadyClaimed bool   `json:"alreadyClaimed,omitempty"`
}

// claimAchievement verifies the requirement against freshly computed
// stats and credits the reward on the first claim only. The insert is
// the idempotency gate: whichever transaction lands the row (or flips
// claimed_at from NULL) credits, and every later claim reports success
// without crediting again, so retried or concurrent requests cannot
// double-pay.
func claimAchievement(db *sql.DB, playerID string, achievementID int64) (*AchievementClaim, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var name, category string
	var requirement int
	var reward int64
	err = tx.QueryRow(`
		SELECT name, category, requirement, reward
		FROM achievements
		WHERE achievement_id = $1
	`, achievementID).Scan(&name, &category, &requirement, &reward)
	if err == sql.ErrNoRows {
		return nil, errAchievementNotFound
	}
	if err != nil {
		return nil, err
	}

	stats, err := computePlayerStats(tx, playerID)
	if err != nil {
		return nil, err
	}
	progress := progressForCategory(stats, category)
	if progress < requirement {
		return nil, errAchievementNotCompleted
	}

	now := time.Now().UTC()
	res, err := tx.Exec(`
		INSERT INTO player_achievements (player_id, achievement_id, progress, completed, claimed_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (player_id, achievement_id) DO NOTHING
	`, playerID, achievementID, progress, now)
	if err != nil {
		return nil, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	firstClaim := inserted == 1
	if !firstClaim {
		// A row already exists; it only counts as a first claim if
		// claimed_at is still unset. A concurrent inserter blocks us
		// on the unique key above, so by the time we get here its
		// claimed_at is visible.
		res, err := tx.Exec(`
			UPDATE player_achievements
			SET progress = $3, completed = TRUE, claimed_at = $4
			WHERE player_id = $1 AND achievement_id = $2 AND claimed_at IS NULL
		`, playerID, achievementID, progress, now)
		if err != nil {
			return nil, err
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		firstClaim = updated == 1
	}

	claim := &AchievementClaim{
		AchievementID:  achievementID,
		Name:           name,
		Reward:         reward,
		AlreadyClaimed: !firstClaim,
	}

	if firstClaim {
		balance, err := creditCoinsTx(tx, playerID, reward, SourceAchievement, now)
		if err != nil {
			return nil, err
		}
		claim.NewBalance = balance
	} else {
		player, err := loadPlayerTx(tx, playerID)
		if err != nil {
			return nil, err
		}
		claim.NewBalance = player.Coins
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claim, nil
}
