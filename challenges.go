package main

import (
	"database/sql"
	"math/rand"
	"time"
)

// Challenge requirement kinds; values live in the requirement_type
// columns and must match the schema CHECK constraints.
const (
	RequirementPacks      = "packs"
	RequirementBattles    = "battles"
	RequirementTrades     = "trades"
	RequirementMarketBuys = "market_buys"
)

// Reward kinds shared by challenges and streak milestones.
const (
	RewardCoins         = "coins"
	RewardBasicPack     = "basic_pack"
	RewardPremiumPack   = "premium_pack"
	RewardLegendaryCard = "legendary_card"
)

const (
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
)

type Challenge struct {
	ChallengeID     int64  `json:"challengeId"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	RequirementType string `json:"requirementType"`
	Target          int    `json:"target"`
	RewardType      string `json:"rewardType"`
	RewardValue     int64  `json:"rewardValue"`
	ExpiresAt       string `json:"expiresAt"`
	Progress        int    `json:"progress"`
	Completed       bool   `json:"completed"`
	Claimed         bool   `json:"claimed"`
}

func challengeTables(period string) (defs, progress string, ok bool) {
	switch period {
	case PeriodDaily:
		return "daily_challenges", "player_daily_challenges", true
	case PeriodWeekly:
		return "weekly_challenges", "player_weekly_challenges", true
	}
	return "", "", false
}

// listChallenges returns the active challenges for a period joined with
// the player's progress rows. Players with no progress row yet show
// zero progress.
func listChallenges(db *sql.DB, playerID string, period string) ([]Challenge, error) {
	defs, progress, ok := challengeTables(period)
	if !ok {
		return nil, errChallengeNotClaimable
	}

	rows, err := db.Query(`
		SELECT c.challenge_id, c.title, c.description, c.requirement_type, c.target,
		       c.reward_type, c.reward_value, c.expires_at,
		       COALESCE(p.current_progress, 0), COALESCE(p.completed, FALSE),
		       COALESCE(p.claimed, FALSE)
		FROM `+defs+` c
		LEFT JOIN `+progress+` p
		    ON p.challenge_id = c.challenge_id AND p.player_id = $1
		WHERE c.active AND c.expires_at > NOW()
		ORDER BY c.challenge_id
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challenges []Challenge
	for rows.Next() {
		var ch Challenge
		var expires time.Time
		if err := rows.Scan(&ch.ChallengeID, &ch.Title, &ch.Description,
			&ch.RequirementType, &ch.Target, &ch.RewardType, &ch.RewardValue,
			&expires, &ch.Progress, &ch.Completed, &ch.Claimed); err != nil {
			return nil, err
		}
		ch.ExpiresAt = expires.UTC().Format(time.RFC3339)
		challenges = append(challenges, ch)
	}
	return challenges, rows.Err()
}

// bumpChallengeProgressTx advances every active daily and weekly
// challenge of the given requirement type for the player, inside the
// caller's transaction. Missing progress rows are created first so the
// increment applies uniformly.
func bumpChallengeProgressTx(tx *sql.Tx, playerID string, requirementType string, delta int) error {
	for _, period := range []string{PeriodDaily, PeriodWeekly} {
		defs, progress, _ := challengeTables(period)

		if _, err := tx.Exec(`
			INSERT INTO `+progress+` (player_id, challenge_id, current_progress)
			SELECT $1, c.challenge_id, 0
			FROM `+defs+` c
			WHERE c.requirement_type = $2 AND c.active AND c.expires_at > NOW()
			ON CONFLICT (player_id, challenge_id) DO NOTHING
		`, playerID, requirementType); err != nil {
			return err
		}

		if _, err := tx.Exec(`
			UPDATE `+progress+` p
			SET current_progress = p.current_progress + $3,
			    completed = p.completed OR p.current_progress + $3 >= c.target
			FROM `+defs+` c
			WHERE c.challenge_id = p.challenge_id
			  AND p.player_id = $1
			  AND c.requirement_type = $2
			  AND c.active AND c.expires_at > NOW()
		`, playerID, requirementType, delta); err != nil {
			return err
		}
	}
	return nil
}

type ChallengeClaim struct {
	ChallengeID int64   `json:"challengeId"`
	Period      string  `json:"period"`
	RewardType  string  `json:"rewardType"`
	RewardValue int64   `json:"rewardValue"`
	NewBalance  int64   `json:"newBalance,omitempty"`
	Cards       []Card  `json:"cards,omitempty"`
	Streak      *Streak `json:"streak,omitempty"`
}

// claimChallenge marks a completed challenge claimed and grants its
// reward in one transaction. Daily claims also advance the completion
// streak before committing.
func claimChallenge(db *sql.DB, rules PackRules, playerID string, period string, challengeID int64, rng *rand.Rand) (*ChallengeClaim, error) {
	defs, progress, ok := challengeTables(period)
	if !ok {
		return nil, errChallengeNotClaimable
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var rewardType string
	var rewardValue int64
	var completed, claimed bool
	err = tx.QueryRow(`
		SELECT c.reward_type, c.reward_value, p.completed, p.claimed
		FROM `+progress+` p
		JOIN `+defs+` c ON c.challenge_id = p.challenge_id
		WHERE p.player_id = $1 AND p.challenge_id = $2
		FOR UPDATE OF p
	`, playerID, challengeID).Scan(&rewardType, &rewardValue, &completed, &claimed)
	if err == sql.ErrNoRows {
		return nil, errChallengeNotClaimable
	}
	if err != nil {
		return nil, err
	}
	if !completed || claimed {
		return nil, errChallengeNotClaimable
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`
		UPDATE `+progress+`
		SET claimed = TRUE, claimed_at = $3
		WHERE player_id = $1 AND challenge_id = $2
	`, playerID, challengeID, now); err != nil {
		return nil, err
	}

	balance, cards, err := grantRewardTx(tx, rules, playerID, rewardType, rewardValue, SourceChallenge, rng, now)
	if err != nil {
		return nil, err
	}

	claim := &ChallengeClaim{
		ChallengeID: challengeID,
		Period:      period,
		RewardType:  rewardType,
		RewardValue: rewardValue,
		NewBalance:  balance,
		Cards:       cards,
	}

	if period == PeriodDaily {
		streak, err := advanceStreakTx(tx, playerID, now)
		if err != nil {
			return nil, err
		}
		claim.Streak = streak
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claim, nil
}

// grantRewardTx applies a reward inside the caller's transaction:
// coins credit the balance, pack rewards draw immediately into the
// ledger, and card rewards pull a random card of the named rarity.
// Returns the post-credit balance for coin rewards and the granted
// cards otherwise.
func grantRewardTx(tx *sql.Tx, rules PackRules, playerID string, rewardType string, rewardValue int64, source string, rng *rand.Rand, now time.Time) (int64, []Card, error) {
	switch rewardType {
	case RewardCoins:
		balance, err := creditCoinsTx(tx, playerID, rewardValue, source, now)
		if err != nil {
			return 0, nil, err
		}
		return balance, nil, nil

	case RewardBasicPack:
		cards, err := drawBasicCardsTx(tx, rules.BasicDraws)
		if err != nil {
			return 0, nil, err
		}
		return 0, cards, grantCardsTx(tx, playerID, cards)

	case RewardPremiumPack:
		cards, err := drawPremiumCardsTx(tx, rules.RarityTiers, rng, rules.PremiumDraws)
		if err != nil {
			return 0, nil, err
		}
		return 0, cards, grantCardsTx(tx, playerID, cards)

	case RewardLegendaryCard:
		card, err := randomCardByRarityTx(tx, RarityLegendary)
		if err != nil {
			return 0, nil, err
		}
		if card == nil {
			// Catalog without legendaries: fall back to any card so
			// the claim still grants something.
			card, err = randomCardTx(tx)
			if err != nil {
				return 0, nil, err
			}
		}
		cards := []Card{*card}
		return 0, cards, grantCardsTx(tx, playerID, cards)
	}
	return 0, nil, errChallengeNotClaimable
}

func grantCardsTx(tx *sql.Tx, playerID string, cards []Card) error {
	counts := make(map[int64]int, len(cards))
	var order []int64
	for _, c := range cards {
		if counts[c.ID] == 0 {
			order = append(order, c.ID)
		}
		counts[c.ID]++
	}
	for _, id := range order {
		if err := addCardUnitsTx(tx, playerID, id, counts[id]); err != nil {
			return err
		}
	}
	return nil
}
