package main

import (
	"database/sql"
	"math/rand"
	"time"
)

type Streak struct {
	CurrentStreak      int    `json:"currentStreak"`
	LongestStreak      int    `json:"longestStreak"`
	LastCompletionDate string `json:"lastCompletionDate,omitempty"`
}

const dayLayout = "2006-01-02"

// nextStreak applies the streak rule to the previous completion date:
// a completion the day after the last one extends the run, the same
// day leaves it untouched, anything older restarts at 1.
func nextStreak(current int, lastDay string, today string, yesterday string) int {
	switch lastDay {
	case today:
		return current
	case yesterday:
		return current + 1
	default:
		return 1
	}
}

func getStreak(db *sql.DB, playerID string) (*Streak, error) {
	var s Streak
	var last sql.NullTime
	err := db.QueryRow(`
		SELECT current_streak, longest_streak, last_completion_date
		FROM challenge_streaks
		WHERE player_id = $1
	`, playerID).Scan(&s.CurrentStreak, &s.LongestStreak, &last)
	if err == sql.ErrNoRows {
		return &Streak{}, nil
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		s.LastCompletionDate = last.Time.UTC().Format(dayLayout)
	}
	return &s, nil
}

// advanceStreakTx records a daily-challenge completion for today and
// returns the updated streak. The longest streak is a watermark and
// never decreases. Runs inside the claim transaction so a rolled-back
// claim leaves the streak untouched.
func advanceStreakTx(tx *sql.Tx, playerID string, now time.Time) (*Streak, error) {
	if _, err := tx.Exec(`
		INSERT INTO challenge_streaks (player_id)
		VALUES ($1)
		ON CONFLICT (player_id) DO NOTHING
	`, playerID); err != nil {
		return nil, err
	}

	var current, longest int
	var last sql.NullTime
	err := tx.QueryRow(`
		SELECT current_streak, longest_streak, last_completion_date
		FROM challenge_streaks
		WHERE player_id = $1
		FOR UPDATE
	`, playerID).Scan(&current, &longest, &last)
	if err != nil {
		return nil, err
	}

	today := now.UTC().Format(dayLayout)
	yesterday := now.UTC().AddDate(0, 0, -1).Format(dayLayout)
	lastDay := ""
	if last.Valid {
		lastDay = last.Time.UTC().Format(dayLayout)
	}

	current = nextStreak(current, lastDay, today, yesterday)
	if current > longest {
		longest = current
	}

	if _, err := tx.Exec(`
		UPDATE challenge_streaks
		SET current_streak = $2, longest_streak = $3, last_completion_date = $4
		WHERE player_id = $1
	`, playerID, current, longest, today); err != nil {
		return nil, err
	}

	return &Streak{
		CurrentStreak:      current,
		LongestStreak:      longest,
		LastCompletionDate: today,
	}, nil
}

type StreakReward struct {
	Milestone   int    `json:"milestone"`
	RewardType  string `json:"rewardType"`
	RewardValue int64  `json:"rewardValue"`
	NewBalance  int64  `json:"newBalance,omitempty"`
	Cards       []Card `json:"cards,omitempty"`
}

func milestoneFor(milestones []StreakMilestone, level int) *StreakMilestone {
	for i := range milestones {
		if milestones[i].Level == level {
			return &milestones[i]
		}
	}
	return nil
}

// claimStreakMilestone grants a milestone reward once per player. The
// streak_rewards primary key makes the grant idempotent: a second
// claim of the same milestone finds the row and is rejected before any
// reward moves.
func claimStreakMilestone(db *sql.DB, rules PackRules, milestones []StreakMilestone, playerID string, level int, rng *rand.Rand) (*StreakReward, error) {
	milestone := milestoneFor(milestones, level)
	if milestone == nil {
		return nil, errChallengeNotClaimable
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var longest int
	err = tx.QueryRow(`
		SELECT longest_streak
		FROM challenge_streaks
		WHERE player_id = $1
		FOR UPDATE
	`, playerID).Scan(&longest)
	if err == sql.ErrNoRows {
		return nil, errChallengeNotClaimable
	}
	if err != nil {
		return nil, err
	}
	if longest < level {
		return nil, errChallengeNotClaimable
	}

	res, err := tx.Exec(`
		INSERT INTO streak_rewards (player_id, milestone)
		VALUES ($1, $2)
		ON CONFLICT (player_id, milestone) DO NOTHING
	`, playerID, level)
	if err != nil {
		return nil, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		return nil, errChallengeNotClaimable
	}

	now := time.Now().UTC()
	balance, cards, err := grantRewardTx(tx, rules, playerID, milestone.RewardType, milestone.RewardValue, SourceStreakMilestone, rng, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &StreakReward{
		Milestone:   level,
		RewardType:  milestone.RewardType,
		RewardValue: milestone.RewardValue,
		NewBalance:  balance,
		Cards:       cards,
	}, nil
}
