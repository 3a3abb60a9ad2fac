package main

import (
	"database/sql"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	PackBasic   = "basic"
	PackPremium = "premium"
)

// rarityForRoll maps a roll in [0,100) onto a rarity via the cumulative
// tier bounds.
func rarityForRoll(tiers []RarityTier, roll float64) string {
	for _, tier := range tiers {
		if roll < tier.UpperBound {
			return tier.Rarity
		}
	}
	return tiers[len(tiers)-1].Rarity
}

// drawBasicCardsTx draws n cards uniformly from the full catalog.
func drawBasicCardsTx(tx *sql.Tx, n int) ([]Card, error) {
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		card, err := randomCardTx(tx)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

// drawPremiumCardsTx draws n cards, each independently assigned a
// rarity first. A rarity with no catalog entries yields nothing for
// that draw, so fewer than n cards can come back.
func drawPremiumCardsTx(tx *sql.Tx, tiers []RarityTier, rng *rand.Rand, n int) ([]Card, error) {
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		rarity := rarityForRoll(tiers, rng.Float64()*100)
		card, err := randomCardByRarityTx(tx, rarity)
		if err != nil {
			return nil, err
		}
		if card == nil {
			continue
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

type PackResult struct {
	PurchaseID string
	PackType   string
	Cost       int64
	Cards      []Card
	NewBalance int64
}

// openPack debits the pack cost, draws the cards, credits them into the
// inventory ledger and appends the purchase record, all in one
// transaction. The player row lock taken by the debit serializes
// concurrent opens by the same player.
func openPack(db *sql.DB, rules PackRules, packType string, playerID string, rng *rand.Rand) (*PackResult, error) {
	var cost int64
	var source string
	switch packType {
	case PackPremium:
		cost = int64(rules.PremiumCost)
		source = SourcePackPremium
	default:
		cost = int64(rules.BasicCost)
		source = SourcePackBasic
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	balance, err := debitCoinsTx(tx, playerID, cost, source, now)
	if err != nil {
		return nil, err
	}

	var cards []Card
	if packType == PackPremium {
		cards, err = drawPremiumCardsTx(tx, rules.RarityTiers, rng, rules.PremiumDraws)
	} else {
		cards, err = drawBasicCardsTx(tx, rules.BasicDraws)
	}
	if err != nil {
		return nil, err
	}

	if err := grantCardsTx(tx, playerID, cards); err != nil {
		return nil, err
	}

	cardIDs := make([]int64, len(cards))
	for i, card := range cards {
		cardIDs[i] = card.ID
	}
	received, err := json.Marshal(cardIDs)
	if err != nil {
		return nil, err
	}

	purchaseID := uuid.NewString()
	if _, err := tx.Exec(`
		INSERT INTO pack_purchases (purchase_id, player_id, pack_type, cost, cards_received, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, purchaseID, playerID, packType, cost, received, now); err != nil {
		return nil, err
	}

	if err := bumpChallengeProgressTx(tx, playerID, RequirementPacks, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &PackResult{
		PurchaseID: purchaseID,
		PackType:   packType,
		Cost:       cost,
		Cards:      cards,
		NewBalance: balance,
	}, nil
}
