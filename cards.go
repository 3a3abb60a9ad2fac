package main

import (
	"database/sql"
	"strings"
)

const (
	RarityCommon    = "Common"
	RarityUncommon  = "Uncommon"
	RarityRare      = "Rare"
	RarityEpic      = "Epic"
	RarityLegendary = "Legendary"
	RarityMythic    = "Mythic"
)

type Card struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Element string `json:"element"`
	Rarity  string `json:"rarity"`
	HP      int    `json:"hp"`
	Attack  int    `json:"attack"`
	Defense int    `json:"defense"`
}

const cardColumns = "card_id, name, element, rarity, hp, attack, defense"

func scanCard(row interface{ Scan(...interface{}) error }) (*Card, error) {
	var c Card
	err := row.Scan(&c.ID, &c.Name, &c.Element, &c.Rarity, &c.HP, &c.Attack, &c.Defense)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func getCard(db *sql.DB, cardID int64) (*Card, error) {
	card, err := scanCard(db.QueryRow(`
		SELECT `+cardColumns+`
		FROM cards
		WHERE card_id = $1
	`, cardID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

func listCards(db *sql.DB, search string) ([]Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
	`
	var args []interface{}
	if search != "" {
		query += ` WHERE name ILIKE $1`
		args = append(args, "%"+strings.TrimSpace(search)+"%")
	}
	query += ` ORDER BY name`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// randomCardTx draws one card uniformly from the whole catalog.
func randomCardTx(tx *sql.Tx) (*Card, error) {
	return scanCard(tx.QueryRow(`
		SELECT ` + cardColumns + `
		FROM cards
		ORDER BY random()
		LIMIT 1
	`))
}

// randomCardByRarityTx draws uniformly among cards of one rarity.
// Returns (nil, nil) when the tier has no catalog entries.
func randomCardByRarityTx(tx *sql.Tx, rarity string) (*Card, error) {
	card, err := scanCard(tx.QueryRow(`
		SELECT `+cardColumns+`
		FROM cards
		WHERE rarity = $1
		ORDER BY random()
		LIMIT 1
	`, rarity))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}
