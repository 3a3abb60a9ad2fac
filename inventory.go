package main

import (
	"database/sql"
	"fmt"
)

// The inventory ledger is the per-player, per-card owned-quantity table.
// Rows never hold quantity 0: removal deletes the line when it bottoms
// out, so ownership checks stay a simple EXISTS. Both mutators must run
// inside the caller's transaction so multi-line moves commit atomically.

func addCardUnitsTx(tx *sql.Tx, playerID string, cardID int64, n int) error {
	if n < 1 {
		return fmt.Errorf("addCardUnits: n must be >= 1, got %d", n)
	}
	_, err := tx.Exec(`
		INSERT INTO player_cards (player_id, card_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, card_id)
		DO UPDATE SET quantity = player_cards.quantity + EXCLUDED.quantity
	`, playerID, cardID, n)
	return err
}

func removeCardUnitsTx(tx *sql.Tx, playerID string, cardID int64, n int) error {
	if n < 1 {
		return fmt.Errorf("removeCardUnits: n must be >= 1, got %d", n)
	}

	var held int
	err := tx.QueryRow(`
		SELECT quantity
		FROM player_cards
		WHERE player_id = $1 AND card_id = $2
		FOR UPDATE
	`, playerID, cardID).Scan(&held)
	if err == sql.ErrNoRows {
		return errInsufficientInventory
	}
	if err != nil {
		return err
	}
	if held < n {
		return errInsufficientInventory
	}

	if held == n {
		_, err = tx.Exec(`
			DELETE FROM player_cards
			WHERE player_id = $1 AND card_id = $2
		`, playerID, cardID)
		return err
	}

	_, err = tx.Exec(`
		UPDATE player_cards
		SET quantity = quantity - $3
		WHERE player_id = $1 AND card_id = $2
	`, playerID, cardID, n)
	return err
}

func cardQuantity(db *sql.DB, playerID string, cardID int64) (int, error) {
	var qty int
	err := db.QueryRow(`
		SELECT quantity
		FROM player_cards
		WHERE player_id = $1 AND card_id = $2
	`, playerID, cardID).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return qty, nil
}

type OwnedCard struct {
	Card
	Quantity int `json:"quantity"`
}

func listCollection(db *sql.DB, playerID string) ([]OwnedCard, error) {
	rows, err := db.Query(`
		SELECT c.card_id, c.name, c.element, c.rarity, c.hp, c.attack, c.defense, pc.quantity
		FROM player_cards pc
		JOIN cards c ON c.card_id = pc.card_id
		WHERE pc.player_id = $1
		ORDER BY c.name
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owned []OwnedCard
	for rows.Next() {
		var o OwnedCard
		if err := rows.Scan(&o.ID, &o.Name, &o.Element, &o.Rarity, &o.HP, &o.Attack, &o.Defense, &o.Quantity); err != nil {
			return nil, err
		}
		owned = append(owned, o)
	}
	return owned, rows.Err()
}
