package main

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	TradePending   = "pending"
	TradeAccepted  = "accepted"
	TradeRejected  = "rejected"
	TradeCancelled = "cancelled"
)

type TradeOffer struct {
	TradeID         string `json:"tradeId"`
	ProposerID      string `json:"proposerId"`
	CounterpartyID  string `json:"counterpartyId"`
	OfferedCardID   int64  `json:"offeredCardId"`
	OfferedName     string `json:"offeredName,omitempty"`
	RequestedCardID int64  `json:"requestedCardId"`
	RequestedName   string `json:"requestedName,omitempty"`
	Message         string `json:"message,omitempty"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

// createTrade records a pending offer. Ownership is not checked here:
// speculative offers are allowed, and both inventories are verified at
// settlement, which is when the units actually move.
func createTrade(db *sql.DB, proposerID, counterpartyID string, offeredCardID, requestedCardID int64, message string) (*TradeOffer, error) {
	if proposerID == counterpartyID {
		return nil, errSelfTradeForbidden
	}

	exists, err := playerExists(db, counterpartyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errUnauthorized
	}

	tradeID := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO trade_offers (trade_id, proposer_player_id, counterparty_player_id,
		                          offered_card_id, requested_card_id, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tradeID, proposerID, counterpartyID, offeredCardID, requestedCardID, message, TradePending)
	if err != nil {
		return nil, err
	}

	return &TradeOffer{
		TradeID:         tradeID,
		ProposerID:      proposerID,
		CounterpartyID:  counterpartyID,
		OfferedCardID:   offeredCardID,
		RequestedCardID: requestedCardID,
		Message:         message,
		Status:          TradePending,
	}, nil
}

// acceptTrade settles a pending offer in one transaction: both sides
// must still hold their card, both units move, and the status flips to
// accepted. Any failure leaves the offer pending and inventories
// untouched.
func acceptTrade(db *sql.DB, tradeID string, actorID string) (*TradeOffer, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockTradeTx(tx, tradeID)
	if err != nil {
		return nil, err
	}
	if offer.CounterpartyID != actorID {
		return nil, errUnauthorized
	}
	if offer.Status != TradePending {
		return nil, errInvalidOfferState
	}

	if err := removeCardUnitsTx(tx, offer.ProposerID, offer.OfferedCardID, 1); err != nil {
		return nil, err
	}
	if err := removeCardUnitsTx(tx, offer.CounterpartyID, offer.RequestedCardID, 1); err != nil {
		return nil, err
	}
	if err := addCardUnitsTx(tx, offer.CounterpartyID, offer.OfferedCardID, 1); err != nil {
		return nil, err
	}
	if err := addCardUnitsTx(tx, offer.ProposerID, offer.RequestedCardID, 1); err != nil {
		return nil, err
	}

	if err := setTradeStatusTx(tx, tradeID, TradeAccepted); err != nil {
		return nil, err
	}

	if err := bumpChallengeProgressTx(tx, offer.ProposerID, RequirementTrades, 1); err != nil {
		return nil, err
	}
	if err := bumpChallengeProgressTx(tx, offer.CounterpartyID, RequirementTrades, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	offer.Status = TradeAccepted
	return offer, nil
}

// rejectTrade closes a pending offer without moving anything. Only the
// counterparty can reject.
func rejectTrade(db *sql.DB, tradeID string, actorID string) (*TradeOffer, error) {
	return closeTrade(db, tradeID, actorID, false)
}

// cancelTrade withdraws a pending offer. Only the proposer can cancel.
func cancelTrade(db *sql.DB, tradeID string, actorID string) (*TradeOffer, error) {
	return closeTrade(db, tradeID, actorID, true)
}

func closeTrade(db *sql.DB, tradeID string, actorID string, byProposer bool) (*TradeOffer, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	offer, err := lockTradeTx(tx, tradeID)
	if err != nil {
		return nil, err
	}

	status := TradeRejected
	allowed := offer.CounterpartyID
	if byProposer {
		status = TradeCancelled
		allowed = offer.ProposerID
	}
	if actorID != allowed {
		return nil, errUnauthorized
	}
	if offer.Status != TradePending {
		return nil, errInvalidOfferState
	}

	if err := setTradeStatusTx(tx, tradeID, status); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	offer.Status = status
	return offer, nil
}

func lockTradeTx(tx *sql.Tx, tradeID string) (*TradeOffer, error) {
	var offer TradeOffer
	err := tx.QueryRow(`
		SELECT trade_id, proposer_player_id, counterparty_player_id,
		       offered_card_id, requested_card_id, message, status
		FROM trade_offers
		WHERE trade_id = $1
		FOR UPDATE
	`, tradeID).Scan(&offer.TradeID, &offer.ProposerID, &offer.CounterpartyID,
		&offer.OfferedCardID, &offer.RequestedCardID, &offer.Message, &offer.Status)
	if err == sql.ErrNoRows {
		return nil, errTradeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func setTradeStatusTx(tx *sql.Tx, tradeID string, status string) error {
	_, err := tx.Exec(`
		UPDATE trade_offers
		SET status = $2, resolved_at = $3
		WHERE trade_id = $1
	`, tradeID, status, time.Now().UTC())
	return err
}

// listTrades returns every offer the player is a side of, newest first.
func listTrades(db *sql.DB, playerID string) ([]TradeOffer, error) {
	rows, err := db.Query(`
		SELECT t.trade_id, t.proposer_player_id, t.counterparty_player_id,
		       t.offered_card_id, oc.name, t.requested_card_id, rc.name,
		       t.message, t.status, t.created_at
		FROM trade_offers t
		JOIN cards oc ON oc.card_id = t.offered_card_id
		JOIN cards rc ON rc.card_id = t.requested_card_id
		WHERE t.proposer_player_id = $1 OR t.counterparty_player_id = $1
		ORDER BY t.created_at DESC
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []TradeOffer
	for rows.Next() {
		var o TradeOffer
		var createdAt time.Time
		if err := rows.Scan(&o.TradeID, &o.ProposerID, &o.CounterpartyID,
			&o.OfferedCardID, &o.OfferedName, &o.RequestedCardID, &o.RequestedName,
			&o.Message, &o.Status, &createdAt); err != nil {
			return nil, err
		}
		o.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		offers = append(offers, o)
	}
	return offers, rows.Err()
}
