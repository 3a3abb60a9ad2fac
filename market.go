package main

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Listing struct {
	ListingID  string `json:"listingId"`
	CardID     int64  `json:"cardId"`
	CardName   string `json:"cardName"`
	CardRarity string `json:"cardRarity,omitempty"`
	Element    string `json:"element,omitempty"`
	SellerID   string `json:"sellerId"`
	SellerName string `json:"sellerName,omitempty"`
	UnitPrice  int64  `json:"unitPrice"`
	Quantity   int    `json:"quantity"`
}

type ListingFilters struct {
	Search  string
	Element string
	Rarity  string
	Sort    string
}

func listListings(db *sql.DB, filters ListingFilters) ([]Listing, error) {
	where := []string{"ml.quantity > 0"}
	var args []interface{}

	if filters.Search != "" {
		args = append(args, "%"+strings.TrimSpace(filters.Search)+"%")
		where = append(where, fmt.Sprintf("c.name ILIKE $%d", len(args)))
	}
	if filters.Element != "" && filters.Element != "all" {
		args = append(args, filters.Element)
		where = append(where, fmt.Sprintf("c.element = $%d", len(args)))
	}
	if filters.Rarity != "" && filters.Rarity != "all" {
		args = append(args, filters.Rarity)
		where = append(where, fmt.Sprintf("c.rarity = $%d", len(args)))
	}

	order := "ml.unit_price ASC"
	switch filters.Sort {
	case "price_desc":
		order = "ml.unit_price DESC"
	case "name_asc":
		order = "c.name ASC"
	case "name_desc":
		order = "c.name DESC"
	case "newest":
		order = "ml.created_at DESC"
	}

	rows, err := db.Query(`
		SELECT ml.listing_id, ml.card_id, c.name, c.rarity, c.element,
		       ml.seller_player_id, COALESCE(a.display_name, ''), ml.unit_price, ml.quantity
		FROM market_listings ml
		JOIN cards c ON c.card_id = ml.card_id
		LEFT JOIN accounts a ON a.player_id = ml.seller_player_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY `+order,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ListingID, &l.CardID, &l.CardName, &l.CardRarity, &l.Element,
			&l.SellerID, &l.SellerName, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// sellCards removes quantity units from the seller's ledger and either
// tops up an existing listing with the same (seller, card, price) or
// creates a new one. One transaction: either the units leave the ledger
// and appear on the market, or nothing happens.
func sellCards(db *sql.DB, sellerID string, cardID int64, unitPrice int64, quantity int) (*Listing, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := removeCardUnitsTx(tx, sellerID, cardID, quantity); err != nil {
		return nil, err
	}

	var listingID string
	var existingQty int
	err = tx.QueryRow(`
		SELECT listing_id, quantity
		FROM market_listings
		WHERE seller_player_id = $1 AND card_id = $2 AND unit_price = $3
		FOR UPDATE
	`, sellerID, cardID, unitPrice).Scan(&listingID, &existingQty)

	switch {
	case err == sql.ErrNoRows:
		listingID = uuid.NewString()
		existingQty = 0
		if _, err := tx.Exec(`
			INSERT INTO market_listings (listing_id, card_id, seller_player_id, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, listingID, cardID, sellerID, unitPrice, quantity); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if _, err := tx.Exec(`
			UPDATE market_listings
			SET quantity = quantity + $2
			WHERE listing_id = $1
		`, listingID, quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Listing{
		ListingID: listingID,
		CardID:    cardID,
		SellerID:  sellerID,
		UnitPrice: unitPrice,
		Quantity:  existingQty + quantity,
	}, nil
}

type BuyOutcome struct {
	ListingID        string
	CardID           int64
	SellerID         string
	UnitPrice        int64
	BuyerBalance     int64
	ListingExhausted bool
}

// buyListing transfers exactly one unit from the listing to the buyer:
// buyer debit, seller credit, ledger credit and listing decrement are
// one transaction. The listing row is locked first so two concurrent
// buys of the last unit cannot both succeed.
func buyListing(db *sql.DB, listingID string, buyerID string) (*BuyOutcome, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var cardID int64
	var sellerID string
	var unitPrice int64
	var quantity int
	err = tx.QueryRow(`
		SELECT card_id, seller_player_id, unit_price, quantity
		FROM market_listings
		WHERE listing_id = $1
		FOR UPDATE
	`, listingID).Scan(&cardID, &sellerID, &unitPrice, &quantity)
	if err == sql.ErrNoRows {
		return nil, errListingNotFound
	}
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, errListingNotFound
	}
	if sellerID == buyerID {
		return nil, errSelfTradeForbidden
	}

	now := time.Now().UTC()
	buyerBalance, err := debitCoinsTx(tx, buyerID, unitPrice, SourceMarketBuy, now)
	if err != nil {
		return nil, err
	}
	if _, err := creditCoinsTx(tx, sellerID, unitPrice, SourceMarketSale, now); err != nil {
		return nil, err
	}
	if err := addCardUnitsTx(tx, buyerID, cardID, 1); err != nil {
		return nil, err
	}

	exhausted := quantity == 1
	if exhausted {
		if _, err := tx.Exec(`
			DELETE FROM market_listings
			WHERE listing_id = $1
		`, listingID); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.Exec(`
			UPDATE market_listings
			SET quantity = quantity - 1
			WHERE listing_id = $1
		`, listingID); err != nil {
			return nil, err
		}
	}

	if err := bumpChallengeProgressTx(tx, buyerID, RequirementMarketBuys, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &BuyOutcome{
		ListingID:        listingID,
		CardID:           cardID,
		SellerID:         sellerID,
		UnitPrice:        unitPrice,
		BuyerBalance:     buyerBalance,
		ListingExhausted: exhausted,
	}, nil
}
