package main

import "database/sql"

// querier is satisfied by both *sql.DB and *sql.Tx so stats can be
// read standalone or inside a claim transaction.
type querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

type PlayerStats struct {
	UniqueCards    int `json:"uniqueCards"`
	TotalCards     int `json:"totalCards"`
	LegendaryCards int `json:"legendaryCards"`
	BattlesWon     int `json:"battlesWon"`
	TradesDone     int `json:"tradesDone"`
	PacksOpened    int `json:"packsOpened"`
}

// computePlayerStats derives the live stats straight from the ledgers.
// Nothing is cached: achievement progress reads whatever is true at
// claim time. Legendary counts include mythics.
func computePlayerStats(q querier, playerID string) (*PlayerStats, error) {
	var s PlayerStats
	err := q.QueryRow(`
		SELECT
		    (SELECT COUNT(*) FROM player_cards WHERE player_id = $1),
		    (SELECT COALESCE(SUM(quantity), 0) FROM player_cards WHERE player_id = $1),
		    (SELECT COUNT(*)
		     FROM player_cards pc
		     JOIN cards c ON c.card_id = pc.card_id
		     WHERE pc.player_id = $1 AND c.rarity IN ($2, $3)),
		    (SELECT COUNT(*) FROM battles WHERE player_id = $1 AND winner = 'player'),
		    (SELECT COUNT(*)
		     FROM trade_offers
		     WHERE status = 'accepted'
		       AND (proposer_player_id = $1 OR counterparty_player_id = $1)),
		    (SELECT COUNT(*) FROM pack_purchases WHERE player_id = $1)
	`, playerID, RarityLegendary, RarityMythic).Scan(
		&s.UniqueCards, &s.TotalCards, &s.LegendaryCards,
		&s.BattlesWon, &s.TradesDone, &s.PacksOpened)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
