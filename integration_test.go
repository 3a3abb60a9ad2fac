package main

import (
	"database/sql"
	"errors"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("ping database: %v", err)
	}
	if err := runMigrations(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestPlayer(t *testing.T, db *sql.DB, coins int64) string {
	t.Helper()
	playerID := uuid.NewString()
	if _, err := db.Exec(`
		INSERT INTO players (player_id, coins)
		VALUES ($1, $2)
	`, playerID, coins); err != nil {
		t.Fatalf("create player: %v", err)
	}
	return playerID
}

func giveCards(t *testing.T, db *sql.DB, playerID string, cardID int64, n int) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := addCardUnitsTx(tx, playerID, cardID, n); err != nil {
		tx.Rollback()
		t.Fatalf("add card units: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func playerBalance(t *testing.T, db *sql.DB, playerID string) int64 {
	t.Helper()
	var coins int64
	if err := db.QueryRow(`
		SELECT coins FROM players WHERE player_id = $1
	`, playerID).Scan(&coins); err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return coins
}

func testRules() PackRules {
	return defaultPackRules(Config{BasicPackCost: 50, PremiumPackCost: 150})
}

func TestOpenBasicPack(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 200)

	result, err := openPack(db, testRules(), PackBasic, playerID, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("openPack: %v", err)
	}

	if result.NewBalance != 150 {
		t.Errorf("balance after pack = %d, want 150", result.NewBalance)
	}
	if len(result.Cards) != 3 {
		t.Errorf("got %d cards, want 3", len(result.Cards))
	}

	owned, err := listCollection(db, playerID)
	if err != nil {
		t.Fatalf("listCollection: %v", err)
	}
	total := 0
	for _, o := range owned {
		total += o.Quantity
	}
	if total != 3 {
		t.Errorf("inventory total = %d, want 3", total)
	}

	// The debit must leave an audit row whose running balance matches.
	var after int64
	if err := db.QueryRow(`
		SELECT coins_after
		FROM coin_ledger
		WHERE player_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, playerID).Scan(&after); err != nil {
		t.Fatalf("ledger read: %v", err)
	}
	if after != 150 {
		t.Errorf("ledger coins_after = %d, want 150", after)
	}
}

func TestOpenPackInsufficientFunds(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 10)

	_, err := openPack(db, testRules(), PackBasic, playerID, rand.New(rand.NewSource(1)))
	if !errors.Is(err, errInsufficientFunds) {
		t.Fatalf("err = %v, want INSUFFICIENT_FUNDS", err)
	}
	if got := playerBalance(t, db, playerID); got != 10 {
		t.Errorf("balance changed to %d after failed pack", got)
	}

	var cards int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM player_cards WHERE player_id = $1
	`, playerID).Scan(&cards); err != nil {
		t.Fatal(err)
	}
	if cards != 0 {
		t.Errorf("failed pack still granted %d inventory lines", cards)
	}
}

func TestPremiumPackDrawsFive(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 300)

	result, err := openPack(db, testRules(), PackPremium, playerID, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("openPack premium: %v", err)
	}
	if result.Cost != 150 || result.NewBalance != 150 {
		t.Errorf("premium cost/balance = %d/%d, want 150/150", result.Cost, result.NewBalance)
	}
	if len(result.Cards) == 0 || len(result.Cards) > 5 {
		t.Errorf("premium draw returned %d cards, want 1..5", len(result.Cards))
	}
}

func TestPremiumPackEmptyTier(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 300)

	// A tier naming a rarity with no catalog entries makes every draw
	// miss. The pack still costs full price and the purchase row
	// records exactly what was drawn.
	rules := testRules()
	rules.RarityTiers = []RarityTier{{100, "Ancient"}}

	result, err := openPack(db, rules, PackPremium, playerID, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("openPack premium: %v", err)
	}
	if result.NewBalance != 150 {
		t.Errorf("balance = %d, want 150 (full debit on empty draws)", result.NewBalance)
	}
	if len(result.Cards) != 0 {
		t.Errorf("empty tier yielded %d cards, want 0", len(result.Cards))
	}

	var lines int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM player_cards WHERE player_id = $1
	`, playerID).Scan(&lines); err != nil {
		t.Fatal(err)
	}
	if lines != 0 {
		t.Errorf("empty draw still granted %d inventory lines", lines)
	}

	var received string
	if err := db.QueryRow(`
		SELECT cards_received FROM pack_purchases WHERE purchase_id = $1
	`, result.PurchaseID).Scan(&received); err != nil {
		t.Fatalf("purchase row: %v", err)
	}
	if received != "[]" {
		t.Errorf("cards_received = %q, want []", received)
	}
}

func TestMarketplaceSellBuyConservation(t *testing.T) {
	db := openTestDB(t)
	seller := createTestPlayer(t, db, 0)
	buyer := createTestPlayer(t, db, 100)
	giveCards(t, db, seller, 1, 1)

	listing, err := sellCards(db, seller, 1, 30, 1)
	if err != nil {
		t.Fatalf("sellCards: %v", err)
	}

	// Units left the seller's ledger when the listing went up.
	if qty, _ := cardQuantity(db, seller, 1); qty != 0 {
		t.Errorf("seller still holds %d units", qty)
	}

	outcome, err := buyListing(db, listing.ListingID, buyer)
	if err != nil {
		t.Fatalf("buyListing: %v", err)
	}
	if outcome.BuyerBalance != 70 {
		t.Errorf("buyer balance = %d, want 70", outcome.BuyerBalance)
	}
	if got := playerBalance(t, db, seller); got != 30 {
		t.Errorf("seller balance = %d, want 30", got)
	}
	if qty, _ := cardQuantity(db, buyer, 1); qty != 1 {
		t.Errorf("buyer holds %d units, want 1", qty)
	}

	// The exhausted listing is gone.
	if _, err := buyListing(db, listing.ListingID, buyer); !errors.Is(err, errListingNotFound) {
		t.Errorf("second buy err = %v, want LISTING_NOT_FOUND", err)
	}
}

func TestMarketplaceBuyInsufficientFunds(t *testing.T) {
	db := openTestDB(t)
	seller := createTestPlayer(t, db, 0)
	buyer := createTestPlayer(t, db, 10)
	giveCards(t, db, seller, 4, 1)

	listing, err := sellCards(db, seller, 4, 20, 1)
	if err != nil {
		t.Fatalf("sellCards: %v", err)
	}

	if _, err := buyListing(db, listing.ListingID, buyer); !errors.Is(err, errInsufficientFunds) {
		t.Fatalf("err = %v, want INSUFFICIENT_FUNDS", err)
	}

	// Nothing moved on either side.
	if got := playerBalance(t, db, buyer); got != 10 {
		t.Errorf("buyer balance = %d, want 10", got)
	}
	if got := playerBalance(t, db, seller); got != 0 {
		t.Errorf("seller balance = %d, want 0", got)
	}
	if qty, _ := cardQuantity(db, buyer, 4); qty != 0 {
		t.Errorf("buyer gained %d units from failed buy", qty)
	}

	var qty int
	if err := db.QueryRow(`
		SELECT quantity FROM market_listings WHERE listing_id = $1
	`, listing.ListingID).Scan(&qty); err != nil || qty != 1 {
		t.Errorf("listing quantity = %d (err %v), want 1", qty, err)
	}
}

func TestMarketplaceBuyOwnListing(t *testing.T) {
	db := openTestDB(t)
	seller := createTestPlayer(t, db, 100)
	giveCards(t, db, seller, 2, 1)

	listing, err := sellCards(db, seller, 2, 10, 1)
	if err != nil {
		t.Fatalf("sellCards: %v", err)
	}
	if _, err := buyListing(db, listing.ListingID, seller); !errors.Is(err, errSelfTradeForbidden) {
		t.Errorf("err = %v, want SELF_TRADE_FORBIDDEN", err)
	}
}

func TestMarketplaceSellInsufficientInventory(t *testing.T) {
	db := openTestDB(t)
	seller := createTestPlayer(t, db, 0)

	if _, err := sellCards(db, seller, 3, 10, 1); !errors.Is(err, errInsufficientInventory) {
		t.Errorf("err = %v, want INSUFFICIENT_INVENTORY", err)
	}
}

func TestTradeAcceptSwapsCards(t *testing.T) {
	db := openTestDB(t)
	proposer := createTestPlayer(t, db, 0)
	counterparty := createTestPlayer(t, db, 0)
	giveCards(t, db, proposer, 1, 1)
	giveCards(t, db, counterparty, 2, 1)

	trade, err := createTrade(db, proposer, counterparty, 1, 2, "swap?")
	if err != nil {
		t.Fatalf("createTrade: %v", err)
	}

	accepted, err := acceptTrade(db, trade.TradeID, counterparty)
	if err != nil {
		t.Fatalf("acceptTrade: %v", err)
	}
	if accepted.Status != TradeAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}

	if qty, _ := cardQuantity(db, proposer, 2); qty != 1 {
		t.Errorf("proposer holds %d of requested card, want 1", qty)
	}
	if qty, _ := cardQuantity(db, counterparty, 1); qty != 1 {
		t.Errorf("counterparty holds %d of offered card, want 1", qty)
	}
	if qty, _ := cardQuantity(db, proposer, 1); qty != 0 {
		t.Errorf("proposer still holds offered card")
	}

	// Settled offers are terminal.
	if _, err := acceptTrade(db, trade.TradeID, counterparty); !errors.Is(err, errInvalidOfferState) {
		t.Errorf("second accept err = %v, want INVALID_OFFER_STATE", err)
	}
}

func TestTradeAcceptShortfallLeavesPending(t *testing.T) {
	db := openTestDB(t)
	proposer := createTestPlayer(t, db, 0)
	counterparty := createTestPlayer(t, db, 0)
	giveCards(t, db, counterparty, 2, 1)
	// Proposer never owned card 1: speculative offer.

	trade, err := createTrade(db, proposer, counterparty, 1, 2, "")
	if err != nil {
		t.Fatalf("createTrade: %v", err)
	}

	if _, err := acceptTrade(db, trade.TradeID, counterparty); !errors.Is(err, errInsufficientInventory) {
		t.Fatalf("accept err = %v, want INSUFFICIENT_INVENTORY", err)
	}

	var status string
	if err := db.QueryRow(`
		SELECT status FROM trade_offers WHERE trade_id = $1
	`, trade.TradeID).Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != TradePending {
		t.Errorf("status = %s, want pending after rolled-back settlement", status)
	}
	if qty, _ := cardQuantity(db, counterparty, 2); qty != 1 {
		t.Errorf("counterparty inventory changed by failed settlement")
	}
}

func TestTradeWrongParty(t *testing.T) {
	db := openTestDB(t)
	proposer := createTestPlayer(t, db, 0)
	counterparty := createTestPlayer(t, db, 0)
	stranger := createTestPlayer(t, db, 0)

	trade, err := createTrade(db, proposer, counterparty, 1, 2, "")
	if err != nil {
		t.Fatalf("createTrade: %v", err)
	}

	if _, err := acceptTrade(db, trade.TradeID, stranger); !errors.Is(err, errUnauthorized) {
		t.Errorf("stranger accept err = %v, want UNAUTHORIZED", err)
	}
	if _, err := cancelTrade(db, trade.TradeID, counterparty); !errors.Is(err, errUnauthorized) {
		t.Errorf("counterparty cancel err = %v, want UNAUTHORIZED", err)
	}
	if _, err := cancelTrade(db, trade.TradeID, proposer); err != nil {
		t.Errorf("proposer cancel err = %v", err)
	}
}

func TestSelfTradeRejected(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 0)

	if _, err := createTrade(db, playerID, playerID, 1, 2, ""); !errors.Is(err, errSelfTradeForbidden) {
		t.Errorf("err = %v, want SELF_TRADE_FORBIDDEN", err)
	}
}

func TestAchievementClaimIdempotent(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 200)

	// One opened pack satisfies the first pack achievement.
	if _, err := openPack(db, testRules(), PackBasic, playerID, rand.New(rand.NewSource(5))); err != nil {
		t.Fatalf("openPack: %v", err)
	}

	claim, err := claimAchievement(db, playerID, 1)
	if err != nil {
		t.Fatalf("claimAchievement: %v", err)
	}
	if claim.AlreadyClaimed {
		t.Error("first claim reported as repeat")
	}
	balanceAfterFirst := playerBalance(t, db, playerID)
	if balanceAfterFirst != 150+claim.Reward {
		t.Errorf("balance = %d, want %d", balanceAfterFirst, 150+claim.Reward)
	}

	again, err := claimAchievement(db, playerID, 1)
	if err != nil {
		t.Fatalf("repeat claim: %v", err)
	}
	if !again.AlreadyClaimed {
		t.Error("repeat claim not flagged")
	}
	if got := playerBalance(t, db, playerID); got != balanceAfterFirst {
		t.Errorf("repeat claim moved balance to %d", got)
	}
}

func TestAchievementClaimConcurrent(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 200)

	if _, err := openPack(db, testRules(), PackBasic, playerID, rand.New(rand.NewSource(7))); err != nil {
		t.Fatalf("openPack: %v", err)
	}

	// Race several first-time claims of the same achievement. Exactly
	// one may credit the reward.
	const claimers = 4
	claims := make([]*AchievementClaim, claimers)
	errs := make([]error, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claims[i], errs[i] = claimAchievement(db, playerID, 1)
		}(i)
	}
	wg.Wait()

	var reward int64
	firstClaims := 0
	for i := 0; i < claimers; i++ {
		if errs[i] != nil {
			t.Fatalf("claim %d: %v", i, errs[i])
		}
		if !claims[i].AlreadyClaimed {
			firstClaims++
			reward = claims[i].Reward
		}
	}
	if firstClaims != 1 {
		t.Fatalf("firstClaims = %d, want 1", firstClaims)
	}
	if got := playerBalance(t, db, playerID); got != 150+reward {
		t.Errorf("balance = %d, want %d (credited once)", got, 150+reward)
	}
}

func TestAchievementClaimGuards(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 0)

	if _, err := claimAchievement(db, playerID, 99999); !errors.Is(err, errAchievementNotFound) {
		t.Errorf("err = %v, want ACHIEVEMENT_NOT_FOUND", err)
	}
	// No packs opened yet.
	if _, err := claimAchievement(db, playerID, 1); !errors.Is(err, errAchievementNotCompleted) {
		t.Errorf("err = %v, want ACHIEVEMENT_NOT_COMPLETED", err)
	}
}

func TestChallengeClaimAdvancesStreak(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 200)

	var challengeID int64
	if err := db.QueryRow(`
		INSERT INTO daily_challenges (title, description, requirement_type, target, reward_type, reward_value, active, expires_at)
		VALUES ('Test packs', 'Open a pack', 'packs', 1, 'coins', 40, TRUE, NOW() + INTERVAL '1 day')
		RETURNING challenge_id
	`).Scan(&challengeID); err != nil {
		t.Fatalf("insert challenge: %v", err)
	}

	// Unclaimed and incomplete: not claimable yet.
	if _, err := claimChallenge(db, testRules(), playerID, PeriodDaily, challengeID, rand.New(rand.NewSource(1))); !errors.Is(err, errChallengeNotClaimable) {
		t.Fatalf("premature claim err = %v, want CHALLENGE_NOT_CLAIMABLE", err)
	}

	if _, err := openPack(db, testRules(), PackBasic, playerID, rand.New(rand.NewSource(2))); err != nil {
		t.Fatalf("openPack: %v", err)
	}

	claim, err := claimChallenge(db, testRules(), playerID, PeriodDaily, challengeID, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("claimChallenge: %v", err)
	}
	if claim.NewBalance != 150+40 {
		t.Errorf("balance = %d, want 190", claim.NewBalance)
	}
	if claim.Streak == nil || claim.Streak.CurrentStreak < 1 {
		t.Errorf("streak not advanced: %+v", claim.Streak)
	}
	if claim.Streak.LastCompletionDate != time.Now().UTC().Format(dayLayout) {
		t.Errorf("last completion date = %s", claim.Streak.LastCompletionDate)
	}

	if _, err := claimChallenge(db, testRules(), playerID, PeriodDaily, challengeID, rand.New(rand.NewSource(4))); !errors.Is(err, errChallengeNotClaimable) {
		t.Errorf("repeat claim err = %v, want CHALLENGE_NOT_CLAIMABLE", err)
	}
}

func TestStreakMilestoneClaimOnce(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 0)

	if _, err := db.Exec(`
		INSERT INTO challenge_streaks (player_id, current_streak, longest_streak, last_completion_date)
		VALUES ($1, 3, 3, CURRENT_DATE)
	`, playerID); err != nil {
		t.Fatal(err)
	}

	milestones := defaultStreakMilestones()
	reward, err := claimStreakMilestone(db, testRules(), milestones, playerID, 3, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("claimStreakMilestone: %v", err)
	}
	if reward.RewardType != RewardCoins || reward.NewBalance != 100 {
		t.Errorf("reward = %s/%d balance %d, want coins/100", reward.RewardType, reward.RewardValue, reward.NewBalance)
	}

	if _, err := claimStreakMilestone(db, testRules(), milestones, playerID, 3, rand.New(rand.NewSource(2))); !errors.Is(err, errChallengeNotClaimable) {
		t.Errorf("repeat milestone err = %v, want CHALLENGE_NOT_CLAIMABLE", err)
	}
	if _, err := claimStreakMilestone(db, testRules(), milestones, playerID, 7, rand.New(rand.NewSource(3))); !errors.Is(err, errChallengeNotClaimable) {
		t.Errorf("unreached milestone err = %v, want CHALLENGE_NOT_CLAIMABLE", err)
	}
}

func TestBattleRewardCreditsWinner(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 0)

	outcome, err := recordBattleWin(db, 50, playerID, 1, 2)
	if err != nil {
		t.Fatalf("recordBattleWin: %v", err)
	}
	if outcome.Reward != 50 || outcome.NewBalance != 50 {
		t.Errorf("reward/balance = %d/%d, want 50/50", outcome.Reward, outcome.NewBalance)
	}

	stats, err := computePlayerStats(db, playerID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.BattlesWon != 1 {
		t.Errorf("battles won = %d, want 1", stats.BattlesWon)
	}
}

func TestFightBattleRequiresOwnership(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 0)

	if _, err := fightBattle(db, DefaultTypeChart(), 50, playerID, 1, rand.New(rand.NewSource(1))); !errors.Is(err, errInsufficientInventory) {
		t.Errorf("err = %v, want INSUFFICIENT_INVENTORY", err)
	}
}

func TestFightBattlePersistsOutcome(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 0)
	giveCards(t, db, playerID, 1, 1)

	outcome, err := fightBattle(db, DefaultTypeChart(), 50, playerID, 1, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("fightBattle: %v", err)
	}

	var winner string
	var reward int64
	if err := db.QueryRow(`
		SELECT winner, reward FROM battles WHERE battle_id = $1
	`, outcome.BattleID).Scan(&winner, &reward); err != nil {
		t.Fatal(err)
	}
	if winner != outcome.Result.Winner {
		t.Errorf("stored winner %s != result %s", winner, outcome.Result.Winner)
	}
	if winner == "player" && reward != 50 {
		t.Errorf("winning battle stored reward %d", reward)
	}
	if winner == "opponent" && reward != 0 {
		t.Errorf("losing battle stored reward %d", reward)
	}
}

func TestSignupGrantAndAuth(t *testing.T) {
	db := openTestDB(t)

	username := "tester-" + uuid.NewString()[:8]
	account, err := createAccount(db, username, "hunter2hunter2", "Tester")
	if err != nil {
		t.Fatalf("createAccount: %v", err)
	}
	if got := playerBalance(t, db, account.PlayerID); got != signupCoinGrant {
		t.Errorf("signup balance = %d, want %d", got, signupCoinGrant)
	}

	if _, err := authenticate(db, username, "wrong-password"); !errors.Is(err, errInvalidCredentials) {
		t.Errorf("bad password err = %v, want INVALID_CREDENTIALS", err)
	}
	if _, err := authenticate(db, username, "hunter2hunter2"); err != nil {
		t.Errorf("authenticate: %v", err)
	}

	if _, err := createAccount(db, username, "hunter2hunter2", ""); !errors.Is(err, errUsernameTaken) {
		t.Errorf("duplicate signup err = %v, want USERNAME_TAKEN", err)
	}
}

func TestCoinBalanceNeverNegative(t *testing.T) {
	db := openTestDB(t)
	playerID := createTestPlayer(t, db, 5)

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	if _, err := debitCoinsTx(tx, playerID, 10, SourceMarketBuy, time.Now().UTC()); !errors.Is(err, errInsufficientFunds) {
		t.Fatalf("err = %v, want INSUFFICIENT_FUNDS", err)
	}
}
