package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

/* ======================
   Request / Response Types
   ====================== */

type SimpleResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type SignupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PlayerID    string `json:"playerId,omitempty"`
	Coins       int64  `json:"coins,omitempty"`
}

type PlayerResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
	Coins    int64  `json:"coins"`
}

type PackOpenRequest struct {
	PackType string `json:"packType,omitempty"`
}

type PackOpenResponse struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	PurchaseID string `json:"purchaseId,omitempty"`
	PackType   string `json:"packType,omitempty"`
	Cost       int64  `json:"cost,omitempty"`
	Cards      []Card `json:"cards,omitempty"`
	NewBalance int64  `json:"newBalance"`
}

type MarketSellRequest struct {
	CardID    int64 `json:"cardId"`
	UnitPrice int64 `json:"unitPrice"`
	Quantity  int   `json:"quantity"`
}

type MarketSellResponse struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Listing *Listing `json:"listing,omitempty"`
}

type MarketBuyRequest struct {
	ListingID string `json:"listingId"`
}

type MarketBuyResponse struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	CardID     int64  `json:"cardId,omitempty"`
	UnitPrice  int64  `json:"unitPrice,omitempty"`
	NewBalance int64  `json:"newBalance"`
}

type TradeCreateRequest struct {
	CounterpartyID  string `json:"counterpartyId"`
	OfferedCardID   int64  `json:"offeredCardId"`
	RequestedCardID int64  `json:"requestedCardId"`
	Message         string `json:"message,omitempty"`
}

type TradeResponse struct {
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	Trade *TradeOffer `json:"trade,omitempty"`
}

type BattleRequest struct {
	CardID int64 `json:"cardId"`
}

type BattleRewardRequest struct {
	CardID         int64 `json:"cardId"`
	OpponentCardID int64 `json:"opponentCardId"`
	Amount         int64 `json:"amount,omitempty"` // ignored, reward is server-side
}

type BattleResponse struct {
	OK         bool          `json:"ok"`
	Error      string        `json:"error,omitempty"`
	BattleID   string        `json:"battleId,omitempty"`
	Result     *BattleResult `json:"result,omitempty"`
	Reward     int64         `json:"reward"`
	NewBalance int64         `json:"newBalance,omitempty"`
}

type AchievementClaimRequest struct {
	AchievementID int64 `json:"achievementId"`
}

type AchievementClaimResponse struct {
	OK    bool              `json:"ok"`
	Error string            `json:"error,omitempty"`
	Claim *AchievementClaim `json:"claim,omitempty"`
}

type ChallengeClaimRequest struct {
	Period      string `json:"period"`
	ChallengeID int64  `json:"challengeId"`
}

type ChallengeClaimResponse struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Claim *ChallengeClaim `json:"claim,omitempty"`
}

type StreakRewardRequest struct {
	Milestone int `json:"milestone"`
}

type StreakRewardResponse struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Reward *StreakReward `json:"reward,omitempty"`
}

/* ======================
   Helpers
   ====================== */

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(SimpleResponse{OK: false, Error: code})
}

// failOp translates an operation error into its wire code. Taxonomy
// errors pass through; anything else is logged and reported as
// STORE_UNAVAILABLE.
func failOp(w http.ResponseWriter, op string, err error) {
	code := errorCode(err)
	if code == errStoreUnavailable.Error() {
		log.Printf("%s failed: %v", op, err)
	}
	writeError(w, errorStatus(code), code)
}

// requirePlayer resolves the acting player from the session cookie.
func requirePlayer(db *sql.DB, w http.ResponseWriter, r *http.Request) (string, bool) {
	account, _, err := getSessionAccount(db, r)
	if err != nil {
		failOp(w, "session", err)
		return "", false
	}
	return account.PlayerID, true
}

// newHandlerRNG seeds a fresh generator per request; the top-level
// rand source is safe for concurrent use, per-request ones are not.
func newHandlerRNG() *rand.Rand {
	return rand.New(rand.NewSource(rand.Int63()))
}

/* ======================
   Handlers
   ====================== */

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func signupHandler(db *sql.DB, sessionTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		account, err := createAccount(db, req.Username, req.Password, req.DisplayName)
		if err != nil {
			failOp(w, "signup", err)
			return
		}

		sessionID, expiresAt, err := createSession(db, account.AccountID, sessionTTL)
		if err != nil {
			failOp(w, "signup session", err)
			return
		}
		writeSessionCookie(w, sessionID, expiresAt)

		writeJSON(w, AuthResponse{
			OK:          true,
			Username:    account.Username,
			DisplayName: account.DisplayName,
			PlayerID:    account.PlayerID,
			Coins:       signupCoinGrant,
		})
	}
}

func loginHandler(db *sql.DB, sessionTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		account, err := authenticate(db, req.Username, req.Password)
		if err != nil {
			failOp(w, "login", err)
			return
		}

		sessionID, expiresAt, err := createSession(db, account.AccountID, sessionTTL)
		if err != nil {
			failOp(w, "login session", err)
			return
		}
		writeSessionCookie(w, sessionID, expiresAt)

		player, err := loadPlayer(db, account.PlayerID)
		if err != nil {
			failOp(w, "login player", err)
			return
		}
		var coins int64
		if player != nil {
			coins = player.Coins
		}

		writeJSON(w, AuthResponse{
			OK:          true,
			Username:    account.Username,
			DisplayName: account.DisplayName,
			PlayerID:    account.PlayerID,
			Coins:       coins,
		})
	}
}

func logoutHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("session_id"); err == nil {
			clearSession(db, cookie.Value)
		}
		clearSessionCookie(w)
		writeJSON(w, SimpleResponse{OK: true})
	}
}

func meHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, _, err := getSessionAccount(db, r)
		if err != nil {
			failOp(w, "me", err)
			return
		}

		player, err := loadPlayer(db, account.PlayerID)
		if err != nil {
			failOp(w, "me player", err)
			return
		}
		var coins int64
		if player != nil {
			coins = player.Coins
		}

		writeJSON(w, AuthResponse{
			OK:          true,
			Username:    account.Username,
			DisplayName: account.DisplayName,
			PlayerID:    account.PlayerID,
			Coins:       coins,
		})
	}
}

func playerHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		player, err := loadPlayer(db, playerID)
		if err != nil {
			failOp(w, "player", err)
			return
		}
		if player == nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}

		writeJSON(w, PlayerResponse{OK: true, PlayerID: player.PlayerID, Coins: player.Coins})
	}
}

func cardsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := listCards(db, r.URL.Query().Get("search"))
		if err != nil {
			failOp(w, "cards", err)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "cards": cards})
	}
}

func collectionHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		owned, err := listCollection(db, playerID)
		if err != nil {
			failOp(w, "collection", err)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "collection": owned})
	}
}

func packOpenHandler(db *sql.DB, rules PackRules, packType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		result, err := openPack(db, rules, packType, playerID, newHandlerRNG())
		if err != nil {
			failOp(w, "pack open", err)
			return
		}

		writeJSON(w, PackOpenResponse{
			OK:         true,
			PurchaseID: result.PurchaseID,
			PackType:   result.PackType,
			Cost:       result.Cost,
			Cards:      result.Cards,
			NewBalance: result.NewBalance,
		})
	}
}

func marketplaceHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		listings, err := listListings(db, ListingFilters{
			Search:  q.Get("search"),
			Element: q.Get("type"),
			Rarity:  q.Get("rarity"),
			Sort:    q.Get("sort"),
		})
		if err != nil {
			failOp(w, "marketplace", err)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "listings": listings})
	}
}

func marketplaceSellHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		var req MarketSellRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}
		if req.CardID <= 0 || req.UnitPrice <= 0 || req.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		listing, err := sellCards(db, playerID, req.CardID, req.UnitPrice, req.Quantity)
		if err != nil {
			failOp(w, "marketplace sell", err)
			return
		}

		writeJSON(w, MarketSellResponse{OK: true, Listing: listing})
	}
}

func marketplaceBuyHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		var req MarketBuyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ListingID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		outcome, err := buyListing(db, req.ListingID, playerID)
		if err != nil {
			failOp(w, "marketplace buy", err)
			return
		}

		emitNotification(db, outcome.SellerID, NotificationCategoryMarket,
			fmt.Sprintf("One of your listings sold for %d coins", outcome.UnitPrice))
		writeJSON(w, MarketBuyResponse{
			OK:         true,
			CardID:     outcome.CardID,
			UnitPrice:  outcome.UnitPrice,
			NewBalance: outcome.BuyerBalance,
		})
	}
}

func tradeCreateHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		var req TradeCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}
		if !isValidPlayerID(req.CounterpartyID) || req.OfferedCardID <= 0 || req.RequestedCardID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		trade, err := createTrade(db, playerID, req.CounterpartyID, req.OfferedCardID, req.RequestedCardID, req.Message)
		if err != nil {
			failOp(w, "trade create", err)
			return
		}

		emitNotification(db, trade.CounterpartyID, NotificationCategoryTrade,
			"You received a trade offer")
		writeJSON(w, TradeResponse{OK: true, Trade: trade})
	}
}

func tradeListHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		trades, err := listTrades(db, playerID)
		if err != nil {
			failOp(w, "trade list", err)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "trades": trades})
	}
}

func tradeResolveHandler(db *sql.DB, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		tradeID := r.PathValue("id")
		if tradeID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		var trade *TradeOffer
		var err error
		switch action {
		case "accept":
			trade, err = acceptTrade(db, tradeID, playerID)
		case "reject":
			trade, err = rejectTrade(db, tradeID, playerID)
		default:
			trade, err = cancelTrade(db, tradeID, playerID)
		}
		if err != nil {
			failOp(w, "trade "+action, err)
			return
		}

		if trade.Status == TradeAccepted {
			emitNotification(db, trade.ProposerID, NotificationCategoryTrade,
				"Your trade offer was accepted")
		}
		writeJSON(w, TradeResponse{OK: true, Trade: trade})
	}
}

func battleHandler(db *sql.DB, chart TypeChart, reward int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		var req BattleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CardID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		outcome, err := fightBattle(db, chart, reward, playerID, req.CardID, newHandlerRNG())
		if err != nil {
			failOp(w, "battle", err)
			return
		}

		writeJSON(w, BattleResponse{
			OK:         true,
			BattleID:   outcome.BattleID,
			Result:     outcome.Result,
			Reward:     outcome.Reward,
			NewBalance: outcome.NewBalance,
		})
	}
}

func battleRewardHandler(db *sql.DB, reward int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		var req BattleRewardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CardID <= 0 || req.OpponentCardID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		outcome, err := recordBattleWin(db, reward, playerID, req.CardID, req.OpponentCardID)
		if err != nil {
			failOp(w, "battle reward", err)
			return
		}

		writeJSON(w, BattleResponse{
			OK:         true,
			BattleID:   outcome.BattleID,
			Reward:     outcome.Reward,
			NewBalance: outcome.NewBalance,
		})
	}
}

func statsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		stats, err := computePlayerStats(db, playerID)
		if err != nil {
			failOp(w, "stats", err)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "stats": stats})
	}
}

func achievementsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		achievements, err := listAchievements(db, playerID)
		if err != nil {
			failOp(w, "achievements", err)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "achievements": achievements})
	}
}

func achievementClaimHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		var req AchievementClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AchievementID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		claim, err := claimAchievement(db, playerID, req.AchievementID)
		if err != nil {
			failOp(w, "achievement claim", err)
			return
		}

		if !claim.AlreadyClaimed {
			emitNotification(db, playerID, NotificationCategoryAchievement,
				fmt.Sprintf("Achievement unlocked: %s (+%d coins)", claim.Name, claim.Reward))
		}
		writeJSON(w, AchievementClaimResponse{OK: true, Claim: claim})
	}
}

func challengesHandler(db *sql.DB, period string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		challenges, err := listChallenges(db, playerID, period)
		if err != nil {
			failOp(w, "challenges", err)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "challenges": challenges})
	}
}

func challengeClaimHandler(db *sql.DB, rules PackRules) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		var req ChallengeClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChallengeID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}
		if req.Period == "" {
			req.Period = PeriodDaily
		}

		claim, err := claimChallenge(db, rules, playerID, req.Period, req.ChallengeID, newHandlerRNG())
		if err != nil {
			failOp(w, "challenge claim", err)
			return
		}
		writeJSON(w, ChallengeClaimResponse{OK: true, Claim: claim})
	}
}

func streakHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		streak, err := getStreak(db, playerID)
		if err != nil {
			failOp(w, "streak", err)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "streak": streak})
	}
}

func streakRewardHandler(db *sql.DB, rules PackRules, milestones []StreakMilestone) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		var req StreakRewardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Milestone <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}

		reward, err := claimStreakMilestone(db, rules, milestones, playerID, req.Milestone, newHandlerRNG())
		if err != nil {
			failOp(w, "streak reward", err)
			return
		}
		writeJSON(w, StreakRewardResponse{OK: true, Reward: reward})
	}
}

func notificationsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := listNotifications(db, playerID, limit)
		if err != nil {
			// Notifications degrade instead of failing the page.
			log.Println("notifications list failed:", err)
			items = []NotificationItem{}
		}
		writeJSON(w, map[string]interface{}{"ok": true, "notifications": items})
	}
}

func notificationsReadHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := requirePlayer(db, w, r)
		if !ok {
			return
		}

		if err := markNotificationsRead(db, playerID); err != nil {
			log.Println("notifications read failed:", err)
		}
		writeJSON(w, SimpleResponse{OK: true})
	}
}
