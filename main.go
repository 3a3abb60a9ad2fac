package main

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("config:", err)
	}
	log.Println("App environment:", cfg.AppEnv)
	if cfg.DevMode {
		log.Println("⚠️  DEV MODE ENABLED")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database:", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatal("failed to ping database:", err)
	}
	log.Println("Connected to PostgreSQL")

	if err := runMigrations(db); err != nil {
		log.Fatal("migrations:", err)
	}

	startNotificationPruner(db)

	rules := defaultPackRules(cfg)
	chart := DefaultTypeChart()
	milestones := defaultStreakMilestones()

	mux := http.NewServeMux()
	registerRoutes(mux, db, cfg, rules, chart, milestones)

	limiter := newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	addr := "0.0.0.0:" + cfg.Port
	log.Println("Listening on", addr)
	if err := http.ListenAndServe(addr, limiter.middleware(mux)); err != nil {
		log.Fatal("server failed:", err)
	}
}

func registerRoutes(mux *http.ServeMux, db *sql.DB, cfg Config, rules PackRules, chart TypeChart, milestones []StreakMilestone) {
	mux.HandleFunc("GET /health", healthHandler)

	mux.HandleFunc("POST /auth/signup", signupHandler(db, cfg.SessionTTL))
	mux.HandleFunc("POST /auth/login", loginHandler(db, cfg.SessionTTL))
	mux.HandleFunc("POST /auth/logout", logoutHandler(db))
	mux.HandleFunc("GET /auth/me", meHandler(db))

	mux.HandleFunc("GET /player", playerHandler(db))
	mux.HandleFunc("GET /cards", cardsHandler(db))
	mux.HandleFunc("GET /collection", collectionHandler(db))

	mux.HandleFunc("POST /packs/buy", packOpenHandler(db, rules, PackBasic))
	mux.HandleFunc("POST /packs/premium", packOpenHandler(db, rules, PackPremium))

	mux.HandleFunc("GET /marketplace", marketplaceHandler(db))
	mux.HandleFunc("POST /marketplace/sell", marketplaceSellHandler(db))
	mux.HandleFunc("POST /marketplace/buy", marketplaceBuyHandler(db))

	mux.HandleFunc("GET /trades", tradeListHandler(db))
	mux.HandleFunc("POST /trades", tradeCreateHandler(db))
	mux.HandleFunc("POST /trades/{id}/accept", tradeResolveHandler(db, "accept"))
	mux.HandleFunc("POST /trades/{id}/reject", tradeResolveHandler(db, "reject"))
	mux.HandleFunc("POST /trades/{id}/cancel", tradeResolveHandler(db, "cancel"))

	mux.HandleFunc("POST /battle", battleHandler(db, chart, int64(cfg.BattleReward)))
	mux.HandleFunc("POST /battle/reward", battleRewardHandler(db, int64(cfg.BattleReward)))

	mux.HandleFunc("GET /stats", statsHandler(db))

	mux.HandleFunc("GET /achievements", achievementsHandler(db))
	mux.HandleFunc("POST /achievements/claim", achievementClaimHandler(db))

	mux.HandleFunc("GET /challenges/daily", challengesHandler(db, PeriodDaily))
	mux.HandleFunc("GET /challenges/weekly", challengesHandler(db, PeriodWeekly))
	mux.HandleFunc("POST /challenges/claim", challengeClaimHandler(db, rules))
	mux.HandleFunc("GET /challenges/streak", streakHandler(db))
	mux.HandleFunc("POST /challenges/streak-reward", streakRewardHandler(db, rules, milestones))

	mux.HandleFunc("GET /notifications", notificationsHandler(db))
	mux.HandleFunc("POST /notifications/read", notificationsReadHandler(db))
}
