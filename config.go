package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        string `env:"PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	DevMode     bool   `env:"DEV_MODE"`

	BasicPackCost   int `env:"BASIC_PACK_COST" envDefault:"50"`
	PremiumPackCost int `env:"PREMIUM_PACK_COST" envDefault:"150"`
	BattleReward    int `env:"BATTLE_REWARD" envDefault:"50"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"5"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// RarityTier maps the upper bound of a premium-pack roll in [0,100) to a
// rarity. Tiers are checked in order, so bounds must be ascending.
type RarityTier struct {
	UpperBound float64
	Rarity     string
}

// PackRules is the injected pack catalog: costs, draw counts and the
// premium rarity distribution.
type PackRules struct {
	BasicCost    int
	BasicDraws   int
	PremiumCost  int
	PremiumDraws int
	RarityTiers  []RarityTier
}

func defaultPackRules(cfg Config) PackRules {
	return PackRules{
		BasicCost:    cfg.BasicPackCost,
		BasicDraws:   3,
		PremiumCost:  cfg.PremiumPackCost,
		PremiumDraws: 5,
		RarityTiers: []RarityTier{
			{0.5, RarityMythic},
			{3, RarityLegendary},
			{10, RarityEpic},
			{30, RarityRare},
			{60, RarityUncommon},
			{100, RarityCommon},
		},
	}
}

// StreakMilestone is a consecutive-day threshold with its reward.
type StreakMilestone struct {
	Level       int
	RewardType  string
	RewardValue int64
}

func defaultStreakMilestones() []StreakMilestone {
	return []StreakMilestone{
		{3, RewardCoins, 100},
		{7, RewardBasicPack, 1},
		{14, RewardCoins, 300},
		{30, RewardPremiumPack, 1},
		{50, RewardLegendaryCard, 1},
	}
}
