package main

import "testing"

func TestRarityForRollThresholds(t *testing.T) {
	tiers := defaultPackRules(Config{BasicPackCost: 50, PremiumPackCost: 150}).RarityTiers

	cases := []struct {
		roll float64
		want string
	}{
		{0, RarityMythic},
		{0.49, RarityMythic},
		{0.5, RarityLegendary},
		{2.99, RarityLegendary},
		{3, RarityEpic},
		{9.99, RarityEpic},
		{10, RarityRare},
		{29.99, RarityRare},
		{30, RarityUncommon},
		{59.99, RarityUncommon},
		{60, RarityCommon},
		{99.99, RarityCommon},
	}
	for _, tc := range cases {
		if got := rarityForRoll(tiers, tc.roll); got != tc.want {
			t.Errorf("rarityForRoll(%v) = %s, want %s", tc.roll, got, tc.want)
		}
	}
}

func TestDefaultPackRules(t *testing.T) {
	cfg := Config{BasicPackCost: 50, PremiumPackCost: 150}
	rules := defaultPackRules(cfg)

	if rules.BasicCost != 50 || rules.BasicDraws != 3 {
		t.Errorf("basic pack = %d coins / %d draws, want 50 / 3", rules.BasicCost, rules.BasicDraws)
	}
	if rules.PremiumCost != 150 || rules.PremiumDraws != 5 {
		t.Errorf("premium pack = %d coins / %d draws, want 150 / 5", rules.PremiumCost, rules.PremiumDraws)
	}

	// Bounds must be ascending and end at 100.
	prev := 0.0
	for _, tier := range rules.RarityTiers {
		if tier.UpperBound <= prev {
			t.Fatalf("tier bounds not ascending at %v", tier.UpperBound)
		}
		prev = tier.UpperBound
	}
	if prev != 100 {
		t.Errorf("final tier bound = %v, want 100", prev)
	}
}
