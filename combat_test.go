package main

import (
	"math/rand"
	"testing"
)

func TestTypeChartMultiplier(t *testing.T) {
	chart := DefaultTypeChart()

	cases := []struct {
		attacker, defender string
		want               float64
	}{
		{"Fire", "Grass", 2},
		{"Fire", "Water", 0.5},
		{"Electric", "Ground", 0},
		{"Water", "Fire", 2},
		{"Normal", "Normal", 1},
		{"Fire", "Psychic", 1},
		{"Unknown", "Fire", 1},
	}
	for _, tc := range cases {
		if got := chart.Multiplier(tc.attacker, tc.defender); got != tc.want {
			t.Errorf("Multiplier(%s, %s) = %v, want %v", tc.attacker, tc.defender, got, tc.want)
		}
	}
}

func TestDamageRollMinimumOne(t *testing.T) {
	chart := DefaultTypeChart()
	rng := rand.New(rand.NewSource(1))

	weak := &Card{Name: "Weakling", Element: "Normal", Attack: 1}
	tank := &Card{Name: "Tank", Element: "Normal", Defense: 200}

	for i := 0; i < 100; i++ {
		if dmg := damageRoll(weak, tank, chart, rng); dmg < 1 {
			t.Fatalf("damage %d below floor", dmg)
		}
	}
}

func TestDamageRollRange(t *testing.T) {
	chart := DefaultTypeChart()
	rng := rand.New(rand.NewSource(42))

	attacker := &Card{Name: "A", Element: "Fire", Attack: 50}
	defender := &Card{Name: "D", Element: "Grass", Defense: 20}

	// base = 50 - 10 = 40, mult = 2: damage in [floor(80*0.85), floor(80*1.15)).
	for i := 0; i < 1000; i++ {
		dmg := damageRoll(attacker, defender, chart, rng)
		if dmg < 68 || dmg > 92 {
			t.Fatalf("damage %d outside expected range [68, 92]", dmg)
		}
	}
}

func TestRunBattleTerminatesWithWinner(t *testing.T) {
	chart := DefaultTypeChart()
	rng := rand.New(rand.NewSource(7))

	player := &Card{ID: 1, Name: "Cindercub", Element: "Fire", HP: 60, Attack: 30, Defense: 10}
	opponent := &Card{ID: 2, Name: "Lumindra", Element: "Grass", HP: 55, Attack: 25, Defense: 12}

	result := runBattle(player, opponent, chart, rng)
	if result.Winner != "player" && result.Winner != "opponent" {
		t.Fatalf("winner = %q", result.Winner)
	}
	if len(result.Events) == 0 {
		t.Fatal("no battle events recorded")
	}

	// First turn is always the player's.
	if result.Events[0].Actor != "player" {
		t.Errorf("first actor = %q, want player", result.Events[0].Actor)
	}

	// The last event must drop the loser to exactly 0.
	last := result.Events[len(result.Events)-1]
	if last.RemainingHP != 0 {
		t.Errorf("final remaining HP = %d, want 0", last.RemainingHP)
	}
	if last.Actor == "player" && result.Winner != "player" {
		t.Errorf("player dealt the final blow but winner = %q", result.Winner)
	}
}

func TestRunBattleAlternatesTurns(t *testing.T) {
	chart := DefaultTypeChart()
	rng := rand.New(rand.NewSource(3))

	player := &Card{Name: "A", Element: "Normal", HP: 100, Attack: 10, Defense: 5}
	opponent := &Card{Name: "B", Element: "Normal", HP: 100, Attack: 10, Defense: 5}

	result := runBattle(player, opponent, chart, rng)
	for i, ev := range result.Events {
		want := "player"
		if i%2 == 1 {
			want = "opponent"
		}
		if ev.Actor != want {
			t.Fatalf("event %d actor = %q, want %q", i, ev.Actor, want)
		}
	}
}
