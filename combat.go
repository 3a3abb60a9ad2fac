package main

import (
	"fmt"
	"math"
	"math/rand"
)

// TypeChart holds attacker-element → defender-element damage multipliers.
// Unlisted pairs are neutral (1.0). Values are restricted to 0, 0.5, 1, 2.
type TypeChart map[string]map[string]float64

func (c TypeChart) Multiplier(attacker, defender string) float64 {
	if row, ok := c[attacker]; ok {
		if mult, ok := row[defender]; ok {
			return mult
		}
	}
	return 1
}

func DefaultTypeChart() TypeChart {
	return TypeChart{
		"Fire":     {"Grass": 2, "Water": 0.5, "Fire": 0.5, "Ice": 2, "Bug": 2, "Steel": 2},
		"Water":    {"Fire": 2, "Grass": 0.5, "Water": 0.5, "Ground": 2, "Rock": 2},
		"Grass":    {"Water": 2, "Fire": 0.5, "Grass": 0.5, "Ground": 2, "Rock": 2, "Flying": 0.5, "Bug": 0.5, "Poison": 0.5, "Steel": 0.5},
		"Electric": {"Water": 2, "Flying": 2, "Electric": 0.5, "Grass": 0.5, "Ground": 0, "Dragon": 0.5},
		"Psychic":  {"Fighting": 2, "Poison": 2, "Psychic": 0.5, "Dark": 0, "Steel": 0.5},
		"Ice":      {"Grass": 2, "Ground": 2, "Flying": 2, "Dragon": 2, "Fire": 0.5, "Water": 0.5, "Ice": 0.5, "Steel": 0.5},
		"Dragon":   {"Dragon": 2, "Steel": 0.5, "Fairy": 0},
		"Dark":     {"Psychic": 2, "Ghost": 2, "Fighting": 0.5, "Dark": 0.5, "Fairy": 0.5},
		"Fighting": {"Normal": 2, "Ice": 2, "Rock": 2, "Dark": 2, "Steel": 2, "Flying": 0.5, "Poison": 0.5, "Bug": 0.5, "Psychic": 0.5, "Fairy": 0.5, "Ghost": 0},
		"Poison":   {"Grass": 2, "Fairy": 2, "Poison": 0.5, "Ground": 0.5, "Rock": 0.5, "Ghost": 0.5, "Steel": 0},
		"Ground":   {"Fire": 2, "Electric": 2, "Poison": 2, "Rock": 2, "Steel": 2, "Grass": 0.5, "Bug": 0.5, "Flying": 0},
		"Flying":   {"Electric": 0.5, "Ice": 0.5, "Rock": 0.5, "Fighting": 2, "Bug": 2, "Grass": 2},
		"Bug":      {"Grass": 2, "Psychic": 2, "Dark": 2, "Fire": 0.5, "Fighting": 0.5, "Poison": 0.5, "Flying": 0.5, "Ghost": 0.5, "Steel": 0.5, "Fairy": 0.5},
		"Rock":     {"Fire": 2, "Ice": 2, "Flying": 2, "Bug": 2, "Fighting": 0.5, "Ground": 0.5, "Steel": 0.5},
		"Ghost":    {"Psychic": 2, "Ghost": 2, "Dark": 0.5, "Normal": 0},
		"Steel":    {"Ice": 2, "Rock": 2, "Fairy": 2, "Fire": 0.5, "Water": 0.5, "Electric": 0.5, "Steel": 0.5},
		"Fairy":    {"Fighting": 2, "Dragon": 2, "Dark": 2, "Fire": 0.5, "Poison": 0.5, "Steel": 0.5},
	}
}

// damageRoll computes one attack's damage:
// max(1, floor((attack − defense·0.5) · typeMultiplier · randomFactor)),
// randomFactor uniform in [0.85, 1.15).
func damageRoll(attacker, defender *Card, chart TypeChart, rng *rand.Rand) int {
	base := float64(attacker.Attack) - float64(defender.Defense)*0.5
	mult := chart.Multiplier(attacker.Element, defender.Element)
	factor := 0.85 + rng.Float64()*0.3

	dmg := int(math.Floor(base * mult * factor))
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

type BattleEvent struct {
	Actor       string  `json:"actor"` // "player" or "opponent"
	Damage      int     `json:"damage"`
	Multiplier  float64 `json:"multiplier"`
	RemainingHP int     `json:"remainingHp"`
	Text        string  `json:"text"`
}

type BattleResult struct {
	PlayerCard   *Card         `json:"playerCard"`
	OpponentCard *Card         `json:"opponentCard"`
	Events       []BattleEvent `json:"events"`
	Winner       string        `json:"winner"` // "player" or "opponent"
}

// runBattle simulates a full battle. Turns alternate starting with the
// player; the battle ends the instant either side's HP reaches 0.
func runBattle(player, opponent *Card, chart TypeChart, rng *rand.Rand) *BattleResult {
	result := &BattleResult{PlayerCard: player, OpponentCard: opponent}
	playerHP := player.HP
	opponentHP := opponent.HP

	attackerTurn := "player"
	for playerHP > 0 && opponentHP > 0 {
		var attacker, defender *Card
		if attackerTurn == "player" {
			attacker, defender = player, opponent
		} else {
			attacker, defender = opponent, player
		}

		dmg := damageRoll(attacker, defender, chart, rng)
		mult := chart.Multiplier(attacker.Element, defender.Element)

		var remaining int
		if attackerTurn == "player" {
			opponentHP -= dmg
			if opponentHP < 0 {
				opponentHP = 0
			}
			remaining = opponentHP
		} else {
			playerHP -= dmg
			if playerHP < 0 {
				playerHP = 0
			}
			remaining = playerHP
		}

		text := fmt.Sprintf("%s hit %s for %d damage", attacker.Name, defender.Name, dmg)
		if mult > 1 {
			text += " (super effective)"
		} else if mult < 1 {
			text += " (not very effective)"
		}

		result.Events = append(result.Events, BattleEvent{
			Actor:       attackerTurn,
			Damage:      dmg,
			Multiplier:  mult,
			RemainingHP: remaining,
			Text:        text,
		})

		if attackerTurn == "player" {
			attackerTurn = "opponent"
		} else {
			attackerTurn = "player"
		}
	}

	if opponentHP == 0 {
		result.Winner = "player"
	} else {
		result.Winner = "opponent"
	}
	return result
}
