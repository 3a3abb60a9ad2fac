package main

import (
	"strings"
	"testing"
)

func TestIsValidPlayerID(t *testing.T) {
	valid := []string{"abc", "player_1", "a-b-c", "XyZ123",
		"6b1f6e2a-24c1-4c6b-9f3e-0d2b9a8c7e51", strings.Repeat("a", 64)}
	for _, id := range valid {
		if !isValidPlayerID(id) {
			t.Errorf("isValidPlayerID(%q) = false, want true", id)
		}
	}

	invalid := []string{"", "has space", "semi;colon", "quote'", strings.Repeat("a", 65), "path/../x", "café"}
	for _, id := range invalid {
		if isValidPlayerID(id) {
			t.Errorf("isValidPlayerID(%q) = true, want false", id)
		}
	}
}
