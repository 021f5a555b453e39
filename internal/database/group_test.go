package database

import (
	"testing"
	"time"
)

func TestGroup_LevelLabel(t *testing.T) {
	tests := []struct {
		level    int
		expected string
	}{
		{0, "sample"},
		{10, "debug"},
		{20, "info"},
		{30, "warning"},
		{40, "error"},
		{50, "fatal"},
		{25, "unknown"},
		{-1, "unknown"},
	}

	for _, tt := range tests {
		g := Group{Level: tt.level}
		if got := g.LevelLabel(); got != tt.expected {
			t.Errorf("LevelLabel(%d) = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestGroup_QualifiedShortID(t *testing.T) {
	g := Group{
		ShortID: 159, // 4F in base 36
		Project: Project{Slug: "backend"},
	}
	if got := g.QualifiedShortID(); got != "BACKEND-4F" {
		t.Errorf("QualifiedShortID() = %q, want BACKEND-4F", got)
	}

	g = Group{ShortID: 1, Project: Project{Slug: "web"}}
	if got := g.QualifiedShortID(); got != "WEB-1" {
		t.Errorf("QualifiedShortID() = %q, want WEB-1", got)
	}
}

func TestGroup_ActiveDate(t *testing.T) {
	firstSeen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	activeAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	g := Group{FirstSeen: firstSeen}
	if !g.ActiveDate().Equal(firstSeen) {
		t.Errorf("ActiveDate() = %v, want first_seen %v", g.ActiveDate(), firstSeen)
	}

	g.ActiveAt = &activeAt
	if !g.ActiveDate().Equal(activeAt) {
		t.Errorf("ActiveDate() = %v, want active_at %v", g.ActiveDate(), activeAt)
	}
}

func TestGroup_IsOverResolveAge(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	g := Group{
		LastSeen: now.Add(-48 * time.Hour),
		Project:  Project{ResolveAge: 24},
	}
	if !g.IsOverResolveAge(now) {
		t.Error("group last seen 48h ago with 24h resolve age should be over")
	}

	g.LastSeen = now.Add(-time.Hour)
	if g.IsOverResolveAge(now) {
		t.Error("group last seen 1h ago with 24h resolve age should not be over")
	}

	// Zero resolve age disables the policy entirely.
	g = Group{
		LastSeen: now.Add(-10000 * time.Hour),
		Project:  Project{ResolveAge: 0},
	}
	if g.IsOverResolveAge(now) {
		t.Error("resolve age 0 should never auto-resolve")
	}
}
