package featureflags

import (
	"testing"

	"plantspack/internal/models"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", 1) || !m.Enabled("c", 1) || !m.Enabled("e", 1) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", 1) || m.Enabled("d", 1) || m.Enabled("f", 1) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	if !m.Enabled("always", 1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", 1) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	if m.Enabled("canary", 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d", len(raw))
	}
	if raw["x"] != "on" || raw["y"] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	snap := m.Snapshot(123, models.TierFree)
	if len(snap) != 3 {
		t.Fatalf("expected snapshot size 3, got %d", len(snap))
	}
}

func TestEnabledForTier(t *testing.T) {
	m := NewManager("video_posts=tier:premium,long_posts=tier:medium,broken=tier:gold")

	if m.EnabledForTier("video_posts", 1, models.TierMedium) {
		t.Fatal("medium tier must not unlock a premium flag")
	}
	if !m.EnabledForTier("video_posts", 1, models.TierPremium) {
		t.Fatal("premium tier should unlock a premium flag")
	}
	if !m.EnabledForTier("long_posts", 1, models.TierPremium) {
		t.Fatal("higher tiers inherit lower tier flags")
	}
	if m.EnabledForTier("long_posts", 1, models.TierFree) {
		t.Fatal("free tier must not unlock a medium flag")
	}
	if m.Enabled("video_posts", 1) {
		t.Fatal("tier rules evaluate false without a tier")
	}
	if m.EnabledForTier("broken", 1, models.TierPremium) {
		t.Fatal("unknown tier names never enable")
	}
}
