package ai

import (
	"testing"
	"time"
)

func TestTokenCounterLimits(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tc := NewTokenCounter(RateLimits{RPM: 2, TPM: 100, RPD: 3})
	tc.now = func() time.Time { return now }

	if !tc.CanConsume(50, 1) {
		t.Fatal("first request should fit")
	}
	tc.RecordUsage(50, 1)

	if tc.CanConsume(60, 1) {
		t.Fatal("token budget for the minute should be exhausted")
	}
	tc.RecordUsage(10, 1)
	if tc.CanConsume(1, 1) {
		t.Fatal("request budget for the minute should be exhausted")
	}

	now = now.Add(time.Minute)
	if !tc.CanConsume(50, 1) {
		t.Fatal("minute window should have reset")
	}
	tc.RecordUsage(50, 1)
	if tc.CanConsume(1, 1) {
		t.Fatal("daily request budget should be exhausted")
	}
	if tc.DailyTokens() != 110 {
		t.Fatalf("DailyTokens() = %d, want 110", tc.DailyTokens())
	}

	now = now.Add(24 * time.Hour)
	if !tc.CanConsume(1, 1) {
		t.Fatal("day window should have reset")
	}
}

func TestGetRateLimits(t *testing.T) {
	if got := getRateLimits("tier1"); got.RPM != 1000 {
		t.Fatalf("tier1 RPM = %d", got.RPM)
	}
	if got := getRateLimits("unknown"); got != getRateLimits("free") {
		t.Fatalf("unknown tier should fall back to free, got %+v", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 1 {
		t.Fatal("minimum estimate is one token")
	}
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Fatalf("EstimateTokens = %d, want 2", got)
	}
}
