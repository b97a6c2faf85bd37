package render

import (
	"testing"
	"time"
)

func TestBackoffPolicy_Next(t *testing.T) {
	policy := BackoffPolicy{Attempts: 3, Cooldown: 60 * time.Second}

	tests := []struct {
		name    string
		attempt int
		wait    time.Duration
		giveUp  bool
	}{
		{"first attempt retries", 1, 60 * time.Second, false},
		{"second attempt retries", 2, 60 * time.Second, false},
		{"third attempt exhausts budget", 3, 0, true},
		{"past budget still gives up", 4, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Next(tt.attempt)
			if got.GiveUp != tt.giveUp {
				t.Errorf("attempt %d: expected giveUp=%v, got %v", tt.attempt, tt.giveUp, got.GiveUp)
			}
			if got.Wait != tt.wait {
				t.Errorf("attempt %d: expected wait %s, got %s", tt.attempt, tt.wait, got.Wait)
			}
		})
	}
}

func TestBackoffPolicy_CooldownIsConstant(t *testing.T) {
	policy := BackoffPolicy{Attempts: 5, Cooldown: 30 * time.Second}

	for attempt := 1; attempt < 5; attempt++ {
		d := policy.Next(attempt)
		if d.GiveUp {
			t.Fatalf("attempt %d: unexpected give-up", attempt)
		}
		if d.Wait != 30*time.Second {
			t.Errorf("attempt %d: cool-down drifted to %s", attempt, d.Wait)
		}
	}
}
