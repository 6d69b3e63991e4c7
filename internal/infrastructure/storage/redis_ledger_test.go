package storage

import (
	"testing"
	"time"
)

func TestTTLUntilDayEnd(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, time.April, 2, 20, 0, 0, 0, time.UTC)
	if got := ttlUntilDayEnd(day, now); got != 5*time.Hour {
		t.Fatalf("expected 5h, got %s", got)
	}

	late := time.Date(2026, time.April, 4, 0, 0, 0, 0, time.UTC)
	if got := ttlUntilDayEnd(day, late); got != time.Hour {
		t.Fatalf("expected floor of 1h, got %s", got)
	}
}

func TestRedisLedgerKey(t *testing.T) {
	t.Parallel()

	r := &RedisLedger{prefix: "newsshorts:keyword"}
	got := r.key("in:budget", time.Date(2026, time.April, 2, 13, 0, 0, 0, time.UTC))
	if got != "newsshorts:keyword:2026-04-02:in:budget" {
		t.Fatalf("unexpected key %s", got)
	}
}
