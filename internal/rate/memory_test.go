package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_AllowsUpToMax(t *testing.T) {
	t.Parallel()
	l := NewMemoryLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "ip-1")
		if err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("hit #%d debería pasar", i)
		}
		if res.Remaining != int64(3-i) {
			t.Fatalf("remaining = %d, esperaba %d", res.Remaining, 3-i)
		}
	}

	res, err := l.Allow(ctx, "ip-1")
	if err != nil {
		t.Fatalf("Allow #4: %v", err)
	}
	if res.Allowed {
		t.Fatalf("el cuarto hit debe rebotar")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Hour {
		t.Fatalf("RetryAfter fuera de rango: %v", res.RetryAfter)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	l := NewMemoryLimiter(1, time.Hour)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "ip-a"); !res.Allowed {
		t.Fatalf("primer hit de ip-a debe pasar")
	}
	if res, _ := l.Allow(ctx, "ip-a"); res.Allowed {
		t.Fatalf("segundo hit de ip-a debe rebotar")
	}
	if res, _ := l.Allow(ctx, "ip-b"); !res.Allowed {
		t.Fatalf("ip-b tiene su propia ventana")
	}
}
