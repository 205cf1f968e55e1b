package apikey

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/tokensmith/internal/store"
	"github.com/dropDatabas3/tokensmith/internal/store/memory"
)

var hexKeyRe = regexp.MustCompile(`^[0-9a-f]{40}$`)

func newTestManager() (*Manager, *memory.Store, *time.Time) {
	st := memory.New()
	m := New(st)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, st, &now
}

func TestRotate_GeneratesAndPersists(t *testing.T) {
	t.Parallel()
	m, st, _ := newTestManager()

	key, err := m.Rotate(context.Background(), 7, SlotPrimary)
	if err != nil {
		t.Fatalf("Rotate err: %v", err)
	}
	if !hexKeyRe.MatchString(key) {
		t.Fatalf("key no es hex de 40 chars: %q", key)
	}

	rec, ok, err := st.GetAPIKey(context.Background(), 7, string(SlotPrimary))
	if err != nil || !ok {
		t.Fatalf("GetAPIKey ok=%v err=%v", ok, err)
	}
	if rec.Key != key || !rec.Active {
		t.Fatalf("persistido key=%q active=%v, esperaba key=%q active", rec.Key, rec.Active, key)
	}
	if rec.LastUsedAt != nil {
		t.Fatalf("key nueva debe arrancar con LastUsedAt nil")
	}
}

func TestRotate_CooldownBlocksSecondAttempt(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Rotate(ctx, 1, SlotPrimary); err != nil {
		t.Fatalf("primera rotación: %v", err)
	}

	_, err := m.Rotate(ctx, 1, SlotPrimary)
	if !IsRateLimited(err) {
		t.Fatalf("esperaba RateLimitedError, got %v", err)
	}
	var rl *RateLimitedError
	errors.As(err, &rl)
	if rl.RetryAfter <= 0 || rl.RetryAfter > CooldownWindow {
		t.Fatalf("RetryAfter fuera de rango: %v", rl.RetryAfter)
	}
}

func TestRotate_CooldownIsPerSlotAndPerUser(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Rotate(ctx, 1, SlotPrimary); err != nil {
		t.Fatalf("rotate primary: %v", err)
	}
	// Otro slot del mismo usuario: sin cooldown
	if _, err := m.Rotate(ctx, 1, SlotSecondary); err != nil {
		t.Fatalf("rotate secondary no debería estar bloqueado: %v", err)
	}
	// Mismo slot, otro usuario: sin cooldown
	if _, err := m.Rotate(ctx, 2, SlotPrimary); err != nil {
		t.Fatalf("rotate de otro usuario no debería estar bloqueado: %v", err)
	}
}

func TestRotate_AllowedAfterWindowElapses(t *testing.T) {
	t.Parallel()
	m, st, now := newTestManager()
	ctx := context.Background()

	k1, err := m.Rotate(ctx, 3, SlotPrimary)
	if err != nil {
		t.Fatalf("primera rotación: %v", err)
	}

	*now = now.Add(CooldownWindow + time.Second)

	k2, err := m.Rotate(ctx, 3, SlotPrimary)
	if err != nil {
		t.Fatalf("rotación pasada la ventana: %v", err)
	}
	if k2 == k1 {
		t.Fatalf("la key rotada debe ser distinta")
	}
	rec, _, _ := st.GetAPIKey(ctx, 3, string(SlotPrimary))
	if rec.Key != k2 {
		t.Fatalf("el slot debe quedar con la key nueva")
	}
}

func TestRotate_ConcurrentSameSlotSingleWinner(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.Rotate(ctx, 9, SlotPrimary)
		}(i)
	}
	wg.Wait()

	okCount, limited := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			okCount++
		case IsRateLimited(err):
			limited++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	if okCount != 1 || limited != n-1 {
		t.Fatalf("esperaba exactamente 1 ganador, got ok=%d limited=%d", okCount, limited)
	}
}

func TestRotate_UnknownSlot(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager()
	if _, err := m.Rotate(context.Background(), 1, Slot("tertiary")); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("esperaba ErrUnknownSlot, got %v", err)
	}
}

// failingStore rechaza SetAPIKey para probar el rollback del stamp.
type failingStore struct {
	store.Store
}

func (f *failingStore) SetAPIKey(context.Context, int64, string, string, bool, time.Time) error {
	return errors.New("db down")
}

func TestRotate_PersistFailureReleasesCooldown(t *testing.T) {
	t.Parallel()
	st := memory.New()
	m := New(&failingStore{Store: st})
	ctx := context.Background()

	if _, err := m.Rotate(ctx, 5, SlotPrimary); err == nil {
		t.Fatalf("esperaba error de persistencia")
	}
	// El stamp se revirtió: el slot no queda bloqueado sin key.
	if cs := m.CheckCooldown(5, SlotPrimary); cs.OnCooldown {
		t.Fatalf("cooldown no debería quedar armado tras fallo de persistencia")
	}

	m.Store = st
	if _, err := m.Rotate(ctx, 5, SlotPrimary); err != nil {
		t.Fatalf("reintento inmediato debería pasar: %v", err)
	}
}

func TestDeactivate_ClearsFlagAndIsIdempotent(t *testing.T) {
	t.Parallel()
	m, st, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Rotate(ctx, 4, SlotSecondary); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := m.Deactivate(ctx, 4, SlotSecondary); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	rec, ok, _ := st.GetAPIKey(ctx, 4, string(SlotSecondary))
	if !ok || rec.Active {
		t.Fatalf("la key debe seguir existiendo pero inactiva: ok=%v active=%v", ok, rec.Active)
	}
	// Segunda vez: sin error.
	if err := m.Deactivate(ctx, 4, SlotSecondary); err != nil {
		t.Fatalf("deactivate idempotente: %v", err)
	}
	// Slot vacío: tampoco es error.
	if err := m.Deactivate(ctx, 99, SlotPrimary); err != nil {
		t.Fatalf("deactivate sobre slot vacío: %v", err)
	}
}

func TestDelete_RemovesSlotAndIsIdempotent(t *testing.T) {
	t.Parallel()
	m, st, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Rotate(ctx, 6, SlotPrimary); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := m.Delete(ctx, 6, SlotPrimary); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.GetAPIKey(ctx, 6, string(SlotPrimary)); ok {
		t.Fatalf("la key debería estar borrada")
	}
	if err := m.Delete(ctx, 6, SlotPrimary); err != nil {
		t.Fatalf("delete idempotente: %v", err)
	}
}

func TestFormatWait(t *testing.T) {
	t.Parallel()
	cases := []struct {
		d    time.Duration
		want string
	}{
		{4*time.Minute + 35*time.Second, "4m 35s"},
		{4*time.Minute + 34*time.Second + 200*time.Millisecond, "4m 35s"}, // redondeo hacia arriba
		{59 * time.Second, "59s"},
		{500 * time.Millisecond, "1s"},
		{0, "0s"},
		{-3 * time.Second, "0s"},
	}
	for _, c := range cases {
		if got := FormatWait(c.d); got != c.want {
			t.Errorf("FormatWait(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
