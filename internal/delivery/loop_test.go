package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLoopRejectsNonPositiveInterval(t *testing.T) {
	d := newTestDeliverer(newFakeCapsuleStore(), newFakeNotifier(), nil)

	assert.Error(t, d.RunLoop(context.Background(), 0))
	assert.Error(t, d.RunLoop(context.Background(), -time.Second))
}

func TestRunLoopRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeCapsuleStore(pendingCapsule("cap-1", "a@example.com", "hi", now.Add(-time.Hour)))
	n := newFakeNotifier()
	d := newTestDeliverer(store, n, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.RunLoop(ctx, time.Hour) }()

	// the first run happens before the first tick
	require.Eventually(t, func() bool { return n.sentCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestRunLoopSurvivesRunErrors(t *testing.T) {
	store := newFakeCapsuleStore()
	store.dueErr = assertErr{}
	d := newTestDeliverer(store, newFakeNotifier(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// loop keeps ticking through failed runs and exits cleanly on deadline
	assert.NoError(t, d.RunLoop(ctx, 10*time.Millisecond))
}

type assertErr struct{}

func (assertErr) Error() string { return "forced discovery error" }
