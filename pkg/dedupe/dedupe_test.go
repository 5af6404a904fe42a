package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FirstSeen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.FirstSeen(ctx, "org-1", Key("wf-1", "evt-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.FirstSeen(ctx, "org-1", Key("wf-1", "evt-1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, second, "redelivery of the same event must be suppressed")
}

func TestMemoryStore_KeysAreTenantScoped(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.FirstSeen(ctx, "org-1", Key("wf-1", "evt-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	otherTenant, err := store.FirstSeen(ctx, "org-2", Key("wf-1", "evt-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, otherTenant, "the same key in another organization is unrelated")
}

func TestMemoryStore_ExpiryReopensKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	first, err := store.FirstSeen(ctx, "org-1", Key("wf-1", "evt-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	current = current.Add(2 * time.Minute)

	again, err := store.FirstSeen(ctx, "org-1", Key("wf-1", "evt-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, again, "an expired key is first-seen again")
}
