package schedule

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

func activeReminder(userID common.UserID, medID common.ID) schedtypes.ActiveReminder {
	return schedtypes.ActiveReminder{
		ReminderID:     common.NewID(),
		MedicationID:   medID,
		UserID:         userID,
		MedicationName: "Augmentin",
		Dosage:         "625 mg",
		Time:           "08:00",
	}
}

func TestMemoryStore_AddAndList(t *testing.T) {
	store := NewMemoryActiveReminderStore(100)
	ctx := context.Background()
	medID := common.NewID()

	first := activeReminder("user-1", medID)
	second := activeReminder("user-1", medID)
	require.NoError(t, store.Add(ctx, first))
	require.NoError(t, store.Add(ctx, second))

	got, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ReminderID, got[0].ReminderID, "oldest first")
	assert.Equal(t, second.ReminderID, got[1].ReminderID)
}

func TestMemoryStore_ListUnknownUserIsEmpty(t *testing.T) {
	store := NewMemoryActiveReminderStore(100)

	got, err := store.ListByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestMemoryStore_PerUserEvictionDropsOldest(t *testing.T) {
	store := NewMemoryActiveReminderStore(1000)
	ctx := context.Background()
	medID := common.NewID()

	var first common.ID
	for i := 0; i < perUserPendingCap+1; i++ {
		ar := activeReminder("user-1", medID)
		if i == 0 {
			first = ar.ReminderID
		}
		require.NoError(t, store.Add(ctx, ar))
	}

	got, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, got, perUserPendingCap)
	for _, ar := range got {
		assert.NotEqual(t, first, ar.ReminderID, "oldest entry must be evicted")
	}
}

func TestMemoryStore_CapacityFull(t *testing.T) {
	store := NewMemoryActiveReminderStore(2)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, activeReminder("user-1", common.NewID())))
	require.NoError(t, store.Add(ctx, activeReminder("user-2", common.NewID())))

	err := store.Add(ctx, activeReminder("user-3", common.NewID()))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeReminderStoreFull))
}

func TestMemoryStore_ClearMedication(t *testing.T) {
	store := NewMemoryActiveReminderStore(100)
	ctx := context.Background()
	keepMed := common.NewID()
	clearMed := common.NewID()

	require.NoError(t, store.Add(ctx, activeReminder("user-1", keepMed)))
	require.NoError(t, store.Add(ctx, activeReminder("user-1", clearMed)))
	require.NoError(t, store.Add(ctx, activeReminder("user-1", clearMed)))

	require.NoError(t, store.ClearMedication(ctx, "user-1", clearMed))

	got, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keepMed, got[0].MedicationID)
}

func TestMemoryStore_ClearMedicationFreesCapacity(t *testing.T) {
	store := NewMemoryActiveReminderStore(2)
	ctx := context.Background()
	medID := common.NewID()

	require.NoError(t, store.Add(ctx, activeReminder("user-1", medID)))
	require.NoError(t, store.Add(ctx, activeReminder("user-1", medID)))
	require.Error(t, store.Add(ctx, activeReminder("user-2", common.NewID())))

	require.NoError(t, store.ClearMedication(ctx, "user-1", medID))
	assert.NoError(t, store.Add(ctx, activeReminder("user-2", common.NewID())))
}

func TestMemoryStore_SentDedupe(t *testing.T) {
	store := NewMemoryActiveReminderStore(100)
	ctx := context.Background()
	reminderID := common.NewID()

	sent, err := store.WasSent(ctx, reminderID, "2026-03-10")
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, store.MarkSent(ctx, reminderID, "2026-03-10"))

	sent, err = store.WasSent(ctx, reminderID, "2026-03-10")
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = store.WasSent(ctx, reminderID, "2026-03-11")
	require.NoError(t, err)
	assert.False(t, sent, "a new date starts a fresh dedupe window")
}

func TestMemoryStore_SentResetOnDateRoll(t *testing.T) {
	store := NewMemoryActiveReminderStore(100)
	ctx := context.Background()
	reminderID := common.NewID()

	require.NoError(t, store.MarkSent(ctx, reminderID, "2026-03-10"))
	require.NoError(t, store.MarkSent(ctx, common.NewID(), "2026-03-11"))

	sent, err := store.WasSent(ctx, reminderID, "2026-03-10")
	require.NoError(t, err)
	assert.False(t, sent, "previous day's keys are discarded on roll")
}

func TestMemoryStore_DefaultCapacity(t *testing.T) {
	store := NewMemoryActiveReminderStore(0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		userID := common.UserID(fmt.Sprintf("user-%d", i))
		assert.NoError(t, store.Add(ctx, activeReminder(userID, common.NewID())))
	}
}
