//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

const samplePrescription = "Rx Tab. Augmentin 625mg 1-0-1 x 5 days. Tab. PanD 40mg 1-0-0 x 7 days. advise plenty of fluids."

// TestDigitizationPipeline runs prescription text through extraction,
// persistence and reminder materialization against real PostgreSQL.
func TestDigitizationPipeline(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	userID := common.UserID("itest-digitize")

	resp, err := p.rx.Digitize(ctx, userID, &medtypes.DigitizeRequest{Text: samplePrescription})
	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Medications, 2)

	// The rows are really in PostgreSQL, with the extracted fields intact.
	stored, err := p.medRepo.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	byName := map[string]string{}
	for _, m := range stored {
		byName[m.Name] = m.Frequency
	}
	assert.Equal(t, "twice daily (morning & night)", byName["Augmentin"])
	assert.Equal(t, "once daily (morning)", byName["Pand"])

	// Reminder rows follow from the frequencies: {08:00, 20:00} + {08:00}.
	reminders, err := p.remRepo.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, reminders, 3)
	assert.Equal(t, "08:00", reminders[0].ClockTime)
	assert.Equal(t, "08:00", reminders[1].ClockTime)
	assert.Equal(t, "20:00", reminders[2].ClockTime)
}

// TestDigitizationPipeline_DuplicateSkip re-digitizes the same text; the
// active-regimen unique index must hold and the response must report skips.
func TestDigitizationPipeline_DuplicateSkip(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	userID := common.UserID("itest-duplicate")

	_, err := p.rx.Digitize(ctx, userID, &medtypes.DigitizeRequest{Text: samplePrescription})
	require.NoError(t, err)

	resp, err := p.rx.Digitize(ctx, userID, &medtypes.DigitizeRequest{Text: samplePrescription})
	require.NoError(t, err)
	assert.Empty(t, resp.Medications)
	assert.NotEmpty(t, resp.Warnings)

	stored, err := p.medRepo.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

// TestDigitizationPipeline_UserIsolation checks that two users digitizing the
// same prescription never see each other's rows.
func TestDigitizationPipeline_UserIsolation(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()

	for _, uid := range []common.UserID{"itest-user-a", "itest-user-b"} {
		resp, err := p.rx.Digitize(ctx, uid, &medtypes.DigitizeRequest{Text: samplePrescription})
		require.NoError(t, err)
		assert.Len(t, resp.Medications, 2, "user %s", uid)
	}

	a, err := p.medRepo.FindActiveByUser(ctx, "itest-user-a")
	require.NoError(t, err)
	b, err := p.medRepo.FindActiveByUser(ctx, "itest-user-b")
	require.NoError(t, err)
	assert.Len(t, a, 2)
	assert.Len(t, b, 2)
	for _, m := range a {
		assert.Equal(t, common.UserID("itest-user-a"), m.UserID)
	}
}
