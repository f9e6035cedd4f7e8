package schedule

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// MockReminderRepository mocks the Repository interface.
type MockReminderRepository struct {
	mock.Mock
}

func (m *MockReminderRepository) Save(ctx context.Context, r *Reminder) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReminderRepository) SaveBatch(ctx context.Context, reminders []*Reminder) error {
	args := m.Called(ctx, reminders)
	return args.Error(0)
}

func (m *MockReminderRepository) FindByID(ctx context.Context, id common.ID) (*Reminder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Reminder), args.Error(1)
}

func (m *MockReminderRepository) FindActiveByUser(ctx context.Context, userID common.UserID) ([]*Reminder, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Reminder), args.Error(1)
}

func (m *MockReminderRepository) FindActiveByMedication(ctx context.Context, medicationID common.ID) ([]*Reminder, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Reminder), args.Error(1)
}

func (m *MockReminderRepository) FindAllActive(ctx context.Context) ([]*Reminder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Reminder), args.Error(1)
}

func (m *MockReminderRepository) UpdateLastTaken(ctx context.Context, id common.ID, takenAt time.Time) error {
	args := m.Called(ctx, id, takenAt)
	return args.Error(0)
}

func (m *MockReminderRepository) DeactivateByMedication(ctx context.Context, medicationID common.ID) error {
	args := m.Called(ctx, medicationID)
	return args.Error(0)
}

func newTestScheduleService(repo Repository) *Service {
	return NewService(repo, logging.NewNopLogger())
}

func TestNewService(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := NewService(repo, nil)
	require.NotNil(t, svc)
	assert.NotNil(t, svc.logger)
}

func TestMaterializeReminders_TwiceDaily(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)
	userID := common.UserID("user-1")
	medID := common.NewID()

	repo.On("SaveBatch", mock.Anything, mock.MatchedBy(func(reminders []*Reminder) bool {
		return len(reminders) == 2 &&
			reminders[0].ClockTime == "08:00" &&
			reminders[1].ClockTime == "20:00"
	})).Return(nil)

	got, err := svc.MaterializeReminders(context.Background(), userID, medID, "twice daily (morning & night)")

	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, userID, r.UserID)
		assert.Equal(t, medID, r.MedicationID)
		assert.True(t, r.IsActive)
	}
	repo.AssertExpectations(t)
}

func TestMaterializeReminders_AsNeededSchedulesNothing(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)

	got, err := svc.MaterializeReminders(context.Background(), "user-1", common.NewID(), "as needed")

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	repo.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
}

func TestMaterializeReminders_UnknownFrequencyDefaults(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)

	repo.On("SaveBatch", mock.Anything, mock.MatchedBy(func(reminders []*Reminder) bool {
		return len(reminders) == 1 && reminders[0].ClockTime == "09:00"
	})).Return(nil)

	got, err := svc.MaterializeReminders(context.Background(), "user-1", common.NewID(), "whenever convenient")

	require.NoError(t, err)
	require.Len(t, got, 1)
	repo.AssertExpectations(t)
}

func TestMaterializeReminders_InvalidMedicationID(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)

	_, err := svc.MaterializeReminders(context.Background(), "user-1", common.ID("bad"), "once daily")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
	repo.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
}

func TestMaterializeReminders_SaveBatchError(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)

	repo.On("SaveBatch", mock.Anything, mock.Anything).Return(stderrors.New("insert failed"))

	_, err := svc.MaterializeReminders(context.Background(), "user-1", common.NewID(), "once daily")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestListUserReminders_Success(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)
	userID := common.UserID("user-1")

	r1, err := NewReminder(userID, common.NewID(), "08:00")
	require.NoError(t, err)
	r2, err := NewReminder(userID, common.NewID(), "20:00")
	require.NoError(t, err)
	repo.On("FindActiveByUser", mock.Anything, userID).Return([]*Reminder{r1, r2}, nil)

	got, err := svc.ListUserReminders(context.Background(), userID)

	require.NoError(t, err)
	assert.Len(t, got, 2)
	repo.AssertExpectations(t)
}

func TestListUserReminders_EmptyUserID(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)

	_, err := svc.ListUserReminders(context.Background(), "")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
	repo.AssertNotCalled(t, "FindActiveByUser", mock.Anything, mock.Anything)
}

func TestListUserReminders_RepoError(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)

	repo.On("FindActiveByUser", mock.Anything, common.UserID("user-1")).
		Return(nil, stderrors.New("connection reset"))

	_, err := svc.ListUserReminders(context.Background(), "user-1")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestDeactivateForMedication_Success(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)
	medID := common.NewID()

	repo.On("DeactivateByMedication", mock.Anything, medID).Return(nil)

	err := svc.DeactivateForMedication(context.Background(), medID)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestDeactivateForMedication_InvalidID(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)

	err := svc.DeactivateForMedication(context.Background(), common.ID("nope"))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
	repo.AssertNotCalled(t, "DeactivateByMedication", mock.Anything, mock.Anything)
}

func TestDeactivateForMedication_RepoError(t *testing.T) {
	repo := new(MockReminderRepository)
	svc := newTestScheduleService(repo)
	medID := common.NewID()

	repo.On("DeactivateByMedication", mock.Anything, medID).Return(stderrors.New("timeout"))

	err := svc.DeactivateForMedication(context.Background(), medID)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}
