package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/medication"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// MemMedicationRepo is a thread-safe in-memory medication.Repository.  It
// stores copies, so mutating an entity after Save does not change the stored
// row until Update is called — the same isolation a SQL row gives.
type MemMedicationRepo struct {
	mu    sync.Mutex
	byID  map[common.ID]medication.Medication
	order []common.ID
}

// NewMemMedicationRepo creates an empty repository.
func NewMemMedicationRepo() *MemMedicationRepo {
	return &MemMedicationRepo{byID: make(map[common.ID]medication.Medication)}
}

func (r *MemMedicationRepo) Save(_ context.Context, m *medication.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; ok {
		return pkgerrors.New(pkgerrors.ErrCodeDatabaseError, "duplicate medication id").
			WithDetail("id=" + string(m.ID))
	}
	r.byID[m.ID] = *m
	r.order = append(r.order, m.ID)
	return nil
}

func (r *MemMedicationRepo) FindByID(_ context.Context, id common.ID) (*medication.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.ErrCodeMedicationNotFound, "medication not found").
			WithDetail("id=" + string(id))
	}
	return &m, nil
}

func (r *MemMedicationRepo) FindActiveByUser(_ context.Context, userID common.UserID) ([]*medication.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*medication.Medication, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		m := r.byID[r.order[i]]
		if m.UserID == userID && m.IsActive {
			cp := m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemMedicationRepo) FindByUserNameDosageFreq(_ context.Context, userID common.UserID, name, dosage, frequency string) (*medication.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		m := r.byID[id]
		if m.UserID == userID && m.IsActive &&
			strings.EqualFold(m.Name, name) && m.Dosage == dosage && m.Frequency == frequency {
			cp := m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemMedicationRepo) Update(_ context.Context, m *medication.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; !ok {
		return pkgerrors.New(pkgerrors.ErrCodeMedicationNotFound, "medication not found").
			WithDetail("id=" + string(m.ID))
	}
	r.byID[m.ID] = *m
	return nil
}

func (r *MemMedicationRepo) Deactivate(_ context.Context, id common.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return pkgerrors.New(pkgerrors.ErrCodeMedicationNotFound, "medication not found").
			WithDetail("id=" + string(id))
	}
	m.IsActive = false
	m.UpdatedAt = time.Now().UTC()
	r.byID[id] = m
	return nil
}

// Len reports the number of stored medications, active or not.
func (r *MemMedicationRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
