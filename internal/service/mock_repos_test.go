package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
	pkgerrors "smartflow/backend/pkg/errors"
)

// mockStore is an in-memory database shared by the mock repositories.
// It enforces the same unique constraints as the migrations.
type mockStore struct {
	mu           sync.Mutex
	users        map[string]*model.User
	specialties  map[string]*model.Specialty
	appointments map[string]*model.Appointment
	entries      map[string]*model.QueueEntry

	// forcedNumberConflicts makes the next N queue inserts fail as if
	// another process had claimed the number first.
	forcedNumberConflicts int
	queueCreates          int
}

func newMockStore() *mockStore {
	return &mockStore{
		users:        make(map[string]*model.User),
		specialties:  make(map[string]*model.Specialty),
		appointments: make(map[string]*model.Appointment),
		entries:      make(map[string]*model.QueueEntry),
	}
}

// repository assembles the aggregate without a db; WithTransaction runs inline.
func (s *mockStore) repository() *repository.Repository {
	return &repository.Repository{
		User:        &mockUserRepo{s},
		Specialty:   &mockSpecialtyRepo{s},
		Appointment: &mockAppointmentRepo{s},
		Queue:       &mockQueueRepo{s},
	}
}

func (s *mockStore) addUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = u
}

func (s *mockStore) addSpecialty(sp *model.Specialty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specialties[sp.SpecialtyID] = sp
}

// hydrate attaches associations the way the gorm preloads do. Caller holds mu.
func (s *mockStore) hydrateAppointment(a model.Appointment) model.Appointment {
	a.Patient = s.users[a.PatientID]
	a.Doctor = s.users[a.DoctorID]
	a.Specialty = s.specialties[a.SpecialtyID]
	return a
}

func (s *mockStore) hydrateEntry(e model.QueueEntry) model.QueueEntry {
	e.Patient = s.users[e.PatientID]
	e.Doctor = s.users[e.DoctorID]
	e.Specialty = s.specialties[e.SpecialtyID]
	return e
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *mockStore }

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListDoctors(_ context.Context, filter repository.DoctorFilter) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var result []model.User
	for _, u := range m.s.users {
		if !u.IsDoctor() {
			continue
		}
		if filter.DoctorID != "" && u.UserID != filter.DoctorID {
			continue
		}
		if filter.SpecialtyID != "" && !u.OffersSpecialty(filter.SpecialtyID) {
			continue
		}
		if filter.Weekday != nil && !worksOn(u, *filter.Weekday) {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

func worksOn(u *model.User, wd time.Weekday) bool {
	for _, a := range u.Availability {
		if a.Weekday == wd {
			return true
		}
	}
	return false
}

// ── Mock SpecialtyRepository ──

type mockSpecialtyRepo struct{ s *mockStore }

func (m *mockSpecialtyRepo) GetByID(_ context.Context, id string) (*model.Specialty, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sp, ok := m.s.specialties[id]; ok {
		cp := *sp
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSpecialtyRepo) List(_ context.Context, includeInactive bool) ([]model.Specialty, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Specialty
	for _, sp := range m.s.specialties {
		if !includeInactive && !sp.Active {
			continue
		}
		result = append(result, *sp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ── Mock AppointmentRepository ──

type mockAppointmentRepo struct{ s *mockStore }

func (m *mockAppointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	// uq_citas_medico_slot_activa
	if model.IsActiveAppointmentStatus(a.Status) {
		for _, other := range m.s.appointments {
			if other.DoctorID == a.DoctorID && other.Date == a.Date && other.Time == a.Time &&
				model.IsActiveAppointmentStatus(other.Status) {
				return repository.ErrSlotTaken
			}
		}
	}

	if a.AppointmentID == "" {
		a.AppointmentID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	cp.Patient, cp.Doctor, cp.Specialty = nil, nil, nil
	m.s.appointments[a.AppointmentID] = &cp
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id string) (*model.Appointment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.appointments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := m.s.hydrateAppointment(*a)
	return &cp, nil
}

func (m *mockAppointmentRepo) ExistsActive(_ context.Context, doctorID string, date model.Date, clock string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, a := range m.s.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Time == clock && model.IsActiveAppointmentStatus(a.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAppointmentRepo) ListBookedTimes(_ context.Context, doctorID string, date model.Date) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var times []string
	for _, a := range m.s.appointments {
		if a.DoctorID == doctorID && a.Date == date && model.IsActiveAppointmentStatus(a.Status) {
			times = append(times, a.Time)
		}
	}
	sort.Strings(times)
	return times, nil
}

func (m *mockAppointmentRepo) ListByDate(_ context.Context, date model.Date, filter repository.AppointmentFilter) ([]model.Appointment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Appointment
	for _, a := range m.s.appointments {
		if a.Date != date {
			continue
		}
		if filter.SpecialtyID != "" && a.SpecialtyID != filter.SpecialtyID {
			continue
		}
		if filter.DoctorID != "" && a.DoctorID != filter.DoctorID {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, a.Status) {
			continue
		}
		result = append(result, m.s.hydrateAppointment(*a))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Time != result[j].Time {
			return result[i].Time < result[j].Time
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID string, filter repository.PatientAppointmentFilter) ([]model.Appointment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Appointment
	for _, a := range m.s.appointments {
		if a.PatientID != patientID {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, a.Status) {
			continue
		}
		if filter.FromDate != "" && a.Date.Before(filter.FromDate) {
			continue
		}
		if filter.BeforeDate != "" && !a.Date.Before(filter.BeforeDate) {
			continue
		}
		result = append(result, m.s.hydrateAppointment(*a))
	}
	sort.Slice(result, func(i, j int) bool {
		ki := string(result[i].Date) + result[i].Time
		kj := string(result[j].Date) + result[j].Time
		if filter.Descending {
			return ki > kj
		}
		return ki < kj
	})
	return result, nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, a *model.Appointment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.appointments[a.AppointmentID]
	if !ok || stored.Version != a.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = a.Status
	stored.Paid = a.Paid
	stored.UpdatedBy = a.UpdatedBy
	stored.UpdatedAt = time.Now()
	stored.Version++
	a.Version = stored.Version
	return nil
}

// ── Mock QueueRepository ──

type mockQueueRepo struct{ s *mockStore }

func (m *mockQueueRepo) Create(_ context.Context, e *model.QueueEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.queueCreates++

	if m.s.forcedNumberConflicts > 0 {
		m.s.forcedNumberConflicts--
		return repository.ErrTurnNumberTaken
	}
	for _, other := range m.s.entries {
		if other.SpecialtyID != e.SpecialtyID || other.Date != e.Date {
			continue
		}
		// uq_turnos_especialidad_numero
		if other.Number == e.Number {
			return repository.ErrTurnNumberTaken
		}
		// uq_turnos_paciente_activo
		if other.PatientID == e.PatientID && model.IsActiveQueueStatus(other.Status) {
			return repository.ErrActiveEntryExists
		}
	}

	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	cp := *e
	cp.Patient, cp.Doctor, cp.Specialty = nil, nil, nil
	m.s.entries[e.EntryID] = &cp
	return nil
}

func (m *mockQueueRepo) GetByID(_ context.Context, id string) (*model.QueueEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.entries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := m.s.hydrateEntry(*e)
	return &cp, nil
}

func (m *mockQueueRepo) MaxNumber(_ context.Context, specialtyID string, date model.Date) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	highest := 0
	for _, e := range m.s.entries {
		if e.SpecialtyID == specialtyID && e.Date == date && e.Number > highest {
			highest = e.Number
		}
	}
	return highest, nil
}

func (m *mockQueueRepo) CountWaiting(ctx context.Context, specialtyID string, date model.Date) (int64, error) {
	return m.countWaiting(specialtyID, date, 0), nil
}

func (m *mockQueueRepo) CountWaitingAhead(_ context.Context, specialtyID string, date model.Date, number int) (int64, error) {
	return m.countWaiting(specialtyID, date, number), nil
}

// countWaiting counts waiting entries, only those numbered below before when before > 0.
func (m *mockQueueRepo) countWaiting(specialtyID string, date model.Date, before int) int64 {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, e := range m.s.entries {
		if e.SpecialtyID != specialtyID || e.Date != date || !model.IsWaitingQueueStatus(e.Status) {
			continue
		}
		if before > 0 && e.Number >= before {
			continue
		}
		n++
	}
	return n
}

func (m *mockQueueRepo) CountWaitingByDoctor(_ context.Context, date model.Date, doctorIDs []string) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	counts := make(map[string]int64)
	for _, e := range m.s.entries {
		if e.Date == date && model.IsWaitingQueueStatus(e.Status) && contains(doctorIDs, e.DoctorID) {
			counts[e.DoctorID]++
		}
	}
	return counts, nil
}

func (m *mockQueueRepo) FindActiveForPatient(_ context.Context, patientID, specialtyID string, date model.Date) (*model.QueueEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.entries {
		if e.PatientID == patientID && e.SpecialtyID == specialtyID && e.Date == date && model.IsActiveQueueStatus(e.Status) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockQueueRepo) FindCurrentForPatient(_ context.Context, patientID string, date model.Date, specialtyID string) (*model.QueueEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var found *model.QueueEntry
	for _, e := range m.s.entries {
		if e.PatientID != patientID || e.Date != date || !model.IsActiveQueueStatus(e.Status) {
			continue
		}
		if specialtyID != "" && e.SpecialtyID != specialtyID {
			continue
		}
		if found == nil || e.ArrivedAt.After(found.ArrivedAt) {
			found = e
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := m.s.hydrateEntry(*found)
	return &cp, nil
}

func (m *mockQueueRepo) ListByDate(_ context.Context, date model.Date, specialtyID string) ([]model.QueueEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.QueueEntry
	for _, e := range m.s.entries {
		if e.Date != date || (specialtyID != "" && e.SpecialtyID != specialtyID) {
			continue
		}
		result = append(result, m.s.hydrateEntry(*e))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SpecialtyID != result[j].SpecialtyID {
			return result[i].SpecialtyID < result[j].SpecialtyID
		}
		return result[i].Number < result[j].Number
	})
	return result, nil
}

func (m *mockQueueRepo) UpdateStatus(_ context.Context, e *model.QueueEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.entries[e.EntryID]
	if !ok || stored.Version != e.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = e.Status
	stored.CalledAt = e.CalledAt
	stored.ServedAt = e.ServedAt
	stored.CompletedAt = e.CompletedAt
	stored.UpdatedBy = e.UpdatedBy
	stored.UpdatedAt = time.Now()
	stored.Version++
	e.Version = stored.Version
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
