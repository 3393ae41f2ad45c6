//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
	"smartflow/backend/pkg/database"
	pkgerrors "smartflow/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=smartflow password=smartflow_password dbname=smartflow_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot connect to test database: %v\n", err)
		os.Exit(1)
	}

	// the partial unique indexes only exist in the SQL migrations
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot get sql.DB: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "migrations failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

type fixture struct {
	patient   *model.User
	doctor    *model.User
	specialty *model.Specialty
	date      model.Date
}

// setupFixture creates a patient, a doctor and a specialty, and returns a
// cleanup function removing everything they touched.
func setupFixture(t *testing.T) (*fixture, func()) {
	t.Helper()
	ctx := context.Background()
	suffix := time.Now().UnixNano()

	spec := &model.Specialty{
		Name: fmt.Sprintf("Especialidad-%d", suffix),
		Code: "Z",
	}
	if err := testDB.WithContext(ctx).Create(spec).Error; err != nil {
		t.Fatalf("create specialty: %v", err)
	}

	patient := &model.User{
		FirstName: "Ana",
		LastName:  "Prueba",
		Email:     fmt.Sprintf("paciente%d@test.mx", suffix),
		Role:      model.RolePatient,
		Active:    true,
	}
	doctor := &model.User{
		FirstName: "Luis",
		LastName:  "Medina",
		Email:     fmt.Sprintf("medico%d@test.mx", suffix),
		Role:      model.RoleDoctor,
		Active:    true,
	}
	for _, u := range []*model.User{patient, doctor} {
		if err := testDB.WithContext(ctx).Omit("Specialties", "Availability").Create(u).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	if err := testDB.Exec("INSERT INTO medico_especialidades (medico_id, especialidad_id) VALUES (?, ?)",
		doctor.UserID, spec.SpecialtyID).Error; err != nil {
		t.Fatalf("link doctor to specialty: %v", err)
	}
	window := &model.DoctorAvailability{
		DoctorID:  doctor.UserID,
		Weekday:   time.Monday,
		StartTime: "09:00",
		EndTime:   "12:00",
	}
	if err := testDB.WithContext(ctx).Create(window).Error; err != nil {
		t.Fatalf("create availability: %v", err)
	}

	f := &fixture{
		patient:   patient,
		doctor:    doctor,
		specialty: spec,
		// a Monday far enough ahead to never be "today"
		date: model.Date("2031-03-03"),
	}
	cleanup := func() {
		testDB.Where("especialidad_id = ?", spec.SpecialtyID).Delete(&model.QueueEntry{})
		testDB.Where("especialidad_id = ?", spec.SpecialtyID).Delete(&model.Appointment{})
		testDB.Where("medico_id = ?", doctor.UserID).Delete(&model.DoctorAvailability{})
		testDB.Exec("DELETE FROM medico_especialidades WHERE medico_id = ?", doctor.UserID)
		testDB.Where("usuario_id IN ?", []string{patient.UserID, doctor.UserID}).Delete(&model.User{})
		testDB.Where("especialidad_id = ?", spec.SpecialtyID).Delete(&model.Specialty{})
	}
	return f, cleanup
}

func (f *fixture) appointment(clock string) *model.Appointment {
	return &model.Appointment{
		PatientID:   f.patient.UserID,
		DoctorID:    f.doctor.UserID,
		SpecialtyID: f.specialty.SpecialtyID,
		Date:        f.date,
		Time:        clock,
		Status:      model.AppointmentPending,
		Reason:      "Revisión",
		PaymentMode: model.PaymentCash,
		Amount:      500,
	}
}

func (f *fixture) entry(number int) *model.QueueEntry {
	return &model.QueueEntry{
		PatientID:       f.patient.UserID,
		DoctorID:        f.doctor.UserID,
		SpecialtyID:     f.specialty.SpecialtyID,
		Date:            f.date,
		Number:          number,
		Label:           fmt.Sprintf("Z-%02d", number),
		InitialPosition: 1,
		Reason:          model.DefaultQueueReason,
		Status:          model.QueueWaiting,
		ArrivedAt:       time.Now(),
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Doctor lookups
// ═══════════════════════════════════════════════════════════

func TestUser_GetByIDPreloadsProfile(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	got, err := repo.User.GetByID(context.Background(), f.doctor.UserID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.OffersSpecialty(f.specialty.SpecialtyID) {
		t.Error("expected specialty preloaded")
	}
	if len(got.Availability) != 1 || got.Availability[0].StartTime != "09:00" {
		t.Errorf("unexpected availability %+v", got.Availability)
	}
}

func TestUser_ListDoctorsFilters(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	monday, tuesday := time.Monday, time.Tuesday
	list, err := repo.User.ListDoctors(ctx, repository.DoctorFilter{SpecialtyID: f.specialty.SpecialtyID, Weekday: &monday})
	if err != nil {
		t.Fatalf("ListDoctors failed: %v", err)
	}
	if len(list) != 1 || list[0].UserID != f.doctor.UserID {
		t.Fatalf("expected the fixture doctor, got %d doctors", len(list))
	}

	list, _ = repo.User.ListDoctors(ctx, repository.DoctorFilter{SpecialtyID: f.specialty.SpecialtyID, Weekday: &tuesday})
	if len(list) != 0 {
		t.Errorf("doctor does not work on Tuesday, got %d", len(list))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Appointment slot uniqueness
// ═══════════════════════════════════════════════════════════

func TestAppointment_ActiveSlotUnique(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	first := f.appointment("09:00")
	if err := repo.Appointment.Create(ctx, first); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	err := repo.Appointment.Create(ctx, f.appointment("09:00"))
	if !errors.Is(err, repository.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// cancelling frees the slot
	first.Status = model.AppointmentCancelled
	if err := repo.Appointment.UpdateStatus(ctx, first); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := repo.Appointment.Create(ctx, f.appointment("09:00")); err != nil {
		t.Fatalf("rebooking a cancelled slot should succeed: %v", err)
	}

	booked, err := repo.Appointment.ListBookedTimes(ctx, f.doctor.UserID, f.date)
	if err != nil {
		t.Fatalf("ListBookedTimes failed: %v", err)
	}
	if len(booked) != 1 || booked[0] != "09:00" {
		t.Errorf("expected [09:00], got %v", booked)
	}
}

func TestAppointment_ConcurrentBookingSingleWinner(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Appointment.Create(ctx, f.appointment("10:30"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repository.ErrSlotTaken):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != n-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", n-1, successes, conflicts)
	}
}

func TestAppointment_OptimisticLock(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	a := f.appointment("11:00")
	if err := repo.Appointment.Create(ctx, a); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	copy1, _ := repo.Appointment.GetByID(ctx, a.AppointmentID)
	copy2, _ := repo.Appointment.GetByID(ctx, a.AppointmentID)

	copy1.Status = model.AppointmentConfirmed
	if err := repo.Appointment.UpdateStatus(ctx, copy1); err != nil {
		t.Fatalf("first update should succeed: %v", err)
	}
	if copy1.Version != 2 {
		t.Errorf("expected version 2, got %d", copy1.Version)
	}

	copy2.Status = model.AppointmentCancelled
	if err := repo.Appointment.UpdateStatus(ctx, copy2); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Queue numbering
// ═══════════════════════════════════════════════════════════

func TestQueue_NumberUniqueAndCounts(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	highest, err := repo.Queue.MaxNumber(ctx, f.specialty.SpecialtyID, f.date)
	if err != nil || highest != 0 {
		t.Fatalf("expected 0 on an empty day, got %d (%v)", highest, err)
	}

	if err := repo.Queue.Create(ctx, f.entry(1)); err != nil {
		t.Fatalf("create entry failed: %v", err)
	}

	dup := f.entry(1)
	dup.PatientID = f.doctor.UserID // any other user, only the number collides
	if err := repo.Queue.Create(ctx, dup); !errors.Is(err, repository.ErrTurnNumberTaken) {
		t.Errorf("expected ErrTurnNumberTaken, got %v", err)
	}

	if err := repo.Queue.Create(ctx, f.entry(2)); !errors.Is(err, repository.ErrActiveEntryExists) {
		t.Errorf("expected ErrActiveEntryExists, got %v", err)
	}

	highest, _ = repo.Queue.MaxNumber(ctx, f.specialty.SpecialtyID, f.date)
	if highest != 1 {
		t.Errorf("expected max 1, got %d", highest)
	}
	waiting, _ := repo.Queue.CountWaiting(ctx, f.specialty.SpecialtyID, f.date)
	if waiting != 1 {
		t.Errorf("expected 1 waiting, got %d", waiting)
	}
	byDoctor, err := repo.Queue.CountWaitingByDoctor(ctx, f.date, []string{f.doctor.UserID})
	if err != nil || byDoctor[f.doctor.UserID] != 1 {
		t.Errorf("expected doctor load 1, got %v (%v)", byDoctor, err)
	}
}

func TestQueue_TransactionRollback(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithTransaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Queue.Create(ctx, f.entry(1)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	if _, err := repo.Queue.FindActiveForPatient(ctx, f.patient.UserID, f.specialty.SpecialtyID, f.date); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected rollback to discard the entry, got %v", err)
	}
}
