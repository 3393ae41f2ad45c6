package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"smartflow/backend/config"
	"smartflow/backend/internal/event"
	"smartflow/backend/internal/model"
)

// ── fixture ids ──

const (
	specGeneralID  = "a0000000-0000-4000-8000-000000000001"
	specCardioID   = "a0000000-0000-4000-8000-000000000002"
	specDermaID    = "a0000000-0000-4000-8000-000000000003" // inactive
	drAnaID        = "d0000000-0000-4000-8000-000000000001" // General; Mon 09-12, 16-18; fee 500
	drLuisID       = "d0000000-0000-4000-8000-000000000002" // General + Cardio; Mon 10-11, Tue 09-11; fee 700
	drRetiredID    = "d0000000-0000-4000-8000-000000000003" // inactive
	patient1ID     = "b0000000-0000-4000-8000-000000000001"
	patient2ID     = "b0000000-0000-4000-8000-000000000002"
	patient3ID     = "b0000000-0000-4000-8000-000000000003"
	adminID        = "e0000000-0000-4000-8000-000000000001"
	unknownID      = "f0000000-0000-4000-8000-00000000ffff"
	testBaseURL    = "https://citas.smartflow.test"
	testTurnMinute = 15
)

// clinicZone stands in for the clinic time zone without tzdata.
var clinicZone = time.FixedZone("CST", -6*3600)

// Monday 2026-03-02, 08:00 at the clinic.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, clinicZone)

const testToday = model.Date("2026-03-02")

var (
	asAdmin = Caller{UserID: adminID, Role: model.RoleAdmin}
	asDoc   = Caller{UserID: drAnaID, Role: model.RoleDoctor}
)

func asPatient(id string) Caller { return Caller{UserID: id, Role: model.RolePatient} }

// ── recording sink ──

type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recordingSink) Publish(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// ── environment ──

type testEnv struct {
	store      *mockStore
	clinic     *Clinic
	sink       *recordingSink
	dispatcher *event.Dispatcher
	svc        *Service
}

// setAt moves the clinic clock to hh:mm on the given day.
func (e *testEnv) setAt(date model.Date, hour, minute int) {
	d := date.Time()
	at := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, clinicZone)
	e.clinic.Now = func() time.Time { return at }
}

// flushEvents waits for background dispatches and returns their types.
func (e *testEnv) flushEvents() []string {
	e.dispatcher.Close()
	return e.sink.types()
}

func fee(v float64) *float64 { return &v }

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMockStore()
	general := &model.Specialty{SpecialtyID: specGeneralID, Name: "Medicina General", Code: "A", Active: true}
	cardio := &model.Specialty{SpecialtyID: specCardioID, Name: "Cardiología", Code: "C", Active: true}
	derma := &model.Specialty{SpecialtyID: specDermaID, Name: "Dermatología", Code: "D", Active: false}
	for _, sp := range []*model.Specialty{general, cardio, derma} {
		store.addSpecialty(sp)
	}

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ana := &model.User{
		UserID: drAnaID, FirstName: "Ana", LastName: "Ruiz", Email: "ana@smartflow.test",
		Role: model.RoleDoctor, Active: true, ConsultationFee: fee(500),
		Specialties: []model.Specialty{*general},
		Availability: []model.DoctorAvailability{
			{DoctorID: drAnaID, Weekday: time.Monday, StartTime: "09:00", EndTime: "12:00"},
			{DoctorID: drAnaID, Weekday: time.Monday, StartTime: "16:00", EndTime: "18:00"},
		},
	}
	ana.CreatedAt = created
	luis := &model.User{
		UserID: drLuisID, FirstName: "Luis", LastName: "Paz", Email: "luis@smartflow.test",
		Role: model.RoleDoctor, Active: true, ConsultationFee: fee(700),
		Specialties: []model.Specialty{*cardio, *general},
		Availability: []model.DoctorAvailability{
			{DoctorID: drLuisID, Weekday: time.Monday, StartTime: "10:00", EndTime: "11:00"},
			{DoctorID: drLuisID, Weekday: time.Tuesday, StartTime: "09:00", EndTime: "11:00"},
		},
	}
	luis.CreatedAt = created.Add(time.Hour)
	retired := &model.User{
		UserID: drRetiredID, FirstName: "Raúl", Email: "raul@smartflow.test",
		Role: model.RoleDoctor, Active: false,
		Specialties: []model.Specialty{*general},
		Availability: []model.DoctorAvailability{
			{DoctorID: drRetiredID, Weekday: time.Monday, StartTime: "09:00", EndTime: "12:00"},
		},
	}
	for _, u := range []*model.User{ana, luis, retired} {
		store.addUser(u)
	}
	for i, id := range []string{patient1ID, patient2ID, patient3ID} {
		store.addUser(&model.User{
			UserID: id, FirstName: []string{"Carla", "Diego", "Elena"}[i], LastName: "López",
			Email: id[len(id)-1:] + "@pacientes.test", Role: model.RolePatient, Active: true,
		})
	}
	store.addUser(&model.User{UserID: adminID, FirstName: "Admin", Email: "admin@smartflow.test", Role: model.RoleAdmin, Active: true})

	clinic := &Clinic{
		Name:                "SmartFlow Medic",
		Address:             "Av. Reforma 100",
		Location:            clinicZone,
		AvailabilityDays:    15,
		MaxAvailabilityDays: 60,
		SlotMinutes:         30,
		TurnMinutes:         testTurnMinute,
		QueueRetryAttempts:  3,
		Now:                 func() time.Time { return testNow },
	}

	sink := &recordingSink{}
	logger := zap.NewNop()
	dispatcher := event.NewDispatcher(logger, time.Second, sink)
	t.Cleanup(dispatcher.Close)

	cfg := &config.Config{Server: config.ServerConfig{BaseURL: testBaseURL}}
	return &testEnv{
		store:      store,
		clinic:     clinic,
		sink:       sink,
		dispatcher: dispatcher,
		svc:        NewService(cfg, store.repository(), clinic, dispatcher, logger),
	}
}
