package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/event"
	"smartflow/backend/internal/model"
	pkgerrors "smartflow/backend/pkg/errors"
)

func bookReq(patientID, doctorID, date, clock string) *dto.BookAppointmentRequest {
	return &dto.BookAppointmentRequest{
		PatientID:   patientID,
		DoctorID:    doctorID,
		SpecialtyID: specGeneralID,
		Date:        date,
		Time:        clock,
		Reason:      "Dolor de cabeza",
	}
}

// ── Book ──

func TestAppointmentService_Book_MondayWithFee(t *testing.T) {
	env := setupTestEnv(t)

	appt, err := env.svc.Appointment.Book(context.Background(), bookReq(patient1ID, drAnaID, "2026-03-02", "09:00"), asPatient(patient1ID))
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if appt.Status != model.AppointmentPending {
		t.Errorf("expected pendiente, got %s", appt.Status)
	}
	if appt.Amount != 500 {
		t.Errorf("expected amount 500, got %v", appt.Amount)
	}
	if appt.PaymentMode != model.PaymentCash || appt.Paid {
		t.Errorf("cash booking must be unpaid, got %s paid=%v", appt.PaymentMode, appt.Paid)
	}
	if appt.Version != 1 {
		t.Errorf("expected version 1, got %d", appt.Version)
	}
	if appt.Doctor == nil || appt.Doctor.ConsultationFee != 500 {
		t.Errorf("expected embedded doctor with fee, got %+v", appt.Doctor)
	}
	if appt.Specialty == nil || appt.Specialty.Name != "Medicina General" {
		t.Errorf("expected embedded specialty, got %+v", appt.Specialty)
	}

	types := env.flushEvents()
	if len(types) != 1 || types[0] != event.AppointmentCreated {
		t.Errorf("expected one %s event, got %v", event.AppointmentCreated, types)
	}
}

func TestAppointmentService_Book_OnlineIsPaid(t *testing.T) {
	env := setupTestEnv(t)
	req := bookReq(patient1ID, drAnaID, "2026-03-09", "16:30")
	req.PaymentMode = "online"

	appt, err := env.svc.Appointment.Book(context.Background(), req, asPatient(patient1ID))
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if !appt.Paid || appt.PaymentMode != model.PaymentOnline {
		t.Errorf("online booking must be paid, got %+v", appt)
	}
}

func TestAppointmentService_Book_InfersSingleSpecialty(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	req := bookReq(patient1ID, drAnaID, "2026-03-02", "09:00")
	req.SpecialtyID = ""
	appt, err := env.svc.Appointment.Book(ctx, req, asAdmin)
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if appt.SpecialtyID != specGeneralID {
		t.Errorf("expected inferred specialty %s, got %s", specGeneralID, appt.SpecialtyID)
	}

	// Luis offers two specialties
	req = bookReq(patient1ID, drLuisID, "2026-03-02", "10:00")
	req.SpecialtyID = ""
	if _, err := env.svc.Appointment.Book(ctx, req, asAdmin); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for ambiguous specialty, got %v", err)
	}
}

func TestAppointmentService_Book_Validation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	cases := map[string]func(r *dto.BookAppointmentRequest){
		"bad patient id": func(r *dto.BookAppointmentRequest) { r.PatientID = "123" },
		"bad doctor id":  func(r *dto.BookAppointmentRequest) { r.DoctorID = "" },
		"bad date":       func(r *dto.BookAppointmentRequest) { r.Date = "02/03/2026" },
		"bad clock":      func(r *dto.BookAppointmentRequest) { r.Time = "9:00" },
		"blank reason":   func(r *dto.BookAppointmentRequest) { r.Reason = "   " },
		"bad payment":    func(r *dto.BookAppointmentRequest) { r.PaymentMode = "tarjeta" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := bookReq(patient1ID, drAnaID, "2026-03-02", "09:00")
			mutate(req)
			if _, err := env.svc.Appointment.Book(ctx, req, asAdmin); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestAppointmentService_Book_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		req    *dto.BookAppointmentRequest
		caller Caller
		want   error
	}{
		{"someone else's patient", bookReq(patient2ID, drAnaID, "2026-03-02", "09:00"), asPatient(patient1ID), ErrForbidden},
		{"unknown patient", bookReq(unknownID, drAnaID, "2026-03-02", "09:00"), asAdmin, ErrPatientNotFound},
		{"doctor as patient", bookReq(drLuisID, drAnaID, "2026-03-02", "09:00"), asAdmin, ErrPatientNotFound},
		{"unknown doctor", bookReq(patient1ID, unknownID, "2026-03-02", "09:00"), asAdmin, ErrDoctorNotFound},
		{"inactive doctor", bookReq(patient1ID, drRetiredID, "2026-03-02", "09:00"), asAdmin, ErrDoctorNotFound},
		{"yesterday", bookReq(patient1ID, drAnaID, "2026-03-01", "09:00"), asAdmin, ErrPastDate},
		{"between windows", bookReq(patient1ID, drAnaID, "2026-03-02", "13:00"), asAdmin, ErrOutsideWorkingHours},
		{"off the grid", bookReq(patient1ID, drAnaID, "2026-03-02", "09:15"), asAdmin, ErrOutsideWorkingHours},
		{"day off", bookReq(patient1ID, drAnaID, "2026-03-03", "09:00"), asAdmin, ErrOutsideWorkingHours},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.Appointment.Book(ctx, tc.req, tc.caller); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	wrongSpecialty := bookReq(patient1ID, drAnaID, "2026-03-02", "09:00")
	wrongSpecialty.SpecialtyID = specCardioID
	if _, err := env.svc.Appointment.Book(ctx, wrongSpecialty, asAdmin); !errors.Is(err, ErrInvalidSpecialty) {
		t.Errorf("expected ErrInvalidSpecialty, got %v", err)
	}
}

func TestAppointmentService_Book_OutsideHoursMessageListsHours(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.svc.Appointment.Book(context.Background(), bookReq(patient1ID, drAnaID, "2026-03-02", "13:00"), asAdmin)
	if !errors.Is(err, ErrOutsideWorkingHours) {
		t.Fatalf("expected ErrOutsideWorkingHours, got %v", err)
	}
	if !strings.Contains(err.Error(), "09:00 a 12:00, 16:00 a 18:00") {
		t.Errorf("message should list the hours, got %q", err.Error())
	}
}

func TestAppointmentService_Book_StartedSlotToday(t *testing.T) {
	env := setupTestEnv(t)
	env.setAt(testToday, 9, 10)

	_, err := env.svc.Appointment.Book(context.Background(), bookReq(patient1ID, drAnaID, "2026-03-02", "09:00"), asAdmin)
	if !errors.Is(err, ErrPastDate) {
		t.Errorf("expected ErrPastDate, got %v", err)
	}
}

func TestAppointmentService_Book_SlotConflict(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Appointment.Book(ctx, bookReq(patient1ID, drAnaID, "2026-03-02", "10:00"), asAdmin); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	_, err := env.svc.Appointment.Book(ctx, bookReq(patient2ID, drAnaID, "2026-03-02", "10:00"), asAdmin)
	if !errors.Is(err, ErrSlotConflict) {
		t.Errorf("expected ErrSlotConflict, got %v", err)
	}
}

func TestAppointmentService_Book_ConcurrentSingleWinner(t *testing.T) {
	env := setupTestEnv(t)
	const n = 12

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Appointment.Book(context.Background(),
				bookReq(patient1ID, drAnaID, "2026-03-09", "11:00"), asAdmin)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != n-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", n-1, wins, conflicts)
	}
}

// ── patient views ──

func TestAppointmentService_PatientViews(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	first, _ := env.svc.Appointment.Book(ctx, bookReq(patient1ID, drAnaID, "2026-03-02", "09:00"), asAdmin)
	second, _ := env.svc.Appointment.Book(ctx, bookReq(patient1ID, drAnaID, "2026-03-09", "09:00"), asAdmin)
	third, _ := env.svc.Appointment.Book(ctx, bookReq(patient1ID, drAnaID, "2026-03-16", "09:00"), asAdmin)
	_, _ = env.svc.Appointment.Book(ctx, bookReq(patient2ID, drAnaID, "2026-03-02", "09:30"), asAdmin)

	for _, id := range []string{first.ID, second.ID} {
		for _, status := range []string{model.AppointmentConfirmed, model.AppointmentCompleted} {
			if _, err := env.svc.Appointment.UpdateStatus(ctx, id, &dto.UpdateAppointmentStatusRequest{Status: status}, asDoc); err != nil {
				t.Fatalf("UpdateStatus %s failed: %v", status, err)
			}
		}
	}

	all, err := env.svc.Appointment.ListByPatient(ctx, patient1ID, "", asPatient(patient1ID))
	if err != nil {
		t.Fatalf("ListByPatient failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != first.ID || all[2].ID != third.ID {
		t.Errorf("expected the patient's 3 appointments ascending, got %d", len(all))
	}

	pending, _ := env.svc.Appointment.ListByPatient(ctx, patient1ID, model.AppointmentPending, asPatient(patient1ID))
	if len(pending) != 1 || pending[0].ID != third.ID {
		t.Errorf("expected only the pending appointment, got %d", len(pending))
	}

	upcoming, _ := env.svc.Appointment.Upcoming(ctx, patient1ID, asPatient(patient1ID))
	if len(upcoming) != 1 || upcoming[0].ID != third.ID {
		t.Errorf("expected one upcoming appointment, got %d", len(upcoming))
	}

	history, _ := env.svc.Appointment.History(ctx, patient1ID, asPatient(patient1ID))
	if len(history) != 2 || history[0].ID != second.ID || history[1].ID != first.ID {
		t.Errorf("expected completed appointments newest first, got %d", len(history))
	}
}

func TestAppointmentService_PatientViews_Errors(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Appointment.Upcoming(ctx, patient2ID, asPatient(patient1ID)); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := env.svc.Appointment.History(ctx, unknownID, asAdmin); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
	if _, err := env.svc.Appointment.ListByPatient(ctx, "nope", "", asAdmin); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

// ── UpdateStatus ──

func TestAppointmentService_UpdateStatus_CashCompletionMarksPaid(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	appt, _ := env.svc.Appointment.Book(ctx, bookReq(patient1ID, drAnaID, "2026-03-02", "11:00"), asAdmin)

	confirmed, err := env.svc.Appointment.UpdateStatus(ctx, appt.ID, &dto.UpdateAppointmentStatusRequest{Status: model.AppointmentConfirmed}, asDoc)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Version != 2 || confirmed.Paid {
		t.Errorf("unexpected confirmed state %+v", confirmed)
	}

	done, err := env.svc.Appointment.UpdateStatus(ctx, appt.ID, &dto.UpdateAppointmentStatusRequest{Status: model.AppointmentCompleted}, asDoc)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if !done.Paid || done.Version != 3 {
		t.Errorf("completed cash appointment must be paid, got %+v", done)
	}

	types := env.flushEvents()
	if len(types) != 3 || types[2] != event.AppointmentStatusChanged {
		t.Errorf("unexpected events %v", types)
	}
}

func TestAppointmentService_UpdateStatus_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	appt, _ := env.svc.Appointment.Book(ctx, bookReq(patient1ID, drAnaID, "2026-03-02", "11:30"), asAdmin)

	if _, err := env.svc.Appointment.UpdateStatus(ctx, appt.ID,
		&dto.UpdateAppointmentStatusRequest{Status: model.AppointmentCompleted}, asDoc); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pendiente to completada must be rejected, got %v", err)
	}

	stale := 7
	if _, err := env.svc.Appointment.UpdateStatus(ctx, appt.ID,
		&dto.UpdateAppointmentStatusRequest{Status: model.AppointmentConfirmed, Version: &stale}, asDoc); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock, got %v", err)
	}

	if _, err := env.svc.Appointment.UpdateStatus(ctx, appt.ID,
		&dto.UpdateAppointmentStatusRequest{Status: model.AppointmentCancelled}, asDoc); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := env.svc.Appointment.UpdateStatus(ctx, appt.ID,
		&dto.UpdateAppointmentStatusRequest{Status: model.AppointmentConfirmed}, asDoc); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancelled appointments are final, got %v", err)
	}

	if _, err := env.svc.Appointment.UpdateStatus(ctx, unknownID,
		&dto.UpdateAppointmentStatusRequest{Status: model.AppointmentConfirmed}, asDoc); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestAppointmentService_CancelFreesSlotForRebooking(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	appt, _ := env.svc.Appointment.Book(ctx, bookReq(patient1ID, drAnaID, "2026-03-02", "17:00"), asAdmin)
	if _, err := env.svc.Appointment.UpdateStatus(ctx, appt.ID,
		&dto.UpdateAppointmentStatusRequest{Status: model.AppointmentCancelled}, asAdmin); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := env.svc.Appointment.Book(ctx, bookReq(patient2ID, drAnaID, "2026-03-02", "17:00"), asAdmin); err != nil {
		t.Errorf("cancelled slot should be bookable again: %v", err)
	}
}
