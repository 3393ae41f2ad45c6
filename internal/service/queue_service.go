package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/event"
	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
	pkgerrors "smartflow/backend/pkg/errors"
)

// ── queue errors ──

var (
	ErrDuplicateQueue     = errors.New("Ya tienes un turno activo en esta especialidad")
	ErrQueueContention    = errors.New("La fila está muy concurrida, intenta de nuevo")
	ErrNoDoctorAvailable  = errors.New("No hay médicos disponibles para esta especialidad")
	ErrQueueEntryNotFound = errors.New("Turno no encontrado")
	ErrQueueEntryClosed   = errors.New("Este turno ya fue completado o cancelado")
)

// fallbackTurnCode prefixes labels of specialties stored without a code.
const fallbackTurnCode = "A"

// forward path of a queue entry; cancelado is reachable from any active state
var queueForward = map[string]string{
	model.QueueWaiting: model.QueueCalling,
	model.QueueCalling: model.QueueServing,
	model.QueueServing: model.QueueCompleted,
}

// QueueService sequences the same-day walk-in line of each specialty.
type QueueService interface {
	// Join issues the next turn of the specialty for today.
	Join(ctx context.Context, req *dto.JoinQueueRequest, caller Caller) (*dto.QueueEntryResponse, error)
	// Summary reports the load of every specialty with activity on date
	// (YYYY-MM-DD, empty means today).
	Summary(ctx context.Context, date string) ([]dto.QueueSummaryItem, error)
	// MyActive returns the patient's latest active entry of today, or nil.
	MyActive(ctx context.Context, patientID, specialtyID string, caller Caller) (*dto.QueueEntryResponse, error)
	// Cancel closes an active entry. Other entries keep their numbers.
	Cancel(ctx context.Context, entryID string, caller Caller) (*dto.QueueEntryResponse, error)
	// DayQueue lists the entries of one specialty day by number, with stats.
	DayQueue(ctx context.Context, specialtyID, date string) (*dto.DayQueueResponse, error)
	// UpdateStatus moves an entry along en_espera, llamando, atendiendo,
	// completado, or to cancelado.
	UpdateStatus(ctx context.Context, entryID string, req *dto.UpdateQueueStatusRequest, caller Caller) (*dto.QueueEntryResponse, error)
}

type queueService struct {
	repo   *repository.Repository
	clinic *Clinic
	events *event.Dispatcher
	locks  *keyedMutex
	logger *zap.Logger
}

// NewQueueService creates a QueueService.
func NewQueueService(repo *repository.Repository, clinic *Clinic, events *event.Dispatcher, logger *zap.Logger) QueueService {
	return &queueService{
		repo:   repo,
		clinic: clinic,
		events: events,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Join
// ═══════════════════════════════════════════════════════════

func (s *queueService) Join(ctx context.Context, req *dto.JoinQueueRequest, caller Caller) (*dto.QueueEntryResponse, error) {
	if err := requireUUID("pacienteId", req.PatientID); err != nil {
		return nil, err
	}
	if err := requireUUID("especialidadId", req.SpecialtyID); err != nil {
		return nil, err
	}
	if err := optionalUUID("medicoId", req.DoctorID); err != nil {
		return nil, err
	}
	if !caller.CanActFor(req.PatientID) {
		return nil, ErrForbidden
	}
	reason := trimmed(req.Reason)
	if reason == "" {
		reason = model.DefaultQueueReason
	}

	patient, err := s.repo.User.GetByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatientNotFound
		}
		s.logger.Error("failed to load patient", zap.String("paciente_id", req.PatientID), zap.Error(err))
		return nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, ErrPatientNotFound
	}

	specialty, err := s.repo.Specialty.GetByID(ctx, req.SpecialtyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSpecialtyNotFound
		}
		s.logger.Error("failed to load specialty", zap.String("especialidad_id", req.SpecialtyID), zap.Error(err))
		return nil, err
	}
	if !specialty.Active {
		return nil, ErrSpecialtyNotFound
	}

	now := s.clinic.now()
	today := model.DateOf(now)

	// 1. one active entry per specialty and day
	if _, err := s.repo.Queue.FindActiveForPatient(ctx, patient.UserID, specialty.SpecialtyID, today); err == nil {
		return nil, ErrDuplicateQueue
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("failed to check active entry", zap.Error(err))
		return nil, err
	}

	// 2. doctor, chosen outside the critical section
	doctor, err := s.chooseDoctor(ctx, req.DoctorID, specialty.SpecialtyID, today)
	if err != nil {
		return nil, err
	}

	// 3-5. number, position, insert
	entry, err := s.issueTurn(ctx, specialty, today, func(number, position int) *model.QueueEntry {
		e := &model.QueueEntry{
			PatientID:       patient.UserID,
			DoctorID:        doctor.UserID,
			SpecialtyID:     specialty.SpecialtyID,
			Date:            today,
			Number:          number,
			Label:           turnLabel(specialty.Code, number),
			InitialPosition: position,
			Reason:          reason,
			Status:          model.QueueWaiting,
			ArrivedAt:       now,
		}
		e.CreatedBy = caller.auditID()
		e.UpdatedBy = caller.auditID()
		e.Version = 1
		return e
	})
	if err != nil {
		return nil, err
	}

	entry.Doctor = doctor
	entry.Specialty = specialty
	resp := toQueueEntryResponse(entry, waitingPosition(entry.InitialPosition-1, s.clinic.TurnMinutes))

	s.logger.Info("queue entry issued",
		zap.String("turno_id", entry.EntryID),
		zap.String("turno", entry.Label),
		zap.Int("posicion", entry.InitialPosition),
		zap.String("medico_id", doctor.UserID),
	)
	s.events.Dispatch(event.Event{
		Type:   event.QueueJoined,
		Key:    entry.EntryID,
		Topics: event.Topics(entry.SpecialtyID, entry.DoctorID, entry.PatientID),
		Data:   resp,
	})
	return resp, nil
}

// chooseDoctor validates the preferred doctor, or picks the least loaded
// active doctor of the specialty. Ties go to the earliest created.
func (s *queueService) chooseDoctor(ctx context.Context, preferredID, specialtyID string, today model.Date) (*model.User, error) {
	if preferredID != "" {
		doctor, err := s.repo.User.GetByID(ctx, preferredID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDoctorNotFound
			}
			s.logger.Error("failed to load doctor", zap.String("medico_id", preferredID), zap.Error(err))
			return nil, err
		}
		if !doctor.IsDoctor() {
			return nil, ErrDoctorNotFound
		}
		if !doctor.OffersSpecialty(specialtyID) {
			return nil, ErrInvalidSpecialty
		}
		return doctor, nil
	}

	doctors, err := s.repo.User.ListDoctors(ctx, repository.DoctorFilter{SpecialtyID: specialtyID})
	if err != nil {
		s.logger.Error("failed to list doctors", zap.String("especialidad_id", specialtyID), zap.Error(err))
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, ErrNoDoctorAvailable
	}

	ids := make([]string, 0, len(doctors))
	for _, d := range doctors {
		ids = append(ids, d.UserID)
	}
	load, err := s.repo.Queue.CountWaitingByDoctor(ctx, today, ids)
	if err != nil {
		s.logger.Error("failed to count doctor load", zap.Error(err))
		return nil, err
	}

	best := 0
	for i := 1; i < len(doctors); i++ {
		if load[doctors[i].UserID] < load[doctors[best].UserID] {
			best = i
		}
	}
	return &doctors[best], nil
}

// issueTurn reads the next number and the current line length and inserts
// the entry, serialized per specialty and day. A lost race on the number is
// retried; a lost race on the patient's active entry is a duplicate.
func (s *queueService) issueTurn(
	ctx context.Context,
	specialty *model.Specialty,
	date model.Date,
	build func(number, position int) *model.QueueEntry,
) (*model.QueueEntry, error) {
	unlock := s.locks.Lock(specialty.SpecialtyID + "|" + date.String())
	defer unlock()

	for attempt := 1; attempt <= s.clinic.QueueRetryAttempts; attempt++ {
		var entry *model.QueueEntry
		err := s.repo.WithTransaction(ctx, func(tx *repository.Repository) error {
			highest, err := tx.Queue.MaxNumber(ctx, specialty.SpecialtyID, date)
			if err != nil {
				return err
			}
			waiting, err := tx.Queue.CountWaiting(ctx, specialty.SpecialtyID, date)
			if err != nil {
				return err
			}
			entry = build(highest+1, int(waiting)+1)
			return tx.Queue.Create(ctx, entry)
		})

		switch {
		case err == nil:
			return entry, nil
		case errors.Is(err, repository.ErrTurnNumberTaken):
			s.logger.Warn("turn number taken, retrying",
				zap.String("especialidad_id", specialty.SpecialtyID),
				zap.Int("attempt", attempt),
			)
		case errors.Is(err, repository.ErrActiveEntryExists):
			return nil, ErrDuplicateQueue
		default:
			s.logger.Error("failed to issue turn", zap.String("especialidad_id", specialty.SpecialtyID), zap.Error(err))
			return nil, err
		}
	}
	return nil, ErrQueueContention
}

func turnLabel(code string, number int) string {
	if code == "" {
		code = fallbackTurnCode
	}
	return fmt.Sprintf("%s-%02d", code, number)
}

// ────────────────────── Summary ──────────────────────

func (s *queueService) Summary(ctx context.Context, date string) ([]dto.QueueSummaryItem, error) {
	day, err := s.queueDay(date)
	if err != nil {
		return nil, err
	}
	// inactive specialties keep showing while their line drains
	specialties, err := s.repo.Specialty.List(ctx, true)
	if err != nil {
		s.logger.Error("failed to list specialties", zap.Error(err))
		return nil, err
	}
	entries, err := s.repo.Queue.ListByDate(ctx, day, "")
	if err != nil {
		s.logger.Error("failed to list queue", zap.String("fecha", day.String()), zap.Error(err))
		return nil, err
	}

	type load struct {
		waiting int
		current *string
	}
	bySpecialty := make(map[string]*load)
	for i := range entries {
		e := &entries[i]
		l := bySpecialty[e.SpecialtyID]
		if l == nil {
			l = &load{}
			bySpecialty[e.SpecialtyID] = l
		}
		switch {
		case model.IsWaitingQueueStatus(e.Status):
			l.waiting++
		case e.Status == model.QueueServing && l.current == nil:
			label := e.Label
			l.current = &label
		}
	}

	result := make([]dto.QueueSummaryItem, 0)
	for i := range specialties {
		sp := &specialties[i]
		l := bySpecialty[sp.SpecialtyID]
		if l == nil || (l.waiting == 0 && l.current == nil) {
			continue
		}
		result = append(result, dto.QueueSummaryItem{
			Specialty:    toSpecialtyResponse(sp),
			Waiting:      l.waiting,
			Current:      l.current,
			EstimatedMin: l.waiting * s.clinic.TurnMinutes,
			Available:    sp.Active,
		})
	}
	return result, nil
}

// queueDay parses an optional YYYY-MM-DD, defaulting to today.
func (s *queueService) queueDay(date string) (model.Date, error) {
	if date == "" {
		return s.clinic.today(), nil
	}
	day, err := model.ParseDate(date)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return day, nil
}

// ────────────────────── MyActive ──────────────────────

func (s *queueService) MyActive(ctx context.Context, patientID, specialtyID string, caller Caller) (*dto.QueueEntryResponse, error) {
	if err := requireUUID("pacienteId", patientID); err != nil {
		return nil, err
	}
	if err := optionalUUID("especialidadId", specialtyID); err != nil {
		return nil, err
	}
	if !caller.CanActFor(patientID) {
		return nil, ErrForbidden
	}

	entry, err := s.repo.Queue.FindCurrentForPatient(ctx, patientID, s.clinic.today(), specialtyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("failed to load active entry", zap.String("paciente_id", patientID), zap.Error(err))
		return nil, err
	}

	pos, err := s.livePosition(ctx, entry)
	if err != nil {
		return nil, err
	}
	return toQueueEntryResponse(entry, pos), nil
}

// livePosition recomputes the place of an entry from current statuses.
func (s *queueService) livePosition(ctx context.Context, e *model.QueueEntry) (queuePosition, error) {
	if !model.IsWaitingQueueStatus(e.Status) {
		return queuePosition{}, nil
	}
	ahead, err := s.repo.Queue.CountWaitingAhead(ctx, e.SpecialtyID, e.Date, e.Number)
	if err != nil {
		s.logger.Error("failed to count entries ahead", zap.String("turno_id", e.EntryID), zap.Error(err))
		return queuePosition{}, err
	}
	return waitingPosition(int(ahead), s.clinic.TurnMinutes), nil
}

// ────────────────────── Cancel ──────────────────────

func (s *queueService) Cancel(ctx context.Context, entryID string, caller Caller) (*dto.QueueEntryResponse, error) {
	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !caller.CanActFor(entry.PatientID) {
		return nil, ErrForbidden
	}
	if !model.IsActiveQueueStatus(entry.Status) {
		return nil, ErrQueueEntryClosed
	}

	entry.Status = model.QueueCancelled
	entry.UpdatedBy = caller.auditID()
	if err := s.repo.Queue.UpdateStatus(ctx, entry); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("failed to cancel entry", zap.String("turno_id", entryID), zap.Error(err))
		}
		return nil, err
	}

	resp := toQueueEntryResponse(entry, queuePosition{})
	s.logger.Info("queue entry cancelled", zap.String("turno_id", entryID), zap.String("turno", entry.Label))
	s.events.Dispatch(event.Event{
		Type:   event.QueueCancelled,
		Key:    entry.EntryID,
		Topics: event.Topics(entry.SpecialtyID, entry.DoctorID, entry.PatientID),
		Data:   resp,
	})
	return resp, nil
}

func (s *queueService) loadEntry(ctx context.Context, entryID string) (*model.QueueEntry, error) {
	if err := requireUUID("turnoId", entryID); err != nil {
		return nil, err
	}
	entry, err := s.repo.Queue.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueueEntryNotFound
		}
		s.logger.Error("failed to load entry", zap.String("turno_id", entryID), zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// ────────────────────── DayQueue ──────────────────────

func (s *queueService) DayQueue(ctx context.Context, specialtyID, date string) (*dto.DayQueueResponse, error) {
	if err := requireUUID("especialidadId", specialtyID); err != nil {
		return nil, err
	}
	day, err := s.queueDay(date)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Specialty.GetByID(ctx, specialtyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSpecialtyNotFound
		}
		s.logger.Error("failed to load specialty", zap.String("especialidad_id", specialtyID), zap.Error(err))
		return nil, err
	}

	entries, err := s.repo.Queue.ListByDate(ctx, day, specialtyID)
	if err != nil {
		s.logger.Error("failed to list queue", zap.String("especialidad_id", specialtyID), zap.Error(err))
		return nil, err
	}

	resp := &dto.DayQueueResponse{
		Date:    day.String(),
		Entries: make([]dto.QueueEntryResponse, 0, len(entries)),
	}
	waitingSoFar := 0 // entries arrive ordered by number
	for i := range entries {
		e := &entries[i]
		pos := queuePosition{}
		switch e.Status {
		case model.QueueWaiting:
			resp.Stats.Waiting++
		case model.QueueCalling:
			resp.Stats.Calling++
		case model.QueueServing:
			resp.Stats.Serving++
		case model.QueueCompleted:
			resp.Stats.Completed++
		case model.QueueCancelled:
			resp.Stats.Cancelled++
		}
		if model.IsWaitingQueueStatus(e.Status) {
			pos = waitingPosition(waitingSoFar, s.clinic.TurnMinutes)
			waitingSoFar++
		}
		resp.Entries = append(resp.Entries, *toQueueEntryResponse(e, pos))
	}
	resp.Stats.EstimatedTotal = (resp.Stats.Waiting + resp.Stats.Calling) * s.clinic.TurnMinutes
	return resp, nil
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *queueService) UpdateStatus(ctx context.Context, entryID string, req *dto.UpdateQueueStatusRequest, caller Caller) (*dto.QueueEntryResponse, error) {
	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !model.IsActiveQueueStatus(entry.Status) {
		return nil, ErrQueueEntryClosed
	}
	if req.Status != model.QueueCancelled && queueForward[entry.Status] != req.Status {
		return nil, fmt.Errorf("%w: de %s a %s", ErrInvalidTransition, entry.Status, req.Status)
	}
	if req.Version != nil && *req.Version != entry.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	from := entry.Status
	now := s.clinic.now()
	switch req.Status {
	case model.QueueCalling:
		entry.CalledAt = &now
	case model.QueueServing:
		entry.ServedAt = &now
	case model.QueueCompleted:
		entry.CompletedAt = &now
	}
	entry.Status = req.Status
	entry.UpdatedBy = caller.auditID()

	if err := s.repo.Queue.UpdateStatus(ctx, entry); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("failed to update entry", zap.String("turno_id", entryID), zap.Error(err))
		}
		return nil, err
	}

	pos, err := s.livePosition(ctx, entry)
	if err != nil {
		return nil, err
	}
	resp := toQueueEntryResponse(entry, pos)

	s.logger.Info("queue entry status changed",
		zap.String("turno_id", entryID), zap.String("from", from), zap.String("to", entry.Status))
	eventType := event.QueueStatusChanged
	if entry.Status == model.QueueCancelled {
		eventType = event.QueueCancelled
	}
	s.events.Dispatch(event.Event{
		Type:   eventType,
		Key:    entry.EntryID,
		Topics: event.Topics(entry.SpecialtyID, entry.DoctorID, entry.PatientID),
		Data:   resp,
	})
	return resp, nil
}
