package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Write conflicts reported by unique indexes.
var (
	ErrSlotTaken         = errors.New("doctor slot already booked")
	ErrTurnNumberTaken   = errors.New("turn number already taken")
	ErrActiveEntryExists = errors.New("patient already holds an active queue entry")
)

// Unique index names, see pkg/database/migrations.
const (
	constraintActiveSlot  = "uq_citas_medico_slot_activa"
	constraintTurnNumber  = "uq_turnos_especialidad_numero"
	constraintActiveEntry = "uq_turnos_paciente_activo"
)

const pgUniqueViolation = "23505"

// uniqueViolation returns the violated constraint when err is a unique violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// translateWriteError maps known unique violations to repository errors.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case constraintActiveSlot:
		return ErrSlotTaken
	case constraintTurnNumber:
		return ErrTurnNumberTaken
	case constraintActiveEntry:
		return ErrActiveEntryExists
	default:
		return err
	}
}
