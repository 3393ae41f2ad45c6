package model

import "time"

// Queue entry statuses
const (
	QueueWaiting   = "en_espera"
	QueueCalling   = "llamando"
	QueueServing   = "atendiendo"
	QueueCompleted = "completado"
	QueueCancelled = "cancelado"
)

// DefaultQueueReason is stored when the patient gives no reason.
const DefaultQueueReason = "Consulta sin cita previa"

// WaitingQueueStatuses count towards queue position.
var WaitingQueueStatuses = []string{QueueWaiting, QueueCalling}

// ActiveQueueStatuses block a second ticket for the same specialty and day.
var ActiveQueueStatuses = []string{QueueWaiting, QueueCalling, QueueServing}

// IsWaitingQueueStatus reports whether status still waits to be served.
func IsWaitingQueueStatus(status string) bool {
	return status == QueueWaiting || status == QueueCalling
}

// IsActiveQueueStatus reports a non-terminal status.
func IsActiveQueueStatus(status string) bool {
	return IsWaitingQueueStatus(status) || status == QueueServing
}

// QueueEntry is a walk-in ticket; table turnos.
//
// Number is unique per (SpecialtyID, Date) and never reused.
// InitialPosition is the position at creation, kept for audit only; the
// current position is always recomputed from live statuses.
type QueueEntry struct {
	EntryID         string     `gorm:"column:turno_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"turno_id"`
	PatientID       string     `gorm:"column:paciente_id;type:uuid;not null"                           json:"paciente_id"`
	DoctorID        string     `gorm:"column:medico_id;type:uuid;not null"                             json:"medico_id"`
	SpecialtyID     string     `gorm:"column:especialidad_id;type:uuid;not null"                       json:"especialidad_id"`
	Date            Date       `gorm:"column:fecha;type:date;not null"                                 json:"fecha"`
	Number          int        `gorm:"column:numero;not null"                                          json:"numero"`
	Label           string     `gorm:"column:turno;type:varchar(12);not null"                          json:"turno"`
	InitialPosition int        `gorm:"column:posicion_inicial;not null"                                json:"posicion_inicial"`
	Reason          string     `gorm:"column:motivo;type:text;not null"                                json:"motivo"`
	Status          string     `gorm:"column:estado;type:varchar(20);not null;default:'en_espera'"     json:"estado"`
	ArrivedAt       time.Time  `gorm:"column:hora_llegada;not null"                                    json:"hora_llegada"`
	CalledAt        *time.Time `gorm:"column:hora_llamado"                                             json:"hora_llamado,omitempty"`
	ServedAt        *time.Time `gorm:"column:hora_atencion"                                            json:"hora_atencion,omitempty"`
	CompletedAt     *time.Time `gorm:"column:hora_completado"                                          json:"hora_completado,omitempty"`
	VersionedModel

	Patient   *User      `gorm:"foreignKey:PatientID;references:UserID"        json:"paciente,omitempty"`
	Doctor    *User      `gorm:"foreignKey:DoctorID;references:UserID"         json:"medico,omitempty"`
	Specialty *Specialty `gorm:"foreignKey:SpecialtyID;references:SpecialtyID" json:"especialidad,omitempty"`
}

// TableName binds the table.
func (QueueEntry) TableName() string { return "turnos" }
