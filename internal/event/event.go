package event

import (
	"context"
	"time"
)

// Event types
const (
	AppointmentCreated       = "appointment.created"
	AppointmentStatusChanged = "appointment.status_changed"
	QueueJoined              = "queue.joined"
	QueueCancelled           = "queue.cancelled"
	QueueStatusChanged       = "queue.status_changed"
)

// Event is a state change other parties may want to hear about.
type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"` // id of the changed entity
	Topics     []string    `json:"topics"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// ── topics ──

// SpecialtyTopic carries queue and booking changes of one specialty.
func SpecialtyTopic(id string) string { return "especialidad:" + id }

// DoctorTopic carries changes on one doctor's agenda.
func DoctorTopic(id string) string { return "medico:" + id }

// PatientTopic carries changes on one patient's appointments and turns.
func PatientTopic(id string) string { return "paciente:" + id }

// Topics builds the topic set for an entity touching the given parties.
// Empty ids are skipped.
func Topics(specialtyID, doctorID, patientID string) []string {
	topics := make([]string, 0, 3)
	if specialtyID != "" {
		topics = append(topics, SpecialtyTopic(specialtyID))
	}
	if doctorID != "" {
		topics = append(topics, DoctorTopic(doctorID))
	}
	if patientID != "" {
		topics = append(topics, PatientTopic(patientID))
	}
	return topics
}
