package model

// Appointment statuses
const (
	AppointmentPending   = "pendiente"
	AppointmentConfirmed = "confirmada"
	AppointmentCompleted = "completada"
	AppointmentCancelled = "cancelada"
)

// Payment modes
const (
	PaymentOnline = "online"
	PaymentCash   = "efectivo"
)

// ActiveAppointmentStatuses hold a doctor slot.
var ActiveAppointmentStatuses = []string{AppointmentPending, AppointmentConfirmed}

// IsActiveAppointmentStatus reports whether status holds the slot.
func IsActiveAppointmentStatus(status string) bool {
	return status == AppointmentPending || status == AppointmentConfirmed
}

// Appointment is a booked consultation; table citas.
// At most one active row exists per (DoctorID, Date, Time), see
// uq_citas_medico_slot_activa.
type Appointment struct {
	AppointmentID string  `gorm:"column:cita_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"cita_id"`
	PatientID     string  `gorm:"column:paciente_id;type:uuid;not null"                          json:"paciente_id"`
	DoctorID      string  `gorm:"column:medico_id;type:uuid;not null"                            json:"medico_id"`
	SpecialtyID   string  `gorm:"column:especialidad_id;type:uuid;not null"                      json:"especialidad_id"`
	Date          Date    `gorm:"column:fecha;type:date;not null"                                json:"fecha"`
	Time          string  `gorm:"column:hora;type:varchar(5);not null"                           json:"hora"`
	Status        string  `gorm:"column:estado;type:varchar(20);not null;default:'pendiente'"    json:"estado"`
	Reason        string  `gorm:"column:motivo;type:text;not null"                               json:"motivo"`
	PaymentMode   string  `gorm:"column:modo_pago;type:varchar(20);not null"                     json:"modo_pago"`
	Paid          bool    `gorm:"column:pagado;not null;default:false"                           json:"pagado"`
	Amount        float64 `gorm:"column:monto;type:numeric(10,2);not null;default:0"             json:"monto"`
	VersionedModel

	Patient   *User      `gorm:"foreignKey:PatientID;references:UserID"        json:"paciente,omitempty"`
	Doctor    *User      `gorm:"foreignKey:DoctorID;references:UserID"         json:"medico,omitempty"`
	Specialty *Specialty `gorm:"foreignKey:SpecialtyID;references:SpecialtyID" json:"especialidad,omitempty"`
}

// TableName binds the table.
func (Appointment) TableName() string { return "citas" }
