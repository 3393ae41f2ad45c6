package dto

// ── requests ──

// BookAppointmentRequest body of POST /citas/crear.
// SpecialtyID may be omitted when the doctor offers a single specialty.
type BookAppointmentRequest struct {
	PatientID   string `json:"pacienteId"     binding:"required"`
	DoctorID    string `json:"medicoId"       binding:"required"`
	SpecialtyID string `json:"especialidadId"`
	Date        string `json:"fecha"          binding:"required"`
	Time        string `json:"hora"           binding:"required"`
	Reason      string `json:"motivo"         binding:"required,max=500"`
	PaymentMode string `json:"modoPago"`
}

// PatientAppointmentsRequest query for GET /citas/paciente/:pacienteId
type PatientAppointmentsRequest struct {
	Status string `form:"estado" binding:"omitempty,oneof=pendiente confirmada completada cancelada"`
}

// UpdateAppointmentStatusRequest body of PATCH /citas/:citaId/estado.
// Version, when sent, must match the stored version.
type UpdateAppointmentStatusRequest struct {
	Status  string `json:"estado"  binding:"required,oneof=confirmada completada cancelada"`
	Version *int   `json:"version" binding:"omitempty,min=1"`
}

// TodayAppointmentsRequest query for GET /citas/hoy
type TodayAppointmentsRequest struct {
	SpecialtyID string `form:"especialidadId" binding:"omitempty,uuid"`
	DoctorID    string `form:"medicoId"       binding:"omitempty,uuid"`
}

// ── responses ──

// PatientSummary patient card embedded in appointments.
type PatientSummary struct {
	ID        string `json:"_id"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
	Email     string `json:"email"`
	Photo     string `json:"foto"`
}

// AppointmentDoctor doctor card embedded in appointments.
type AppointmentDoctor struct {
	ID              string              `json:"_id"`
	FirstName       string              `json:"nombre"`
	LastName        string              `json:"apellido"`
	Photo           string              `json:"foto"`
	Specialties     []SpecialtyResponse `json:"especialidades"`
	ConsultationFee float64             `json:"tarifaConsulta"`
}

// AppointmentResponse a cita.
type AppointmentResponse struct {
	ID          string             `json:"_id"`
	PatientID   string             `json:"pacienteId"`
	DoctorID    string             `json:"medicoId"`
	SpecialtyID string             `json:"especialidadId"`
	Date        string             `json:"fecha"`
	Time        string             `json:"hora"`
	Status      string             `json:"estado"`
	Reason      string             `json:"motivo"`
	Amount      float64            `json:"monto"`
	Paid        bool               `json:"pagado"`
	PaymentMode string             `json:"modoPago"`
	Version     int                `json:"version"`
	Doctor      *AppointmentDoctor `json:"medico,omitempty"`
	Patient     *PatientSummary    `json:"paciente,omitempty"`
	Specialty   *SpecialtyResponse `json:"especialidad,omitempty"`
	CreatedAt   string             `json:"creadoEn"`
}

// BoardDoctor doctor as shown on the day board.
type BoardDoctor struct {
	ID            string `json:"_id"`
	Name          string `json:"nombre"`
	Photo         string `json:"foto"`
	Specialty     string `json:"especialidad"`
	SpecialtyCode string `json:"especialidadCodigo"`
}

// BoardPatient patient as shown on the day board.
type BoardPatient struct {
	ID    string `json:"_id"`
	Name  string `json:"nombre"`
	Photo string `json:"foto"`
}

// BoardAppointment one entry of the day board.
type BoardAppointment struct {
	ID      string       `json:"_id"`
	Time    string       `json:"hora"`
	Status  string       `json:"estado"`
	Reason  string       `json:"motivo"`
	Doctor  BoardDoctor  `json:"medico"`
	Patient BoardPatient `json:"paciente"`
}

// HourGroup appointments sharing a start time.
type HourGroup struct {
	Time         string             `json:"hora"`
	Appointments []BoardAppointment `json:"citas"`
}

// TodayBoard appointments of the day grouped by hour.
type TodayBoard struct {
	Date   string
	Total  int
	Groups []HourGroup
}
