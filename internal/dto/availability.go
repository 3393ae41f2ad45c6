package dto

// AvailabilityRequest query for GET /medicos/:id/disponibilidad
type AvailabilityRequest struct {
	Days int    `form:"dias"  binding:"omitempty,min=1"`
	From string `form:"desde"`
}

// DayAvailability free slots of one calendar day.
type DayAvailability struct {
	Date  string   `json:"fecha"`
	Day   string   `json:"dia"`
	Slots []string `json:"horarios"`
}

// TodayOpeningsRequest query for GET /turnos/horarios-disponibles
type TodayOpeningsRequest struct {
	SpecialtyID string `form:"especialidadId" binding:"omitempty,uuid"`
	DoctorID    string `form:"medicoId"       binding:"omitempty,uuid"`
}

// DoctorSummary compact doctor card.
type DoctorSummary struct {
	ID          string              `json:"_id"`
	Name        string              `json:"nombre"` // full name
	Photo       string              `json:"foto"`
	Specialties []SpecialtyResponse `json:"especialidades"`
}

// WorkingWindow a window of the doctor's day.
type WorkingWindow struct {
	Start string `json:"horaInicio"`
	End   string `json:"horaFin"`
}

// DoctorOpenings free slots left today inside one window of one doctor.
type DoctorOpenings struct {
	Doctor    DoctorSummary `json:"medico"`
	Window    WorkingWindow `json:"horarioTrabajo"`
	Slots     []string      `json:"horariosDisponibles"`
	SlotCount int           `json:"cantidadDisponibles"`
}

// TodayOpeningsResponse wraps the openings with the day they refer to.
type TodayOpeningsResponse struct {
	Date    string
	Weekday string
	Items   []DoctorOpenings
}
