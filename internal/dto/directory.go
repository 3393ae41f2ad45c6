package dto

// ── directory ──

// SpecialtyListRequest query for GET /especialidades
type SpecialtyListRequest struct {
	IncludeInactive bool `form:"incluirInactivas"`
}

// DoctorListRequest query for GET /medicos
type DoctorListRequest struct {
	SpecialtyID string `form:"especialidadId" binding:"omitempty,uuid"`
}

// SpecialtyResponse specialty as the mobile client reads it.
type SpecialtyResponse struct {
	ID          string `json:"_id"`
	Name        string `json:"nombre"`
	Code        string `json:"codigo"`
	Description string `json:"descripcion,omitempty"`
}

// WindowResponse one weekly availability window.
type WindowResponse struct {
	Day   string `json:"dia"`
	Start string `json:"horaInicio"`
	End   string `json:"horaFin"`
}

// DoctorInfo doctor-only profile block.
type DoctorInfo struct {
	Specialties     []SpecialtyResponse `json:"especialidades"`
	ConsultationFee float64             `json:"tarifaConsulta"`
	Availability    []WindowResponse    `json:"horariosDisponibles"`
}

// DoctorResponse doctor profile.
type DoctorResponse struct {
	ID        string     `json:"_id"`
	FirstName string     `json:"nombre"`
	LastName  string     `json:"apellido"`
	Photo     string     `json:"foto"`
	Email     string     `json:"email"`
	Info      DoctorInfo `json:"medicoInfo"`
}
