package dto

// ── requests ──

// JoinQueueRequest body of POST /turnos/tomar
type JoinQueueRequest struct {
	PatientID   string `json:"pacienteId"     binding:"required"`
	SpecialtyID string `json:"especialidadId" binding:"required"`
	DoctorID    string `json:"medicoId"`
	Reason      string `json:"motivo"         binding:"max=500"`
}

// ActiveEntryRequest query for GET /turnos/paciente/:pacienteId/activo
type ActiveEntryRequest struct {
	SpecialtyID string `form:"especialidadId" binding:"omitempty,uuid"`
}

// DayQueueRequest query for GET /turnos/especialidad/:especialidadId
type DayQueueRequest struct {
	Date string `form:"fecha"`
}

// UpdateQueueStatusRequest body of PATCH /turnos/:turnoId/estado
type UpdateQueueStatusRequest struct {
	Status  string `json:"estado"  binding:"required,oneof=llamando atendiendo completado cancelado"`
	Version *int   `json:"version" binding:"omitempty,min=1"`
}

// ── responses ──

// QueueDoctor doctor attending a queue entry.
type QueueDoctor struct {
	ID        string `json:"_id"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
	Photo     string `json:"foto"`
}

// QueueEntryResponse a turno with its live position.
type QueueEntryResponse struct {
	ID              string            `json:"_id"`
	PatientID       string            `json:"paciente"`
	Doctor          *QueueDoctor      `json:"medico"`
	Specialty       SpecialtyResponse `json:"especialidad"`
	Date            string            `json:"fecha"`
	Label           string            `json:"turno"`
	Number          int               `json:"numero"`
	InitialPosition int               `json:"posicionInicial"`
	Position        int               `json:"posicionEnFila"`
	Ahead           int               `json:"turnosAdelante"`
	EstimatedMin    int               `json:"tiempoEstimadoMin"`
	Status          string            `json:"estado"`
	Virtual         bool              `json:"esTurnoVirtual"`
	Reason          string            `json:"motivo"`
	ArrivedAt       string            `json:"horaLlegada"`
	CalledAt        *string           `json:"horaLlamado,omitempty"`
	ServedAt        *string           `json:"horaAtencion,omitempty"`
	CompletedAt     *string           `json:"horaCompletado,omitempty"`
	Version         int               `json:"version"`
}

// QueueSummaryItem live load of one specialty.
type QueueSummaryItem struct {
	Specialty    SpecialtyResponse `json:"especialidad"`
	Waiting      int               `json:"turnosEnEspera"`
	Current      *string           `json:"turnoActual"`
	EstimatedMin int               `json:"tiempoEstimado"`
	Available    bool              `json:"disponible"`
}

// QueueStats counts of one specialty day by status.
type QueueStats struct {
	Waiting        int `json:"enEspera"`
	Calling        int `json:"llamando"`
	Serving        int `json:"atendiendo"`
	Completed      int `json:"completados"`
	Cancelled      int `json:"cancelados"`
	EstimatedTotal int `json:"tiempoEstimadoTotal"`
}

// DayQueueResponse all entries of one specialty day.
type DayQueueResponse struct {
	Date    string
	Stats   QueueStats
	Entries []QueueEntryResponse
}
