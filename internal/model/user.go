package model

import "time"

// Roles
const (
	RolePatient = "paciente"
	RoleDoctor  = "medico"
	RoleAdmin   = "admin"
)

// User is a patient, doctor or administrator; table usuarios.
type User struct {
	UserID          string   `gorm:"column:usuario_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"usuario_id"`
	FirstName       string   `gorm:"column:nombre;type:varchar(100);not null"                         json:"nombre"`
	LastName        string   `gorm:"column:apellido;type:varchar(100);not null;default:''"            json:"apellido"`
	Email           string   `gorm:"column:email;type:varchar(255);not null;uniqueIndex"              json:"email"`
	Phone           string   `gorm:"column:telefono;type:varchar(30);not null;default:''"             json:"telefono"`
	Photo           string   `gorm:"column:foto;type:text;not null;default:''"                        json:"foto"`
	Role            string   `gorm:"column:rol;type:varchar(20);not null"                             json:"rol"`
	Active          bool     `gorm:"column:activo;not null;default:true"                              json:"activo"`
	ConsultationFee *float64 `gorm:"column:tarifa_consulta;type:numeric(10,2)"                        json:"tarifa_consulta,omitempty"`
	BaseModel

	// doctors only
	Specialties  []Specialty          `gorm:"many2many:medico_especialidades;foreignKey:UserID;joinForeignKey:MedicoID;references:SpecialtyID;joinReferences:EspecialidadID" json:"especialidades,omitempty"`
	Availability []DoctorAvailability `gorm:"foreignKey:DoctorID;references:UserID"                                                                                           json:"horarios,omitempty"`
}

// TableName binds the table.
func (User) TableName() string { return "usuarios" }

// FullName "nombre apellido", trimmed when the last name is empty.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsDoctor reports an active user with the medico role.
func (u *User) IsDoctor() bool { return u.Role == RoleDoctor && u.Active }

// Fee returns the consultation fee, zero when unset.
func (u *User) Fee() float64 {
	if u.ConsultationFee == nil {
		return 0
	}
	return *u.ConsultationFee
}

// OffersSpecialty reports whether the doctor is linked to specialtyID.
func (u *User) OffersSpecialty(specialtyID string) bool {
	for _, s := range u.Specialties {
		if s.SpecialtyID == specialtyID {
			return true
		}
	}
	return false
}

// DoctorAvailability is one weekly working window; table horarios_medico.
type DoctorAvailability struct {
	AvailabilityID string       `gorm:"column:horario_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"horario_id"`
	DoctorID       string       `gorm:"column:medico_id;type:uuid;not null;index"                          json:"medico_id"`
	Weekday        time.Weekday `gorm:"column:dia_semana;type:smallint;not null"                           json:"dia_semana"`
	StartTime      string       `gorm:"column:hora_inicio;type:varchar(5);not null"                        json:"hora_inicio"`
	EndTime        string       `gorm:"column:hora_fin;type:varchar(5);not null"                           json:"hora_fin"`
}

// TableName binds the table.
func (DoctorAvailability) TableName() string { return "horarios_medico" }
