package model

// Specialty is a medical specialty; Code is the letter used in turn labels.
type Specialty struct {
	SpecialtyID string `gorm:"column:especialidad_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"especialidad_id"`
	Name        string `gorm:"column:nombre;type:varchar(100);not null;uniqueIndex"                  json:"nombre"`
	Code        string `gorm:"column:codigo;type:char(1);not null"                                   json:"codigo"`
	Description string `gorm:"column:descripcion;type:text;not null;default:''"                      json:"descripcion"`
	Active      bool   `gorm:"column:activa;not null;default:true"                                   json:"activa"`
	BaseModel
}

// TableName binds the table.
func (Specialty) TableName() string { return "especialidades" }
