package models

// Admin is a marketplace operator principal.
type Admin struct {
	BaseModel

	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`
}

// Pilot is a contractor drone pilot principal. Profile and equipment fields
// are carried for peripheral reporting scripts; the core only needs the key.
type Pilot struct {
	BaseModel

	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name"`
	BaseRegion  string `gorm:"index" json:"base_region"`
	DroneModels string `json:"drone_models"`
	FlightHours int    `json:"flight_hours"`
	SourceForm  string `gorm:"index" json:"source_form"`
}
