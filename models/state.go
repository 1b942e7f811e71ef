package models

// State ist ein Bundesstaat/Bundesland für Profilangaben.
type State struct {
	ID   string `json:"id" gorm:"primaryKey;size:36"`
	Code string `json:"code" gorm:"uniqueIndex;size:8;not null"` // z.B. "SP"
	Name string `json:"name" gorm:"not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (State) TableName() string {
	return "states"
}
