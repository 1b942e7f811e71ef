package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event ist eine Konferenz bzw. ein Call for Papers einer Organisation.
type Event struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrganizationID string `json:"organization_id" gorm:"size:36;index;not null"`
	Name           string `json:"name" gorm:"not null"`
	Slug           string `json:"slug" gorm:"index"`
	Description    string `json:"description,omitempty" gorm:"type:text"`
	IsActive       bool   `json:"is_active" gorm:"not null"`

	// Einreichungsfenster; nil bedeutet "keine Grenze"
	SubmissionStart *time.Time `json:"submission_start,omitempty"`
	SubmissionEnd   *time.Time `json:"submission_end,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`

	// UsesRevisionStatus schaltet REVISION_REQUIRED im Review-Workflow frei.
	UsesRevisionStatus bool `json:"uses_revision_status" gorm:"not null"`

	// Regeln für das Keyword-Feld (0 = keine Grenze)
	KeywordsMin int `json:"keywords_min"`
	KeywordsMax int `json:"keywords_max"`
	MaxAuthors  int `json:"max_authors"`

	Organization *Organization    `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
	Areas        []EventArea      `json:"areas,omitempty" gorm:"foreignKey:EventID"`
	PaperTypes   []EventPaperType `json:"paper_types,omitempty" gorm:"foreignKey:EventID"`
	Fields       []EventField     `json:"fields,omitempty" gorm:"foreignKey:EventID"`
}

func (Event) TableName() string { return "events" }

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// EventArea ist ein Themenbereich, dem ein Paper zugeordnet wird.
type EventArea struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	EventID     string `json:"event_id" gorm:"size:36;index;not null"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sort_order"`
	IsActive    bool   `json:"is_active" gorm:"not null"`
}

func (EventArea) TableName() string { return "event_areas" }

func (a *EventArea) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// EventPaperType ist eine Einreichungsart (z.B. Full Paper, Poster).
type EventPaperType struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	EventID     string `json:"event_id" gorm:"size:36;index;not null"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sort_order"`
	IsActive    bool   `json:"is_active" gorm:"not null"`
}

func (EventPaperType) TableName() string { return "event_paper_types" }

func (p *EventPaperType) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// FieldType bestimmt Darstellung und Validierung eines dynamischen Formularfelds.
type FieldType string

const (
	FieldText        FieldType = "TEXT"
	FieldTextarea    FieldType = "TEXTAREA"
	FieldAbstract    FieldType = "ABSTRACT"
	FieldNumber      FieldType = "NUMBER"
	FieldEmail       FieldType = "EMAIL"
	FieldURL         FieldType = "URL"
	FieldDate        FieldType = "DATE"
	FieldSelect      FieldType = "SELECT"
	FieldMultiSelect FieldType = "MULTISELECT"
	FieldCheckbox    FieldType = "CHECKBOX"
	FieldFile        FieldType = "FILE"
)

// EventField definiert ein vom Veranstalter konfiguriertes Formularfeld.
type EventField struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EventID   string    `json:"event_id" gorm:"size:36;index;not null"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Label     string    `json:"label" gorm:"not null"`
	FieldType FieldType `json:"field_type" gorm:"size:32;not null"`
	Required  bool      `json:"required" gorm:"not null"`

	MinLength *int `json:"min_length,omitempty"`
	MaxLength *int `json:"max_length,omitempty"`
	MinWords  *int `json:"min_words,omitempty"`
	MaxWords  *int `json:"max_words,omitempty"`

	// Nur für FILE-Felder
	MaxFileSize      *int64 `json:"max_file_size,omitempty"`
	AllowedFileTypes string `json:"allowed_file_types,omitempty"`

	// Auswahlmöglichkeiten für SELECT/MULTISELECT als JSON-Array von Strings
	Options datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`

	Placeholder string `json:"placeholder,omitempty"`
	HelpText    string `json:"help_text,omitempty" gorm:"type:text"`
	SortOrder   int    `json:"sort_order"`
	IsActive    bool   `json:"is_active" gorm:"not null"`
}

func (EventField) TableName() string { return "event_fields" }

func (f *EventField) BeforeCreate(tx *gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
