package models

import (
	"time"

	"gorm.io/gorm"
)

// PaperStatus ist der Zustand eines Papers im Review-Workflow.
type PaperStatus string

const (
	StatusDraft            PaperStatus = "DRAFT"
	StatusPending          PaperStatus = "PENDING"
	StatusUnderReview      PaperStatus = "UNDER_REVIEW"
	StatusRevisionRequired PaperStatus = "REVISION_REQUIRED"
	StatusAccepted         PaperStatus = "ACCEPTED"
	StatusRejected         PaperStatus = "REJECTED"
	StatusPublished        PaperStatus = "PUBLISHED"
	StatusWithdrawn        PaperStatus = "WITHDRAWN"
)

// AllStatuses listet alle bekannten Zustände in Workflow-Reihenfolge.
var AllStatuses = []PaperStatus{
	StatusDraft, StatusPending, StatusUnderReview, StatusRevisionRequired,
	StatusAccepted, StatusRejected, StatusPublished, StatusWithdrawn,
}

// Valid meldet, ob s ein bekannter Zustand ist.
func (s PaperStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Paper ist eine Einreichung zu genau einem Event mit genau einem Besitzer.
type Paper struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Title    string      `json:"title" gorm:"not null"`
	Keywords string      `json:"keywords" gorm:"type:text"`
	Status   PaperStatus `json:"status" gorm:"size:32;index;not null"`

	EventID     string `json:"event_id" gorm:"size:36;index;not null"`
	UserID      string `json:"user_id" gorm:"size:36;index;not null"`
	AreaID      string `json:"area_id" gorm:"size:36"`
	PaperTypeID string `json:"paper_type_id" gorm:"size:36"`

	// Datei-Metadaten; FilePath ist der Objekt-Key im Speicher
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FilePath string `json:"-"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	Event       *Event            `json:"event,omitempty" gorm:"foreignKey:EventID"`
	User        *User             `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Area        *EventArea        `json:"area,omitempty" gorm:"foreignKey:AreaID"`
	PaperType   *EventPaperType   `json:"paper_type,omitempty" gorm:"foreignKey:PaperTypeID"`
	Authors     []PaperAuthor     `json:"authors,omitempty" gorm:"foreignKey:PaperID"`
	FieldValues []PaperFieldValue `json:"field_values,omitempty" gorm:"foreignKey:PaperID"`
	History     []PaperHistory    `json:"history,omitempty" gorm:"foreignKey:PaperID"`
}

func (Paper) TableName() string { return "papers" }

func (p *Paper) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// HasFile meldet, ob bereits eine Datei hochgeladen wurde.
func (p *Paper) HasFile() bool {
	return p.FileURL != ""
}

// PaperAuthor ist ein (Ko-)Autor eines Papers; UserID ist gesetzt, wenn er registriert ist.
type PaperAuthor struct {
	ID           string  `json:"id" gorm:"primaryKey;size:36"`
	PaperID      string  `json:"paper_id" gorm:"size:36;index;not null"`
	UserID       *string `json:"user_id,omitempty" gorm:"size:36;index"`
	Name         string  `json:"name" gorm:"not null"`
	Email        string  `json:"email,omitempty"`
	Institution  string  `json:"institution,omitempty"`
	IsMainAuthor bool    `json:"is_main_author" gorm:"not null"`
	IsPresenter  bool    `json:"is_presenter" gorm:"not null"`
	AuthorOrder  int     `json:"author_order"`
}

func (PaperAuthor) TableName() string { return "paper_authors" }

func (a *PaperAuthor) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// PaperFieldValue speichert den Wert eines dynamischen Felds; eindeutig je (Paper, Feld).
type PaperFieldValue struct {
	ID      string `json:"id" gorm:"primaryKey;size:36"`
	PaperID string `json:"paper_id" gorm:"size:36;uniqueIndex:idx_paper_field_values_paper_field;not null"`
	FieldID string `json:"field_id" gorm:"size:36;uniqueIndex:idx_paper_field_values_paper_field;not null"`
	Value   string `json:"value" gorm:"type:text"`

	Field *EventField `json:"field,omitempty" gorm:"foreignKey:FieldID"`
}

func (PaperFieldValue) TableName() string { return "paper_field_values" }

func (v *PaperFieldValue) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// PaperHistory ist ein unveränderlicher Eintrag im Statusverlauf.
type PaperHistory struct {
	ID        string      `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time   `json:"created_at" gorm:"index"`
	PaperID   string      `json:"paper_id" gorm:"size:36;index;not null"`
	Status    PaperStatus `json:"status" gorm:"size:32;not null"`
	Comment   string      `json:"comment,omitempty" gorm:"type:text"`
	UserID    string      `json:"user_id" gorm:"size:36;not null"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (PaperHistory) TableName() string { return "paper_history" }

func (h *PaperHistory) BeforeCreate(tx *gorm.DB) error {
	ensureID(&h.ID)
	return nil
}

// Recommendation ist die Empfehlung eines Reviewers.
type Recommendation string

const (
	RecommendAccept        Recommendation = "ACCEPT"
	RecommendMinorRevision Recommendation = "MINOR_REVISION"
	RecommendMajorRevision Recommendation = "MAJOR_REVISION"
	RecommendReject        Recommendation = "REJECT"
)

// PaperReview ist die Begutachtung eines Papers durch einen Reviewer (eine je Reviewer).
type PaperReview struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PaperID        string         `json:"paper_id" gorm:"size:36;uniqueIndex:idx_paper_reviews_paper_reviewer;not null"`
	ReviewerID     string         `json:"reviewer_id" gorm:"size:36;uniqueIndex:idx_paper_reviews_paper_reviewer;not null"`
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation" gorm:"size:32"`
	Comment        string         `json:"comment,omitempty" gorm:"type:text"`

	Reviewer *User `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
}

func (PaperReview) TableName() string { return "paper_reviews" }

func (r *PaperReview) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
