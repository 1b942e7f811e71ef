package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"paper-portal/auth"
	"paper-portal/models"
)

// EventCache hält Events samt Bereichen, Typen und aktiven Feldern für eine begrenzte Zeit.
// Die gecachten Werte sind read-only.
type EventCache struct {
	lru *expirable.LRU[string, *models.Event]
}

// NewEventCache erstellt einen LRU-Cache mit maximaler Größe und TTL.
func NewEventCache(size int, ttl time.Duration) *EventCache {
	if size <= 0 {
		size = 256
	}
	return &EventCache{lru: expirable.NewLRU[string, *models.Event](size, nil, ttl)}
}

func (c *EventCache) get(id string) (*models.Event, bool) {
	e, ok := c.lru.Get(id)
	if ok {
		eventCacheHits.Inc()
		return e, true
	}
	eventCacheMisses.Inc()
	return nil, false
}

func (c *EventCache) set(e *models.Event) { c.lru.Add(e.ID, e) }

// Invalidate entfernt ein Event nach einer Änderung.
func (c *EventCache) Invalidate(id string) { c.lru.Remove(id) }

// Len liefert die Anzahl gecachter Events.
func (c *EventCache) Len() int { return c.lru.Len() }

// EventService verwaltet Events, Themenbereiche, Einreichungsarten und Formularfelder.
type EventService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Cache  *EventCache
	now    func() time.Time
}

func NewEventService(db *gorm.DB, cache *EventCache, log *zap.Logger) *EventService {
	return &EventService{DB: db, Logger: log, Cache: cache, now: time.Now}
}

func activeSorted(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true).Order("sort_order ASC")
}

// Get lädt ein Event (read-through Cache) mit aktiven Bereichen, Typen und Feldern.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := s.Cache.get(id); ok {
		return e, nil
	}
	var event models.Event
	err := s.DB.WithContext(ctx).
		Preload("Areas", activeSorted).
		Preload("PaperTypes", activeSorted).
		Preload("Fields", activeSorted).
		First(&event, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "event")
	}
	s.Cache.set(&event)
	return &event, nil
}

// View liefert ein Event für Mitglieder der Organisation oder globale ADMINs.
func (s *EventService) View(ctx context.Context, sess *auth.Session, id string) (*models.Event, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccessOrg(sess, event.OrganizationID) {
		return nil, forbidden("not a member of this organization")
	}
	return event, nil
}

// List liefert die Events einer Organisation; ohne orgID alle Events der eigenen Organisationen.
func (s *EventService) List(ctx context.Context, sess *auth.Session, orgID string) ([]models.Event, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	query := s.DB.WithContext(ctx).Model(&models.Event{}).Order("created_at DESC")
	switch {
	case orgID != "":
		if !canAccessOrg(sess, orgID) {
			return nil, forbidden("not a member of this organization")
		}
		query = query.Where("organization_id = ?", orgID)
	case !sess.IsAdmin():
		ids := make([]string, 0, len(sess.Memberships))
		for id := range sess.Memberships {
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return []models.Event{}, nil
		}
		query = query.Where("organization_id IN ?", ids)
	}
	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// EventInput sind die änderbaren Eigenschaften eines Events.
type EventInput struct {
	OrganizationID     string     `json:"organizationId"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	Description        string     `json:"description"`
	IsActive           *bool      `json:"isActive"`
	SubmissionStart    *time.Time `json:"submissionStart"`
	SubmissionEnd      *time.Time `json:"submissionEnd"`
	StartDate          *time.Time `json:"startDate"`
	EndDate            *time.Time `json:"endDate"`
	UsesRevisionStatus bool       `json:"usesRevisionStatus"`
	KeywordsMin        int        `json:"keywordsMin"`
	KeywordsMax        int        `json:"keywordsMax"`
	MaxAuthors         int        `json:"maxAuthors"`
}

func (in *EventInput) validate() error {
	verr := &ValidationError{}
	if cleanText(in.Name) == "" {
		verr.Add("name", "is required")
	}
	if in.SubmissionStart != nil && in.SubmissionEnd != nil && in.SubmissionEnd.Before(*in.SubmissionStart) {
		verr.Add("submissionEnd", "must be after submissionStart")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		verr.Add("endDate", "must be after startDate")
	}
	if in.KeywordsMin < 0 || in.KeywordsMax < 0 || in.MaxAuthors < 0 {
		verr.Add("keywordsMin", "limits must not be negative")
	}
	if in.KeywordsMax > 0 && in.KeywordsMin > in.KeywordsMax {
		verr.Add("keywordsMin", "must not exceed keywordsMax")
	}
	return verr.Err()
}

func (in *EventInput) apply(e *models.Event) {
	e.Name = cleanText(in.Name)
	e.Slug = strings.TrimSpace(in.Slug)
	if e.Slug == "" {
		e.Slug = slugify(e.Name)
	}
	e.Description = strings.TrimSpace(in.Description)
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	e.SubmissionStart = in.SubmissionStart
	e.SubmissionEnd = in.SubmissionEnd
	e.StartDate = in.StartDate
	e.EndDate = in.EndDate
	e.UsesRevisionStatus = in.UsesRevisionStatus
	e.KeywordsMin = in.KeywordsMin
	e.KeywordsMax = in.KeywordsMax
	e.MaxAuthors = in.MaxAuthors
}

// Create legt ein Event an (ADMIN/MANAGER der Organisation).
func (s *EventService) Create(ctx context.Context, sess *auth.Session, in EventInput) (*models.Event, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if in.OrganizationID == "" {
		return nil, invalid("organizationId", "is required")
	}
	if !canManage(sess, in.OrganizationID) {
		return nil, forbidden("requires ADMIN or MANAGER role")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var org models.Organization
	if err := s.DB.WithContext(ctx).First(&org, "id = ?", in.OrganizationID).Error; err != nil {
		return nil, notFound(err, "organization")
	}
	event := models.Event{OrganizationID: org.ID, IsActive: true}
	in.apply(&event)
	if err := s.DB.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.Logger.Info("Event created", zap.String("event_id", event.ID), zap.String("organization_id", org.ID))
	return &event, nil
}

// Update ändert die Stammdaten eines Events.
func (s *EventService) Update(ctx context.Context, sess *auth.Session, id string, in EventInput) (*models.Event, error) {
	event, err := s.loadManaged(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.apply(event)
	if err := s.DB.WithContext(ctx).Select("*").Omit("created_at", "organization_id").Updates(event).Error; err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	s.Cache.Invalidate(id)
	return event, nil
}

// loadManaged lädt ein Event ohne Cache und prüft ADMIN/MANAGER-Rechte.
func (s *EventService) loadManaged(ctx context.Context, sess *auth.Session, id string) (*models.Event, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var event models.Event
	if err := s.DB.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "event")
	}
	if !canManage(sess, event.OrganizationID) {
		return nil, forbidden("requires ADMIN or MANAGER role")
	}
	return &event, nil
}

// OptionInput beschreibt einen Themenbereich oder eine Einreichungsart.
type OptionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SortOrder   int    `json:"sortOrder"`
}

// AddArea legt einen Themenbereich an.
func (s *EventService) AddArea(ctx context.Context, sess *auth.Session, eventID string, in OptionInput) (*models.EventArea, error) {
	event, err := s.loadManaged(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}
	if cleanText(in.Name) == "" {
		return nil, invalid("name", "is required")
	}
	area := models.EventArea{EventID: event.ID, Name: cleanText(in.Name), Description: in.Description, SortOrder: in.SortOrder, IsActive: true}
	if err := s.DB.WithContext(ctx).Create(&area).Error; err != nil {
		return nil, fmt.Errorf("create area: %w", err)
	}
	s.Cache.Invalidate(eventID)
	return &area, nil
}

// AddPaperType legt eine Einreichungsart an.
func (s *EventService) AddPaperType(ctx context.Context, sess *auth.Session, eventID string, in OptionInput) (*models.EventPaperType, error) {
	event, err := s.loadManaged(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}
	if cleanText(in.Name) == "" {
		return nil, invalid("name", "is required")
	}
	pt := models.EventPaperType{EventID: event.ID, Name: cleanText(in.Name), Description: in.Description, SortOrder: in.SortOrder, IsActive: true}
	if err := s.DB.WithContext(ctx).Create(&pt).Error; err != nil {
		return nil, fmt.Errorf("create paper type: %w", err)
	}
	s.Cache.Invalidate(eventID)
	return &pt, nil
}

// FieldInput ist die Definition eines dynamischen Formularfelds.
type FieldInput struct {
	Name             string           `json:"name"`
	Label            string           `json:"label"`
	FieldType        models.FieldType `json:"fieldType"`
	Required         bool             `json:"required"`
	MinLength        *int             `json:"minLength"`
	MaxLength        *int             `json:"maxLength"`
	MinWords         *int             `json:"minWords"`
	MaxWords         *int             `json:"maxWords"`
	MaxFileSize      *int64           `json:"maxFileSize"`
	AllowedFileTypes string           `json:"allowedFileTypes"`
	Options          []string         `json:"options"`
	Placeholder      string           `json:"placeholder"`
	HelpText         string           `json:"helpText"`
	SortOrder        int              `json:"sortOrder"`
}

func (in *FieldInput) apply(f *models.EventField) error {
	f.Name = strings.TrimSpace(in.Name)
	f.Label = cleanText(in.Label)
	f.FieldType = models.FieldType(strings.ToUpper(strings.TrimSpace(string(in.FieldType))))
	f.Required = in.Required
	f.MinLength, f.MaxLength = in.MinLength, in.MaxLength
	f.MinWords, f.MaxWords = in.MinWords, in.MaxWords
	f.MaxFileSize = in.MaxFileSize
	f.AllowedFileTypes = in.AllowedFileTypes
	f.Options = nil
	if len(in.Options) > 0 {
		f.Options = datatypes.JSON(mustJSON(in.Options))
	}
	f.Placeholder = in.Placeholder
	f.HelpText = in.HelpText
	f.SortOrder = in.SortOrder
	return ValidateFieldDefinition(f)
}

// AddField legt ein Formularfeld an; Feldnamen sind je Event eindeutig.
func (s *EventService) AddField(ctx context.Context, sess *auth.Session, eventID string, in FieldInput) (*models.EventField, error) {
	event, err := s.loadManaged(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}
	field := models.EventField{EventID: event.ID, IsActive: true}
	if err := in.apply(&field); err != nil {
		return nil, err
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.EventField{}).
		Where("event_id = ? AND name = ? AND is_active = ?", event.ID, field.Name, true).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check field name: %w", err)
	}
	if count > 0 {
		return nil, invalid("name", "already used by another field")
	}
	if err := s.DB.WithContext(ctx).Create(&field).Error; err != nil {
		return nil, fmt.Errorf("create field: %w", err)
	}
	s.Cache.Invalidate(eventID)
	return &field, nil
}

// UpdateField ersetzt die Definition eines Felds.
func (s *EventService) UpdateField(ctx context.Context, sess *auth.Session, eventID, fieldID string, in FieldInput) (*models.EventField, error) {
	event, err := s.loadManaged(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}
	var field models.EventField
	if err := s.DB.WithContext(ctx).First(&field, "id = ? AND event_id = ?", fieldID, event.ID).Error; err != nil {
		return nil, notFound(err, "field")
	}
	if err := in.apply(&field); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Select("*").Omit("created_at").Updates(&field).Error; err != nil {
		return nil, fmt.Errorf("update field: %w", err)
	}
	s.Cache.Invalidate(eventID)
	return &field, nil
}

// DeleteField entfernt ein Feld. Hat es bereits Werte, wird es nur deaktiviert.
func (s *EventService) DeleteField(ctx context.Context, sess *auth.Session, eventID, fieldID string) error {
	event, err := s.loadManaged(ctx, sess, eventID)
	if err != nil {
		return err
	}
	var field models.EventField
	if err := s.DB.WithContext(ctx).First(&field, "id = ? AND event_id = ?", fieldID, event.ID).Error; err != nil {
		return notFound(err, "field")
	}
	var used int64
	if err := s.DB.WithContext(ctx).Model(&models.PaperFieldValue{}).Where("field_id = ?", field.ID).Count(&used).Error; err != nil {
		return fmt.Errorf("count field values: %w", err)
	}
	if used > 0 {
		err = s.DB.WithContext(ctx).Model(&field).Update("is_active", false).Error
	} else {
		err = s.DB.WithContext(ctx).Delete(&field).Error
	}
	if err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	s.Cache.Invalidate(eventID)
	return nil
}

// Window beschreibt den Zustand des Einreichungsfensters.
type Window struct {
	Status        string `json:"status"` // upcoming | open | closed
	DaysRemaining int    `json:"daysRemaining"`
}

const (
	WindowUpcoming = "upcoming"
	WindowOpen     = "open"
	WindowClosed   = "closed"
)

// SubmissionWindow bewertet das Einreichungsfenster zum Zeitpunkt now.
// DaysRemaining zählt bei upcoming bis zum Start, bei open bis zum Ende (aufgerundet).
func SubmissionWindow(e *models.Event, now time.Time) Window {
	switch {
	case e.SubmissionStart != nil && now.Before(*e.SubmissionStart):
		return Window{Status: WindowUpcoming, DaysRemaining: daysUntil(now, *e.SubmissionStart)}
	case e.SubmissionEnd != nil && now.After(*e.SubmissionEnd):
		return Window{Status: WindowClosed}
	case e.SubmissionEnd != nil:
		return Window{Status: WindowOpen, DaysRemaining: daysUntil(now, *e.SubmissionEnd)}
	}
	return Window{Status: WindowOpen}
}

func daysUntil(now, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// Form ist das Formularschema eines Events für den Client.
type Form struct {
	EventID     string                  `json:"eventId"`
	Name        string                  `json:"name"`
	Window      Window                  `json:"window"`
	KeywordsMin int                     `json:"keywordsMin"`
	KeywordsMax int                     `json:"keywordsMax"`
	MaxAuthors  int                     `json:"maxAuthors"`
	Areas       []models.EventArea      `json:"areas"`
	PaperTypes  []models.EventPaperType `json:"paperTypes"`
	Fields      []FormField             `json:"fields"`
}

// Form liefert Felddefinitionen inklusive Widget-Hinweisen.
func (s *EventService) Form(ctx context.Context, sess *auth.Session, id string) (*Form, error) {
	event, err := s.View(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !event.IsActive {
		return nil, fmt.Errorf("%w: event", ErrNotFound)
	}
	form := &Form{
		EventID:     event.ID,
		Name:        event.Name,
		Window:      SubmissionWindow(event, s.now()),
		KeywordsMin: event.KeywordsMin,
		KeywordsMax: event.KeywordsMax,
		MaxAuthors:  event.MaxAuthors,
		Areas:       event.Areas,
		PaperTypes:  event.PaperTypes,
		Fields:      make([]FormField, 0, len(event.Fields)),
	}
	for i := range event.Fields {
		form.Fields = append(form.Fields, formField(&event.Fields[i]))
	}
	return form, nil
}

// fileField liefert das erste aktive FILE-Feld eines Events.
func fileField(e *models.Event) (*models.EventField, bool) {
	for i := range e.Fields {
		if e.Fields[i].FieldType == models.FieldFile && e.Fields[i].IsActive {
			return &e.Fields[i], true
		}
	}
	return nil, false
}
