package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paper-portal/auth"
	"paper-portal/models"
	"paper-portal/storage"
)

// PaperService kapselt Anlage, Bearbeitung, Statuswechsel und Begutachtung von Papers.
type PaperService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Events *EventService
	Store  storage.ObjectStore
	now    func() time.Time
}

func NewPaperService(db *gorm.DB, events *EventService, store storage.ObjectStore, log *zap.Logger) *PaperService {
	return &PaperService{DB: db, Logger: log, Events: events, Store: store, now: time.Now}
}

// AuthorInput ist ein Ko-Autor. Der Hauptautor ist immer der Besitzer und wird serverseitig gesetzt.
type AuthorInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
	Institution string `json:"institution" validate:"max=255"`
	IsPresenter bool   `json:"isPresenter"`
}

// PaperInput sind die bearbeitbaren Inhalte eines Papers.
type PaperInput struct {
	EventID               string            `json:"eventId"`
	Title                 string            `json:"title" validate:"required,max=500"`
	Keywords              string            `json:"keywords"`
	AreaID                string            `json:"areaId" validate:"required"`
	PaperTypeID           string            `json:"paperTypeId" validate:"required"`
	MainAuthorIsPresenter bool              `json:"mainAuthorIsPresenter"`
	Authors               []AuthorInput     `json:"authors" validate:"dive"`
	FieldValues           map[string]string `json:"fieldValues"`
}

// PaperView ist ein Paper mit den für den Aufrufer erlaubten Aktionen.
type PaperView struct {
	*models.Paper
	CanEdit            bool                 `json:"canEdit"`
	AllowedTransitions []models.PaperStatus `json:"allowedTransitions"`
}

// PaperResult ist das Ergebnis von Create/Update; Warnings enthält verworfene Keyword-Duplikate.
type PaperResult struct {
	Paper    *models.Paper `json:"paper"`
	Warnings []string      `json:"warnings,omitempty"`
}

// preparedContent sind validierte, normalisierte Inhalte, bereit zum Schreiben.
type preparedContent struct {
	title       string
	keywords    string
	areaID      string
	paperTypeID string
	coAuthors   []AuthorInput
	presenter   bool
	values      map[string]string
	warnings    []string
}

// prepare validiert die Eingaben gegen die Event-Konfiguration.
func prepare(event *models.Event, owner *models.User, in *PaperInput) (*preparedContent, error) {
	in.Title = cleanText(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	verr := &ValidationError{}
	out := &preparedContent{title: in.Title, areaID: in.AreaID, paperTypeID: in.PaperTypeID, presenter: in.MainAuthorIsPresenter}

	if !hasArea(event, in.AreaID) {
		verr.Add("areaId", "unknown area for this event")
	}
	if !hasPaperType(event, in.PaperTypeID) {
		verr.Add("paperTypeId", "unknown paper type for this event")
	}

	out.keywords, out.warnings = NormalizeKeywords(in.Keywords)
	if msg := ValidateKeywords(out.keywords, event.KeywordsMin, event.KeywordsMax); msg != "" {
		verr.Add("keywords", msg)
	}

	presenters := 0
	if in.MainAuthorIsPresenter {
		presenters++
	}
	for _, a := range in.Authors {
		a.Name = cleanText(a.Name)
		a.Email = normalizeEmail(a.Email)
		a.Institution = cleanText(a.Institution)
		if a.Email != "" && a.Email == owner.Email {
			// Hauptautor in der Client-Liste; nur das Presenter-Flag übernehmen
			if a.IsPresenter && !in.MainAuthorIsPresenter {
				out.presenter = true
				presenters++
			}
			continue
		}
		if a.IsPresenter {
			presenters++
		}
		out.coAuthors = append(out.coAuthors, a)
	}
	if presenters > 1 {
		verr.Add("authors", "only one presenter allowed")
	}
	if event.MaxAuthors > 0 && len(out.coAuthors)+1 > event.MaxAuthors {
		verr.Add("authors", fmt.Sprintf("at most %d authors allowed", event.MaxAuthors))
	}

	fieldErrs := ValidateFieldValues(event.Fields, in.FieldValues, FieldValidationOptions{})
	for k, v := range fieldErrs.Fields {
		verr.Add(k, v)
	}
	out.values = storableValues(event, in.FieldValues)

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func hasArea(e *models.Event, id string) bool {
	for _, a := range e.Areas {
		if a.ID == id {
			return true
		}
	}
	return false
}

func hasPaperType(e *models.Event, id string) bool {
	for _, t := range e.PaperTypes {
		if t.ID == id {
			return true
		}
	}
	return false
}

// storableValues behält nur nicht-leere Werte aktiver Nicht-FILE-Felder.
func storableValues(e *models.Event, values map[string]string) map[string]string {
	out := map[string]string{}
	for _, f := range e.Fields {
		if f.FieldType == models.FieldFile {
			continue
		}
		if v := strings.TrimSpace(values[f.ID]); v != "" {
			if f.FieldType == models.FieldText {
				v = cleanText(v)
			} else {
				v = normalizeUnicode(v)
			}
			out[f.ID] = v
		}
	}
	return out
}

// writeContent ersetzt Autoren und Feldwerte eines Papers vollständig.
func writeContent(tx *gorm.DB, paperID string, owner *models.User, c *preparedContent) error {
	if err := tx.Where("paper_id = ?", paperID).Delete(&models.PaperAuthor{}).Error; err != nil {
		return fmt.Errorf("delete authors: %w", err)
	}
	if err := tx.Where("paper_id = ?", paperID).Delete(&models.PaperFieldValue{}).Error; err != nil {
		return fmt.Errorf("delete field values: %w", err)
	}

	authors := []models.PaperAuthor{{
		PaperID:      paperID,
		UserID:       &owner.ID,
		Name:         owner.Name,
		Email:        owner.Email,
		Institution:  owner.Institution,
		IsMainAuthor: true,
		IsPresenter:  c.presenter,
		AuthorOrder:  1,
	}}
	registered, err := usersByEmail(tx, c.coAuthors)
	if err != nil {
		return err
	}
	for i, a := range c.coAuthors {
		author := models.PaperAuthor{
			PaperID:     paperID,
			Name:        a.Name,
			Email:       a.Email,
			Institution: a.Institution,
			IsPresenter: a.IsPresenter,
			AuthorOrder: i + 2,
		}
		if id, ok := registered[a.Email]; ok {
			author.UserID = &id
		}
		authors = append(authors, author)
	}
	if err := tx.Create(&authors).Error; err != nil {
		return fmt.Errorf("create authors: %w", err)
	}

	if len(c.values) > 0 {
		values := make([]models.PaperFieldValue, 0, len(c.values))
		for fieldID, v := range c.values {
			values = append(values, models.PaperFieldValue{PaperID: paperID, FieldID: fieldID, Value: v})
		}
		if err := tx.Create(&values).Error; err != nil {
			return fmt.Errorf("create field values: %w", err)
		}
	}
	return nil
}

// usersByEmail löst Ko-Autoren-E-Mails zu registrierten Benutzern auf.
func usersByEmail(tx *gorm.DB, authors []AuthorInput) (map[string]string, error) {
	var emails []string
	for _, a := range authors {
		if a.Email != "" {
			emails = append(emails, a.Email)
		}
	}
	out := map[string]string{}
	if len(emails) == 0 {
		return out, nil
	}
	var users []models.User
	if err := tx.Select("id", "email").Where("email IN ?", emails).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("resolve co-authors: %w", err)
	}
	for _, u := range users {
		out[u.Email] = u.ID
	}
	return out, nil
}

// Create legt ein Paper im Status DRAFT an.
func (s *PaperService) Create(ctx context.Context, sess *auth.Session, in PaperInput) (*PaperResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if in.EventID == "" {
		return nil, invalid("eventId", "is required")
	}
	event, err := s.Events.Get(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if !canAccessOrg(sess, event.OrganizationID) {
		return nil, forbidden("not a member of the event's organization")
	}
	if !canManage(sess, event.OrganizationID) {
		if !event.IsActive {
			return nil, invalid("eventId", "event is not accepting submissions")
		}
		if SubmissionWindow(event, s.now()).Status != WindowOpen {
			return nil, invalid("eventId", "submission period is not open")
		}
	}
	owner, err := s.user(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	content, err := prepare(event, owner, &in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	paper := models.Paper{
		Title:       content.title,
		Keywords:    content.keywords,
		Status:      models.StatusDraft,
		EventID:     event.ID,
		UserID:      owner.ID,
		AreaID:      content.areaID,
		PaperTypeID: content.paperTypeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&paper).Error; err != nil {
			return fmt.Errorf("create paper: %w", err)
		}
		if err := writeContent(tx, paper.ID, owner, content); err != nil {
			return err
		}
		history := models.PaperHistory{PaperID: paper.ID, Status: models.StatusDraft, Comment: "paper created", UserID: owner.ID, CreatedAt: now}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	papersCreatedCounter.Inc()
	s.Logger.Info("Paper created", zap.String("paper_id", paper.ID), zap.String("event_id", event.ID), zap.String("user_id", owner.ID))

	full, err := s.load(ctx, paper.ID)
	if err != nil {
		return nil, err
	}
	return &PaperResult{Paper: full, Warnings: content.warnings}, nil
}

func (s *PaperService) user(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// load lädt ein Paper inklusive zurückgezogener (Unscoped) mit allen Relationen.
func (s *PaperService) load(ctx context.Context, id string) (*models.Paper, error) {
	var paper models.Paper
	err := s.DB.WithContext(ctx).Unscoped().
		Preload("Area").
		Preload("PaperType").
		Preload("Authors", func(db *gorm.DB) *gorm.DB { return db.Order("author_order ASC") }).
		Preload("FieldValues").
		Preload("FieldValues.Field").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&paper, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "paper")
	}
	return &paper, nil
}

// loadWithEvent lädt Paper (ohne Relationen) und das zugehörige Event.
func (s *PaperService) loadWithEvent(ctx context.Context, id string) (*models.Paper, *models.Event, error) {
	var paper models.Paper
	if err := s.DB.WithContext(ctx).Unscoped().First(&paper, "id = ?", id).Error; err != nil {
		return nil, nil, notFound(err, "paper")
	}
	event, err := s.Events.Get(ctx, paper.EventID)
	if err != nil {
		return nil, nil, err
	}
	return &paper, event, nil
}

// editAccess: ADMIN/MANAGER immer, der Besitzer nur in bearbeitbaren Zuständen.
func editAccess(sess *auth.Session, paper *models.Paper, event *models.Event) error {
	if canManage(sess, event.OrganizationID) {
		return nil
	}
	if paper.UserID != sess.UserID {
		return forbidden("not the owner of this paper")
	}
	if !OwnerCanEdit(paper.Status) {
		return forbidden(fmt.Sprintf("paper in status %s can no longer be edited", paper.Status))
	}
	return nil
}

// actorsFor klassifiziert den Aufrufer für Statuswechsel.
// Am eigenen Paper handelt auch ein Mitglied des Stabs nur als Besitzer.
func actorsFor(sess *auth.Session, paper *models.Paper, event *models.Event) []Actor {
	if paper.UserID == sess.UserID {
		return []Actor{ActorOwner}
	}
	if isOrgStaff(sess, event.OrganizationID) {
		return []Actor{ActorStaff}
	}
	return nil
}

// Get liefert ein Paper für den Besitzer oder einen ADMIN der Organisation.
func (s *PaperService) Get(ctx context.Context, sess *auth.Session, id string) (*PaperView, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	paper, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	event, err := s.Events.Get(ctx, paper.EventID)
	if err != nil {
		return nil, err
	}
	if paper.UserID != sess.UserID && !isOrgAdmin(sess, event.OrganizationID) {
		return nil, forbidden("no access to this paper")
	}
	view := &PaperView{Paper: paper, CanEdit: editAccess(sess, paper, event) == nil, AllowedTransitions: []models.PaperStatus{}}
	seen := map[models.PaperStatus]bool{}
	for _, actor := range actorsFor(sess, paper, event) {
		for _, st := range NextStatuses(paper.Status, actor, event.UsesRevisionStatus) {
			if !seen[st] {
				seen[st] = true
				view.AllowedTransitions = append(view.AllowedTransitions, st)
			}
		}
	}
	return view, nil
}

// PaperFilter sind die Listenparameter.
type PaperFilter struct {
	Scope          string             `form:"scope"` // mine | organization
	OrganizationID string             `form:"organizationId"`
	EventID        string             `form:"eventId"`
	Status         models.PaperStatus `form:"status"`
	Search         string             `form:"search"`
	Pagination
}

const (
	ScopeMine         = "mine"
	ScopeOrganization = "organization"
)

// List liefert eigene Papers oder (ADMIN/MANAGER) alle Papers einer Organisation.
func (s *PaperService) List(ctx context.Context, sess *auth.Session, f PaperFilter) (Page[models.Paper], error) {
	if err := requireSession(sess); err != nil {
		return Page[models.Paper]{}, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return Page[models.Paper]{}, invalid("status", "unknown status")
	}
	p := f.Pagination.normalize()
	query := s.DB.WithContext(ctx).Model(&models.Paper{})
	withOwner := false

	switch f.Scope {
	case "", ScopeMine:
		query = query.Where("papers.user_id = ?", sess.UserID)
		if f.Status == models.StatusWithdrawn {
			query = query.Unscoped()
		}
	case ScopeOrganization:
		if f.OrganizationID == "" {
			return Page[models.Paper]{}, invalid("organizationId", "is required")
		}
		if !canManage(sess, f.OrganizationID) {
			return Page[models.Paper]{}, forbidden("requires ADMIN or MANAGER role")
		}
		query = query.Unscoped().
			Where("papers.event_id IN (?)", s.DB.Model(&models.Event{}).Select("id").Where("organization_id = ?", f.OrganizationID))
		withOwner = true
	default:
		return Page[models.Paper]{}, invalid("scope", "must be mine or organization")
	}
	if f.EventID != "" {
		query = query.Where("papers.event_id = ?", f.EventID)
	}
	if f.Status != "" {
		query = query.Where("papers.status = ?", f.Status)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		query = query.Where("LOWER(papers.title) LIKE ?", "%"+strings.ToLower(term)+"%")
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return Page[models.Paper]{}, fmt.Errorf("count papers: %w", err)
	}
	if withOwner {
		query = query.Preload("User")
	}
	var papers []models.Paper
	if err := query.Preload("Area").Preload("PaperType").
		Order("papers.created_at DESC").Offset(p.offset()).Limit(p.PageSize).
		Find(&papers).Error; err != nil {
		return Page[models.Paper]{}, fmt.Errorf("list papers: %w", err)
	}
	return newPage(papers, total, p), nil
}

// Update ersetzt Inhalte, Autoren und Feldwerte in einer Transaktion.
func (s *PaperService) Update(ctx context.Context, sess *auth.Session, id string, in PaperInput) (*PaperResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	paper, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := editAccess(sess, paper, event); err != nil {
		return nil, err
	}
	owner, err := s.user(ctx, paper.UserID)
	if err != nil {
		return nil, err
	}
	content, err := prepare(event, owner, &in)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Model(&models.Paper{}).Where("id = ?", paper.ID).Updates(map[string]any{
			"title":         content.title,
			"keywords":      content.keywords,
			"area_id":       content.areaID,
			"paper_type_id": content.paperTypeID,
			"updated_at":    s.now(),
		})
		if res.Error != nil {
			return fmt.Errorf("update paper: %w", res.Error)
		}
		return writeContent(tx, paper.ID, owner, content)
	})
	if err != nil {
		return nil, err
	}
	full, err := s.load(ctx, paper.ID)
	if err != nil {
		return nil, err
	}
	return &PaperResult{Paper: full, Warnings: content.warnings}, nil
}

// Delete entfernt ein Paper samt Autoren, Feldwerten, Verlauf und Gutachten.
// Besitzer nur im Status DRAFT, ADMIN/MANAGER jederzeit.
func (s *PaperService) Delete(ctx context.Context, sess *auth.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	paper, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(sess, event.OrganizationID) {
		if paper.UserID != sess.UserID {
			return forbidden("not the owner of this paper")
		}
		if paper.Status != models.StatusDraft {
			return forbidden("only drafts can be deleted")
		}
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dep := range []any{&models.PaperReview{}, &models.PaperHistory{}, &models.PaperFieldValue{}, &models.PaperAuthor{}} {
			if err := tx.Where("paper_id = ?", paper.ID).Delete(dep).Error; err != nil {
				return fmt.Errorf("delete %T: %w", dep, err)
			}
		}
		if err := tx.Unscoped().Delete(&models.Paper{}, "id = ?", paper.ID).Error; err != nil {
			return fmt.Errorf("delete paper: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.Info("Paper deleted", zap.String("paper_id", paper.ID), zap.String("by", sess.UserID))
	if paper.FilePath != "" && s.Store != nil {
		if err := s.Store.Delete(ctx, paper.FilePath); err != nil {
			s.Logger.Warn("Failed to delete paper file", zap.String("paper_id", paper.ID), zap.String("key", paper.FilePath), zap.Error(err))
		}
	}
	return nil
}

// Submit reicht einen Entwurf ein (DRAFT -> PENDING, nur der Besitzer).
func (s *PaperService) Submit(ctx context.Context, sess *auth.Session, id, comment string) (*models.Paper, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	paper, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper.UserID != sess.UserID {
		return nil, forbidden("only the owner can submit a paper")
	}
	return s.submit(ctx, sess, paper, event, comment)
}

func (s *PaperService) submit(ctx context.Context, sess *auth.Session, paper *models.Paper, event *models.Event, comment string) (*models.Paper, error) {
	if err := Transition(paper.Status, models.StatusPending, ActorOwner, event.UsesRevisionStatus); err != nil {
		return nil, err
	}
	if err := s.checkSubmittable(ctx, paper, event); err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, paper, models.StatusPending, sess.UserID, comment); err != nil {
		return nil, err
	}
	return s.load(ctx, paper.ID)
}

// checkSubmittable: Fenster offen, Pflichtfelder gefüllt, Datei vorhanden falls das Event ein FILE-Feld hat.
func (s *PaperService) checkSubmittable(ctx context.Context, paper *models.Paper, event *models.Event) error {
	if !event.IsActive || SubmissionWindow(event, s.now()).Status != WindowOpen {
		return invalid("event", "submission period is not open")
	}
	var stored []models.PaperFieldValue
	if err := s.DB.WithContext(ctx).Where("paper_id = ?", paper.ID).Find(&stored).Error; err != nil {
		return fmt.Errorf("load field values: %w", err)
	}
	active := map[string]bool{}
	for _, f := range event.Fields {
		active[f.ID] = true
	}
	values := map[string]string{}
	for _, v := range stored {
		if active[v.FieldID] {
			values[v.FieldID] = v.Value
		}
	}
	verr := ValidateFieldValues(event.Fields, values, FieldValidationOptions{RequireAll: true, HasFile: paper.HasFile()})
	if msg := ValidateKeywords(paper.Keywords, event.KeywordsMin, event.KeywordsMax); msg != "" {
		verr.Add("keywords", msg)
	}
	if _, ok := fileField(event); ok && !paper.HasFile() {
		verr.Add("file", "a file must be uploaded before submission")
	}
	return verr.Err()
}

// ChangeStatus führt einen beliebigen Statuswechsel aus, sofern Kante und Akteur passen.
func (s *PaperService) ChangeStatus(ctx context.Context, sess *auth.Session, id string, to models.PaperStatus, comment string) (*models.Paper, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	paper, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	actors := actorsFor(sess, paper, event)
	if len(actors) == 0 {
		return nil, forbidden("no access to this paper")
	}
	if to == models.StatusPending && paper.UserID == sess.UserID {
		return s.submit(ctx, sess, paper, event, comment)
	}
	var firstErr error
	allowed := false
	for _, actor := range actors {
		err := Transition(paper.Status, to, actor, event.UsesRevisionStatus)
		if err == nil {
			allowed = true
			break
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if !allowed {
		return nil, firstErr
	}
	if err := s.applyTransition(ctx, paper, to, sess.UserID, comment); err != nil {
		return nil, err
	}
	return s.load(ctx, paper.ID)
}

// Withdraw zieht ein Paper zurück.
func (s *PaperService) Withdraw(ctx context.Context, sess *auth.Session, id, comment string) (*models.Paper, error) {
	return s.ChangeStatus(ctx, sess, id, models.StatusWithdrawn, comment)
}

// applyTransition schreibt Status und genau einen Verlaufseintrag atomar.
// Der Status im WHERE verhindert, dass parallele Wechsel sich überschreiben.
func (s *PaperService) applyTransition(ctx context.Context, paper *models.Paper, to models.PaperStatus, userID, comment string) error {
	now := s.now()
	from := paper.Status
	updates := map[string]any{"status": to, "updated_at": now}
	switch to {
	case models.StatusPending:
		updates["submitted_at"] = now
	case models.StatusWithdrawn:
		updates["deleted_at"] = now
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Model(&models.Paper{}).Where("id = ? AND status = ?", paper.ID, from).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: paper status was changed concurrently", ErrConflict)
		}
		entry := models.PaperHistory{PaperID: paper.ID, Status: to, Comment: strings.TrimSpace(comment), UserID: userID, CreatedAt: now}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	statusTransitions.WithLabelValues(string(from), string(to)).Inc()
	s.Logger.Info("Paper status changed",
		zap.String("paper_id", paper.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("by", userID))
	return nil
}

// History liefert den Statusverlauf (Besitzer, Staff der Organisation, globale ADMINs).
func (s *PaperService) History(ctx context.Context, sess *auth.Session, id string) ([]models.PaperHistory, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	paper, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper.UserID != sess.UserID && !isOrgStaff(sess, event.OrganizationID) {
		return nil, forbidden("no access to this paper")
	}
	var history []models.PaperHistory
	if err := s.DB.WithContext(ctx).Preload("User").Where("paper_id = ?", paper.ID).
		Order("created_at ASC").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// ReviewInput ist ein Gutachten.
type ReviewInput struct {
	Score          int                   `json:"score" validate:"gte=1,lte=5"`
	Recommendation models.Recommendation `json:"recommendation" validate:"required,oneof=ACCEPT MINOR_REVISION MAJOR_REVISION REJECT"`
	Comment        string                `json:"comment"`
}

// SaveReview legt das Gutachten des Aufrufers an oder aktualisiert es.
func (s *PaperService) SaveReview(ctx context.Context, sess *auth.Session, id string, in ReviewInput) (*models.PaperReview, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	paper, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isOrgStaff(sess, event.OrganizationID) {
		return nil, forbidden("requires REVIEWER, MANAGER or ADMIN role")
	}
	if paper.UserID == sess.UserID {
		return nil, forbidden("authors cannot review their own paper")
	}
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	if paper.Status != models.StatusUnderReview {
		return nil, invalid("status", "paper is not under review")
	}
	review := models.PaperReview{
		PaperID:        paper.ID,
		ReviewerID:     sess.UserID,
		Score:          in.Score,
		Recommendation: in.Recommendation,
		Comment:        strings.TrimSpace(in.Comment),
	}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "paper_id"}, {Name: "reviewer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "recommendation", "comment", "updated_at"}),
	}).Create(&review).Error
	if err != nil {
		return nil, fmt.Errorf("save review: %w", err)
	}
	var saved models.PaperReview
	if err := s.DB.WithContext(ctx).Where("paper_id = ? AND reviewer_id = ?", paper.ID, sess.UserID).Take(&saved).Error; err != nil {
		return nil, fmt.Errorf("load review: %w", err)
	}
	return &saved, nil
}

// Reviews listet alle Gutachten eines Papers (Staff der Organisation).
func (s *PaperService) Reviews(ctx context.Context, sess *auth.Session, id string) ([]models.PaperReview, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	paper, event, err := s.loadWithEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isOrgStaff(sess, event.OrganizationID) {
		return nil, forbidden("requires REVIEWER, MANAGER or ADMIN role")
	}
	var reviews []models.PaperReview
	if err := s.DB.WithContext(ctx).Preload("Reviewer").Where("paper_id = ?", paper.ID).
		Order("created_at ASC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
