package services

import (
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-portal/auth"
	"paper-portal/database"
	"paper-portal/models"
	"paper-portal/storage"
)

// newTestDB öffnet eine eigene In-Memory-SQLite-Datenbank je Test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// fixture bündelt die Stammdaten der meisten Service-Tests.
type fixture struct {
	db    *gorm.DB
	org   models.Organization
	event models.Event
	area  models.EventArea
	ptype models.EventPaperType
	owner models.User
	admin models.User
	other models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db}

	f.org = models.Organization{Name: "Sociedade de Física", Slug: "sbf", IsActive: true}
	require.NoError(t, db.Create(&f.org).Error)

	start := fixedNow.Add(-24 * time.Hour)
	end := fixedNow.Add(10 * 24 * time.Hour)
	f.event = models.Event{
		OrganizationID:  f.org.ID,
		Name:            "Encontro 2025",
		Slug:            "encontro-2025",
		IsActive:        true,
		SubmissionStart: &start,
		SubmissionEnd:   &end,
		KeywordsMin:     1,
		KeywordsMax:     5,
	}
	require.NoError(t, db.Create(&f.event).Error)
	f.area = models.EventArea{EventID: f.event.ID, Name: "Óptica", IsActive: true}
	require.NoError(t, db.Create(&f.area).Error)
	f.ptype = models.EventPaperType{EventID: f.event.ID, Name: "Poster", IsActive: true}
	require.NoError(t, db.Create(&f.ptype).Error)

	f.owner = f.user(t, "owner@example.org", models.MemberRoleMember)
	f.admin = f.user(t, "admin@example.org", models.MemberRoleAdmin)
	f.other = f.user(t, "other@example.org", models.MemberRoleMember)
	return f
}

// user legt einen aktiven Benutzer mit Passwort "secret123" und Mitgliedschaft an.
func (f *fixture) user(t *testing.T, email string, role models.MemberRole) models.User {
	t.Helper()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	u := models.User{Name: strings.Split(email, "@")[0], Email: email, PasswordHash: hash, Role: models.UserRoleUser, IsActive: true}
	require.NoError(t, f.db.Create(&u).Error)
	if role != "" {
		require.NoError(t, f.db.Create(&models.OrganizationMember{OrganizationID: f.org.ID, UserID: u.ID, Role: role}).Error)
	}
	return u
}

// session baut die Session so, wie die Middleware sie aus der Datenbank lädt.
func (f *fixture) session(t *testing.T, u models.User) *auth.Session {
	t.Helper()
	s, err := LoadSession(f.db, u.ID)
	require.NoError(t, err)
	return s
}

func (f *fixture) addField(t *testing.T, field models.EventField) models.EventField {
	t.Helper()
	field.EventID = f.event.ID
	field.IsActive = true
	require.NoError(t, f.db.Create(&field).Error)
	return field
}

func nopLogger() *zap.Logger { return zap.NewNop() }

// tickingClock startet bei fixedNow und rückt pro Aufruf eine Sekunde vor.
func tickingClock() func() time.Time {
	current := fixedNow
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

type testServices struct {
	events  *EventService
	papers  *PaperService
	uploads *UploadService
	tokens  *TokenService
	store   *storage.MemoryStore
}

func (f *fixture) services() *testServices {
	clock := tickingClock()
	store := storage.NewMemoryStore("http://files.test")
	events := NewEventService(f.db, NewEventCache(16, time.Minute), nopLogger())
	events.now = clock
	papers := NewPaperService(f.db, events, store, nopLogger())
	papers.now = clock
	uploads := &UploadService{
		DB:        f.db,
		Logger:    nopLogger(),
		Store:     store,
		Papers:    papers,
		MaxBytes:  1 << 20,
		FileTypes: []string{"pdf", "docx"},
		now:       clock,
	}
	tokens := NewTokenService(f.db, nopLogger())
	tokens.now = fixedClock
	return &testServices{events: events, papers: papers, uploads: uploads, tokens: tokens, store: store}
}

// draftInput ist ein gültiger Entwurf für das Fixture-Event.
func (f *fixture) draftInput() PaperInput {
	return PaperInput{
		EventID:     f.event.ID,
		Title:       "Interferometria  de  baixo custo",
		Keywords:    "óptica, lasers",
		AreaID:      f.area.ID,
		PaperTypeID: f.ptype.ID,
	}
}

func (f *fixture) historyCount(t *testing.T, paperID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.PaperHistory{}).Where("paper_id = ?", paperID).Count(&n).Error)
	return n
}

func (f *fixture) status(t *testing.T, paperID string) models.PaperStatus {
	t.Helper()
	var p models.Paper
	require.NoError(t, f.db.Unscoped().First(&p, "id = ?", paperID).Error)
	return p.Status
}

func (f *fixture) paperFile(t *testing.T, paperID string) string {
	t.Helper()
	var p models.Paper
	require.NoError(t, f.db.Unscoped().First(&p, "id = ?", paperID).Error)
	return p.FileURL
}
