package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-portal/auth"
	"paper-portal/config"
	"paper-portal/models"
	"paper-portal/storage"
)

// UploadService speichert Paper-Dateien im Objektspeicher und danach die Metadaten in der Datenbank.
type UploadService struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Store     storage.ObjectStore
	Papers    *PaperService
	MaxBytes  int64
	FileTypes []string
	now       func() time.Time
}

func NewUploadService(db *gorm.DB, papers *PaperService, store storage.ObjectStore, cfg *config.Config, log *zap.Logger) *UploadService {
	return &UploadService{
		DB:        db,
		Logger:    log,
		Store:     store,
		Papers:    papers,
		MaxBytes:  cfg.MaxUploadBytes,
		FileTypes: cfg.FileTypes(),
		now:       time.Now,
	}
}

// Upload nimmt eine Datei aus einem Multipart-Formular entgegen.
func (s *UploadService) Upload(ctx context.Context, sess *auth.Session, paperID string, fh *multipart.FileHeader) (*models.Paper, error) {
	if fh == nil {
		return nil, invalid("file", "is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return s.Save(ctx, sess, paperID, fh.Filename, f)
}

// limits liefert Größe und Endungen aus dem FILE-Feld des Events, sonst die Voreinstellungen.
func (s *UploadService) limits(event *models.Event) (int64, []string) {
	maxBytes, types := s.MaxBytes, s.FileTypes
	if ff, ok := fileField(event); ok {
		if ff.MaxFileSize != nil {
			maxBytes = *ff.MaxFileSize
		}
		if t := config.SplitList(ff.AllowedFileTypes); len(t) > 0 {
			types = t
		}
	}
	return maxBytes, types
}

// Save prüft und speichert die Datei. Erst nach erfolgreichem Speichern werden die Metadaten geschrieben;
// schlägt das fehl, wird das neue Objekt wieder gelöscht. Die vorherige Datei wird nach dem Commit entfernt.
func (s *UploadService) Save(ctx context.Context, sess *auth.Session, paperID, filename string, r io.Reader) (*models.Paper, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	paper, event, err := s.Papers.loadWithEvent(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if err := editAccess(sess, paper, event); err != nil {
		return nil, err
	}

	maxBytes, types := s.limits(event)
	name := cleanText(filepath.Base(filename))
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if name == "" || name == "." || ext == "" || !slices.Contains(types, ext) {
		fileUploads.WithLabelValues("rejected").Inc()
		return nil, invalid("file", fmt.Sprintf("file type not allowed (allowed: %s)", strings.Join(types, ", ")))
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		fileUploads.WithLabelValues("rejected").Inc()
		return nil, invalid("file", "file is empty")
	}
	if int64(len(data)) > maxBytes {
		fileUploads.WithLabelValues("rejected").Inc()
		return nil, invalid("file", fmt.Sprintf("file exceeds the maximum size of %d bytes", maxBytes))
	}
	mt := mimetype.Detect(data)
	if !matchesExtension(mt, ext) {
		fileUploads.WithLabelValues("rejected").Inc()
		return nil, invalid("file", fmt.Sprintf("file content (%s) does not match extension .%s", mt.String(), ext))
	}

	key := fmt.Sprintf("papers/%s/%s/%s.%s", event.ID, paper.ID, uuid.NewString(), ext)
	url, err := s.Store.Put(ctx, key, data, mt.String())
	if err != nil {
		fileUploads.WithLabelValues("failed").Inc()
		s.Logger.Error("Failed to store paper file", zap.String("paper_id", paper.ID), zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	err = s.DB.WithContext(ctx).Unscoped().Model(&models.Paper{}).Where("id = ?", paper.ID).Updates(map[string]any{
		"file_name":  name,
		"file_size":  int64(len(data)),
		"file_url":   url,
		"file_path":  key,
		"updated_at": s.now(),
	}).Error
	if err != nil {
		fileUploads.WithLabelValues("failed").Inc()
		if derr := s.Store.Delete(ctx, key); derr != nil {
			s.Logger.Warn("Failed to remove orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("save file metadata: %w", err)
	}

	if paper.FilePath != "" && paper.FilePath != key {
		if err := s.Store.Delete(ctx, paper.FilePath); err != nil {
			s.Logger.Warn("Failed to delete replaced paper file", zap.String("paper_id", paper.ID), zap.String("key", paper.FilePath), zap.Error(err))
		}
	}
	fileUploads.WithLabelValues("stored").Inc()
	s.Logger.Info("Paper file stored", zap.String("paper_id", paper.ID), zap.String("key", key), zap.Int("bytes", len(data)))
	return s.Papers.load(ctx, paper.ID)
}

// matchesExtension prüft den erkannten MIME-Typ samt Elterntypen gegen die Dateiendung.
func matchesExtension(mt *mimetype.MIME, ext string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Extension() == "."+ext {
			return true
		}
	}
	return false
}
