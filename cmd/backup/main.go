package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"paper-portal/storage"
)

// BackupConfig: Datenbank des Portals und Ziel-Bucket für die Dumps.
type BackupConfig struct {
	PostgresHost     string `envconfig:"DB_HOST" required:"true"`
	PostgresPort     string `envconfig:"DB_PORT" default:"5432"`
	PostgresUser     string `envconfig:"DB_USER" required:"true"`
	PostgresPassword string `envconfig:"DB_PASSWORD" required:"true"`
	PostgresDB       string `envconfig:"DB_NAME" required:"true"`
	BackupBucket     string `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	BackupEndpoint   string `envconfig:"BACKUP_S3_ENDPOINT" required:"true"`
	BackupAccessKey  string `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	BackupSecretKey  string `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	BackupRegion     string `envconfig:"BACKUP_S3_REGION" default:"eu-central-1"`
	KeepBackups      int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

const backupPrefix = "portal-backup-"

// backupStore ist der Teil des Objektspeichers, den Upload und Rotation brauchen.
type backupStore interface {
	storage.ObjectStore
	List(ctx context.Context, prefix string) ([]storage.Object, error)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	_ = godotenv.Load()
	var cfg BackupConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}
	logging.Info("Starte Backup-Prozess...", zap.String("db", cfg.PostgresDB))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	dumpData, err := createDump(ctx, cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des DB-Dumps", zap.Error(err))
	}

	store, err := storage.NewS3Store(ctx, storage.S3Options{
		Endpoint:  cfg.BackupEndpoint,
		Region:    cfg.BackupRegion,
		AccessKey: cfg.BackupAccessKey,
		SecretKey: cfg.BackupSecretKey,
		Bucket:    cfg.BackupBucket,
	})
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}

	key, err := upload(ctx, store, dumpData, time.Now())
	if err != nil {
		logging.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logging.Info("Backup hochgeladen", zap.String("bucket", cfg.BackupBucket), zap.String("key", key), zap.Int("bytes", len(dumpData)))

	deleted, err := rotateBackups(ctx, store, cfg.KeepBackups, logging)
	if err != nil {
		logging.Fatal("Fehler bei der Rotation alter Backups", zap.Error(err))
	}
	logging.Info("Backup-Prozess erfolgreich abgeschlossen.", zap.Int("deleted", deleted))
}

// createDump ruft pg_dump auf und komprimiert die Ausgabe mit gzip.
func createDump(ctx context.Context, cfg BackupConfig) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.PostgresHost,
		"-p", cfg.PostgresPort,
		"-U", cfg.PostgresUser,
		"-d", cfg.PostgresDB,
		"-w", // Passwort wird über PGPASSWORD bereitgestellt
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.PostgresPassword))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start pg_dump: %w", err)
	}
	data, err := compress(stdout)
	if err != nil {
		_ = cmd.Wait()
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("pg_dump: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return data, nil
}

func compress(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, r); err != nil {
		return nil, fmt.Errorf("compress dump: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, fmt.Errorf("compress dump: %w", err)
	}
	return buf.Bytes(), nil
}

func backupKey(now time.Time) string {
	return fmt.Sprintf("%s%s.sql.gz", backupPrefix, now.UTC().Format("2006-01-02T15-04-05Z"))
}

func upload(ctx context.Context, store backupStore, data []byte, now time.Time) (string, error) {
	key := backupKey(now)
	if _, err := store.Put(ctx, key, data, "application/gzip"); err != nil {
		return "", err
	}
	return key, nil
}

// rotateBackups behält die neuesten keep Backups. Die Keys enthalten einen UTC-Zeitstempel,
// die lexikalische Reihenfolge ist daher chronologisch.
func rotateBackups(ctx context.Context, store backupStore, keep int, logging *zap.Logger) (int, error) {
	objects, err := store.List(ctx, backupPrefix)
	if err != nil {
		return 0, err
	}
	if len(objects) <= keep {
		logging.Info("Keine Rotation nötig", zap.Int("backups", len(objects)), zap.Int("keep", keep))
		return 0, nil
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })

	deleted := 0
	for _, obj := range objects[keep:] {
		logging.Info("Lösche altes Backup", zap.String("key", obj.Key))
		if err := store.Delete(ctx, obj.Key); err != nil {
			logging.Error("Fehler beim Löschen", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
