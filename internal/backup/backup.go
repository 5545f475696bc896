// Package backup uploads encrypted snapshots of the SQLite database to
// S3-compatible storage. The passphrase comes from the environment; the
// snapshot is encrypted with AES-256-GCM under an Argon2id-derived key
// before it leaves the machine.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/larderapp/larder/internal/model"
	"github.com/larderapp/larder/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	ScheduleHour  int // UTC hour of the daily backup
	RetentionDays int
}

// Manager runs scheduled encrypted backups.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	salt   []byte
	logger *slog.Logger

	db      *sql.DB
	backups *store.BackupStore
	client  s3Client

	lastBackup time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewManager creates a backup manager. It is disabled until S3 credentials
// and a passphrase are configured.
func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger) (*Manager, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		logger:  logger,
	}

	if m.Enabled() {
		salt, err := GenerateSalt()
		if err != nil {
			return nil, err
		}
		m.salt = salt
		m.client = newS3Client(cfg.S3)
	}

	return m, nil
}

// Enabled reports whether backups can run with the current configuration.
func (m *Manager) Enabled() bool {
	return m.cfg.S3.Bucket != "" && m.cfg.S3.AccessKey != "" &&
		m.cfg.S3.SecretKey != "" && m.cfg.Passphrase != ""
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start begins the daily backup loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("backups disabled: missing S3 credentials or passphrase")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != m.cfg.ScheduleHour || now.Minute() != 0 {
		return
	}

	m.mu.RLock()
	ranToday := m.lastBackup.Year() == now.Year() && m.lastBackup.YearDay() == now.YearDay()
	m.mu.RUnlock()
	if ranToday {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	if err := m.cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

// RunNow runs a backup immediately.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	salt := m.salt
	m.mu.RUnlock()

	if client == nil {
		return 0, fmt.Errorf("backup not configured")
	}

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("larder-%s.db.enc", timestamp)

	record, err := m.backups.Create(filename, filename)
	if err != nil {
		return 0, fmt.Errorf("create backup record: %w", err)
	}

	if err := m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		m.logger.Warn("backup status not updated", "backup_id", record.ID, "error", err)
	}

	tmpDir := os.TempDir()
	dbCopy := filepath.Join(tmpDir, fmt.Sprintf("larder-backup-%d.db", record.ID))
	encFile := filepath.Join(tmpDir, fmt.Sprintf("larder-backup-%d.db.enc", record.ID))
	defer os.Remove(dbCopy)
	defer os.Remove(encFile)

	// Checkpoint WAL so the file copy is a consistent snapshot.
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("wal checkpoint: %w", err))
	}
	if err := copyFile(m.cfg.DBPath, dbCopy); err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("copy database: %w", err))
	}
	if err := EncryptFile(dbCopy, encFile, m.cfg.Passphrase, salt); err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("encrypt: %w", err))
	}

	encData, err := os.Open(encFile)
	if err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("open encrypted file: %w", err))
	}
	defer encData.Close()

	stat, err := encData.Stat()
	if err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("stat encrypted file: %w", err))
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(record.S3Key),
		Body:          encData,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("upload to s3: %w", err))
	}

	if err := m.backups.UpdateCompleted(record.ID, stat.Size()); err != nil {
		m.logger.Warn("backup completion not recorded", "backup_id", record.ID, "error", err)
	}

	m.mu.Lock()
	m.lastBackup = time.Now().UTC()
	m.mu.Unlock()

	m.logger.Info("backup complete", "backup_id", record.ID, "size_bytes", stat.Size())
	return record.ID, nil
}

func (m *Manager) fail(recordID int64, err error) error {
	if uerr := m.backups.UpdateStatus(recordID, model.BackupStatusFailed, err.Error()); uerr != nil {
		m.logger.Warn("backup failure not recorded", "backup_id", recordID, "error", uerr)
	}
	return err
}

// Download streams an encrypted backup from S3.
func (m *Manager) Download(ctx context.Context, backupID int64) (io.ReadCloser, int64, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil, 0, fmt.Errorf("backup not configured")
	}

	record, err := m.backups.GetByID(backupID)
	if err != nil {
		return nil, 0, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, 0, fmt.Errorf("backup not found")
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("download from s3: %w", err)
	}

	return result.Body, record.SizeBytes, nil
}

// List returns the most recent backup records.
func (m *Manager) List(limit int) ([]model.Backup, error) {
	return m.backups.List(limit)
}

// cleanup deletes backups past the retention period, locally and in S3.
func (m *Manager) cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	retention := m.cfg.RetentionDays
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := time.Now().UTC().AddDate(0, 0, -retention)
	keys, err := m.backups.DeleteOlderThan(before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("stale backup object not deleted", "key", key, "error", err)
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
