package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/larderapp/larder/internal/database"
	"github.com/larderapp/larder/internal/model"
	"github.com/larderapp/larder/internal/store"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*input.Key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", *input.Key)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func setupManager(t *testing.T) (*Manager, *fakeS3, *store.BackupStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "larder.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backups := store.NewBackupStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m, err := NewManager(Config{
		S3: S3Config{
			Bucket:    "larder-backups",
			Region:    "auto",
			AccessKey: "key",
			SecretKey: "secret",
		},
		DBPath:        dbPath,
		Passphrase:    "correct horse battery staple",
		RetentionDays: 30,
	}, db, backups, logger)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	fake := newFakeS3()
	m.client = fake
	return m, fake, backups
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	m, fake, backups := setupManager(t)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	record, err := backups.GetByID(id)
	if err != nil || record == nil {
		t.Fatalf("backup record missing: %v", err)
	}
	if record.Status != model.BackupStatusComplete {
		t.Errorf("status = %q, want complete", record.Status)
	}
	if record.SizeBytes == 0 {
		t.Error("expected non-zero size")
	}

	data, ok := fake.objects[record.S3Key]
	if !ok {
		t.Fatal("object not uploaded")
	}
	if int64(len(data)) != record.SizeBytes {
		t.Errorf("uploaded %d bytes, recorded %d", len(data), record.SizeBytes)
	}
	// SQLite files start with a fixed header; the upload must not.
	if bytes.HasPrefix(data, []byte("SQLite format 3")) {
		t.Error("uploaded snapshot is not encrypted")
	}
}

func TestRunNowRecordsFailure(t *testing.T) {
	m, fake, backups := setupManager(t)
	fake.putErr = fmt.Errorf("access denied")

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected upload failure")
	}

	list, err := backups.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Errorf("records = %+v", list)
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	m, _, _ := setupManager(t)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	body, size, err := m.Download(context.Background(), id)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if int64(len(data)) != size {
		t.Errorf("read %d bytes, expected %d", len(data), size)
	}
}

func TestDownloadUnknownBackup(t *testing.T) {
	m, _, _ := setupManager(t)
	if _, _, err := m.Download(context.Background(), 999); err == nil {
		t.Fatal("expected error for unknown backup")
	}
}

func TestManagerDisabledWithoutCredentials(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "larder.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewManager(Config{DBPath: dbPath}, db, store.NewBackupStore(db), logger)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.Enabled() {
		t.Error("manager should be disabled without credentials")
	}
	if _, err := m.RunNow(context.Background()); err == nil {
		t.Error("RunNow should fail when disabled")
	}
}
