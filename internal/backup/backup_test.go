package backup

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/timeclock/internal/database"
	"github.com/dukerupert/timeclock/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func setupManager(t *testing.T, mock *mockS3Client) (*Manager, *store.BackupStore) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "timeclock.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bs := store.NewBackupStore(db)
	m := NewManager(Config{
		S3:     S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		DBPath: dbPath,
	}, db, bs, nil, nil)
	m.client = mock
	return m, bs
}

func TestManagerStateLifecycle(t *testing.T) {
	// Without S3 config -> disabled
	m := NewManager(Config{}, nil, nil, nil, nil)
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if m.Enabled() {
		t.Error("disabled manager reports enabled")
	}

	// With S3 config -> idle
	m2 := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, nil, nil, nil)
	if m2.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m2.Status().State, StateIdle)
	}
}

func TestRunNowUploadsSnapshot(t *testing.T) {
	mock := newMockS3()
	m, bs := setupManager(t, mock)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}

	mock.mu.Lock()
	objectCount := len(mock.objects)
	var key string
	var size int
	for k, data := range mock.objects {
		key, size = k, len(data)
	}
	mock.mu.Unlock()

	if objectCount != 1 {
		t.Fatalf("uploaded objects = %d, want 1", objectCount)
	}
	if !strings.HasPrefix(key, "snapshots/") || !strings.HasSuffix(key, ".db") {
		t.Errorf("object key = %q", key)
	}
	if size == 0 {
		t.Error("uploaded snapshot is empty")
	}

	backups, err := bs.List(10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 1 || backups[0].ID != id {
		t.Fatalf("backups = %+v, want one with id %d", backups, id)
	}
	if backups[0].State != "completed" {
		t.Errorf("state = %q, want completed", backups[0].State)
	}
	if backups[0].SizeBytes != int64(size) {
		t.Errorf("size = %d, want %d", backups[0].SizeBytes, size)
	}
	if backups[0].FinishedAt == nil {
		t.Error("finished_at not set")
	}

	if m.Status().State != StateIdle || m.Status().LastBackup == nil {
		t.Errorf("status after run = %+v", m.Status())
	}
}

func TestRunNowUploadFailureRecorded(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("bucket gone")
	m, bs := setupManager(t, mock)

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}

	backups, err := bs.List(10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("backups = %d, want 1 failed row", len(backups))
	}
	if backups[0].State != "failed" {
		t.Errorf("state = %q, want failed", backups[0].State)
	}
	if backups[0].Error == "" {
		t.Error("error message not recorded")
	}
	if m.Status().State != StateError {
		t.Errorf("status = %q, want %q", m.Status().State, StateError)
	}
}

func TestCleanupDeletesOldObjects(t *testing.T) {
	mock := newMockS3()
	m, bs := setupManager(t, mock)

	oldKey := "snapshots/2020-01-01/old.db"
	id, err := bs.Begin(oldKey, time.Now().UTC().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	bs.MarkCompleted(id, 100, time.Now().UTC().AddDate(0, 0, -90))
	mock.objects[oldKey] = []byte("stale")

	if err := m.Cleanup(context.Background(), 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	mock.mu.Lock()
	_, stillThere := mock.objects[oldKey]
	mock.mu.Unlock()
	if stillThere {
		t.Error("old object not deleted from storage")
	}

	backups, err := bs.List(10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("backups = %d, want 0 after cleanup", len(backups))
	}
}

func TestManagerStatusCallback(t *testing.T) {
	var received []Status
	var mu sync.Mutex
	cb := func(s Status) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	}

	m := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, nil, nil, cb)

	m.setStatus(Status{State: StateRunning, InProgress: true})
	m.setStatus(Status{State: StateIdle})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d callbacks, want 2", len(received))
	}
	if received[0].State != StateRunning || received[1].State != StateIdle {
		t.Errorf("callback states = %q, %q", received[0].State, received[1].State)
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := NewManager(Config{
		S3:       S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Interval: time.Hour,
	}, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, nil)

	m.Start(context.Background()) // no-op for disabled state
	m.Stop()                      // should not block
}

func TestFromSettings(t *testing.T) {
	cfg, interval := FromSettings(map[string]string{
		"s3_bucket":             "timeclock-backups",
		"s3_region":             "us-west-2",
		"s3_access_key":         "key",
		"s3_secret_key":         "secret",
		"backup_interval_hours": "6",
	})
	if cfg.Bucket != "timeclock-backups" || cfg.Region != "us-west-2" {
		t.Errorf("cfg = %+v", cfg)
	}
	if interval != 6*time.Hour {
		t.Errorf("interval = %v, want 6h", interval)
	}

	_, interval = FromSettings(map[string]string{})
	if interval != 0 {
		t.Errorf("interval = %v, want 0 for missing setting", interval)
	}
}
