package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/laskutin/internal/database"
	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/store"
)

type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	m.deleted = append(m.deleted, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type statusLog struct {
	mu       sync.Mutex
	statuses []string
}

func (s *statusLog) SnapshotFinished(status string) {
	s.mu.Lock()
	s.statuses = append(s.statuses, status)
	s.mu.Unlock()
}

var testConfig = Config{
	Bucket:     "ledger-snapshots",
	AccessKey:  "key",
	SecretKey:  "secret",
	Region:     "auto",
	Passphrase: "correct horse battery staple",
}

func setupManager(t *testing.T, cfg Config) (*Manager, *mockS3Client, *store.SnapshotStore, *statusLog) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ledger := store.NewLedger(db)
	records := store.NewSnapshotStore(ledger)
	obs := &statusLog{}
	m := NewManager(cfg, ledger, records, slog.New(slog.DiscardHandler), obs)
	mock := newMockS3()
	m.client = mock
	return m, mock, records, obs
}

func TestManagerDisabledWithoutConfig(t *testing.T) {
	m := NewManager(Config{}, nil, nil, slog.New(slog.DiscardHandler), nil)
	if m.Enabled() {
		t.Fatal("manager without bucket should be disabled")
	}
	if _, err := m.Take(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("take error = %v, want ErrDisabled", err)
	}
	if _, _, err := m.Download(context.Background(), 1); !errors.Is(err, ErrDisabled) {
		t.Errorf("download error = %v, want ErrDisabled", err)
	}
}

func TestTakeUploadsEncryptedDatabase(t *testing.T) {
	m, mock, _, obs := setupManager(t, testConfig)
	ctx := context.Background()

	sn, err := m.Take(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if sn.Status != model.SnapshotStatusCompleted {
		t.Errorf("status = %s, want completed", sn.Status)
	}

	sealed, ok := mock.objects[sn.S3Key]
	if !ok {
		t.Fatalf("object %q not uploaded", sn.S3Key)
	}
	if int64(len(sealed)) != sn.SizeBytes {
		t.Errorf("size = %d, uploaded %d bytes", sn.SizeBytes, len(sealed))
	}

	plain, err := Open(sealed, testConfig.Passphrase)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("SQLite format 3\x00")) {
		t.Error("decrypted snapshot is not a sqlite database")
	}

	if len(obs.statuses) != 1 || obs.statuses[0] != "completed" {
		t.Errorf("observed statuses = %v", obs.statuses)
	}
}

func TestTakeRecordsUploadFailure(t *testing.T) {
	m, mock, records, obs := setupManager(t, testConfig)
	mock.putErr = errors.New("access denied")
	ctx := context.Background()

	if _, err := m.Take(ctx); err == nil {
		t.Fatal("expected error")
	}

	list, err := records.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("records = %d, want 1", len(list))
	}
	if list[0].Status != model.SnapshotStatusFailed {
		t.Errorf("status = %s, want failed", list[0].Status)
	}
	if list[0].ErrorMessage == "" {
		t.Error("expected error message on failed record")
	}
	if len(obs.statuses) != 1 || obs.statuses[0] != "failed" {
		t.Errorf("observed statuses = %v", obs.statuses)
	}
}

func TestTakeRejectsConcurrentRun(t *testing.T) {
	m, _, _, _ := setupManager(t, testConfig)
	m.running.Lock()
	defer m.running.Unlock()

	if _, err := m.Take(context.Background()); !errors.Is(err, ErrInProgress) {
		t.Errorf("error = %v, want ErrInProgress", err)
	}
}

func TestDownloadReturnsSealedObject(t *testing.T) {
	m, _, _, _ := setupManager(t, testConfig)
	ctx := context.Background()

	sn, err := m.Take(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}

	body, record, err := m.Download(ctx, sn.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()
	if record.ID != sn.ID {
		t.Errorf("record id = %d, want %d", record.ID, sn.ID)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := Open(data, testConfig.Passphrase); err != nil {
		t.Errorf("downloaded object does not decrypt: %v", err)
	}

	body, record, err = m.Download(ctx, 9999)
	if err != nil || body != nil || record != nil {
		t.Errorf("unknown id: body=%v record=%v err=%v", body, record, err)
	}
}

func TestPruneRemovesOldObjects(t *testing.T) {
	m, mock, records, _ := setupManager(t, testConfig)
	ctx := context.Background()

	sn, err := m.Take(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}

	if err := m.Prune(ctx, time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, ok := mock.objects[sn.S3Key]; ok {
		t.Error("object should be deleted")
	}
	list, err := records.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("records = %d, want 0", len(list))
	}
}
