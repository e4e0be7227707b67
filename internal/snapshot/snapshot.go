package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
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
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/store"
)

var (
	ErrDisabled   = errors.New("snapshots are not configured")
	ErrInProgress = errors.New("a snapshot is already in progress")
)

// objectStore is the subset of the S3 client the manager uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// vacuumer writes a consistent copy of the live database.
type vacuumer interface {
	VacuumInto(ctx context.Context, path string) error
}

// Observer is told the final status of every snapshot attempt.
type Observer interface {
	SnapshotFinished(status string)
}

// Config holds S3-compatible storage settings and the encryption passphrase.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Retention  time.Duration
}

func (c Config) enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

// Manager takes encrypted snapshots of the ledger database and uploads them.
type Manager struct {
	cfg      Config
	db       vacuumer
	records  *store.SnapshotStore
	client   objectStore
	logger   *slog.Logger
	observer Observer

	running sync.Mutex
}

func NewManager(cfg Config, db vacuumer, records *store.SnapshotStore, logger *slog.Logger, observer Observer) *Manager {
	m := &Manager{
		cfg:      cfg,
		db:       db,
		records:  records,
		logger:   logger.With("component", "snapshot"),
		observer: observer,
	}
	if cfg.enabled() {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
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

func (m *Manager) Enabled() bool {
	return m.client != nil
}

// Take copies the database, checks the copy, encrypts it and uploads it.
// Only one snapshot runs at a time; a concurrent call gets ErrInProgress.
func (m *Manager) Take(ctx context.Context) (*model.Snapshot, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}
	if !m.running.TryLock() {
		return nil, ErrInProgress
	}
	defer m.running.Unlock()

	now := time.Now().UTC()
	filename := fmt.Sprintf("laskutin-%s.db.enc", now.Format("20060102T150405Z"))
	key := fmt.Sprintf("snapshots/%s/%s.db.enc", now.Format("2006/01"), uuid.NewString())

	record, err := m.records.Create(ctx, filename, key)
	if err != nil {
		return nil, fmt.Errorf("create snapshot record: %w", err)
	}

	size, err := m.upload(ctx, record)
	if err != nil {
		m.fail(ctx, record.ID, err)
		return nil, err
	}
	if err := m.records.UpdateCompleted(ctx, record.ID, size); err != nil {
		return nil, fmt.Errorf("mark snapshot completed: %w", err)
	}
	m.finished(model.SnapshotStatusCompleted)
	m.logger.Info("snapshot uploaded", "id", record.ID, "key", key, "size_bytes", size)

	if m.cfg.Retention > 0 {
		if err := m.Prune(ctx, now.Add(-m.cfg.Retention)); err != nil {
			m.logger.Warn("prune snapshots", "error", err)
		}
	}
	return m.records.GetByID(ctx, record.ID)
}

func (m *Manager) upload(ctx context.Context, record *model.Snapshot) (int64, error) {
	dir, err := os.MkdirTemp("", "laskutin-snapshot-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	copyPath := filepath.Join(dir, "ledger.db")
	if err := m.db.VacuumInto(ctx, copyPath); err != nil {
		return 0, fmt.Errorf("copy database: %w", err)
	}
	if err := checkIntegrity(ctx, copyPath); err != nil {
		return 0, err
	}

	plaintext, err := os.ReadFile(copyPath)
	if err != nil {
		return 0, fmt.Errorf("read database copy: %w", err)
	}
	sealed, err := Seal(plaintext, m.cfg.Passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	if err := m.records.UpdateStatus(ctx, record.ID, model.SnapshotStatusUploading, ""); err != nil {
		return 0, fmt.Errorf("mark snapshot uploading: %w", err)
	}
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(record.S3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(sealed)), nil
}

func (m *Manager) fail(ctx context.Context, id int64, cause error) {
	m.logger.Error("snapshot failed", "id", id, "error", cause)
	m.finished(model.SnapshotStatusFailed)
	if err := m.records.UpdateStatus(ctx, id, model.SnapshotStatusFailed, cause.Error()); err != nil {
		m.logger.Error("mark snapshot failed", "id", id, "error", err)
	}
}

func (m *Manager) finished(status model.SnapshotStatus) {
	if m.observer != nil {
		m.observer.SnapshotFinished(string(status))
	}
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database copy: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Download streams the encrypted object of a completed snapshot.
func (m *Manager) Download(ctx context.Context, id int64) (io.ReadCloser, *model.Snapshot, error) {
	if m.client == nil {
		return nil, nil, ErrDisabled
	}
	record, err := m.records.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get snapshot: %w", err)
	}
	if record == nil || record.Status != model.SnapshotStatusCompleted {
		return nil, nil, nil
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %w", err)
	}
	return out.Body, record, nil
}

// Prune deletes snapshots created before the cutoff, records first.
func (m *Manager) Prune(ctx context.Context, before time.Time) error {
	if m.client == nil {
		return nil
	}
	keys, err := m.records.DeleteOlderThan(ctx, before)
	if err != nil {
		return fmt.Errorf("delete old snapshot records: %w", err)
	}
	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete snapshot object", "key", key, "error", err)
		}
	}
	return nil
}
