// Package archive moves aged chat messages out of the live database into
// S3-compatible object storage, one JSON batch per stream per run.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"streamhub/internal/model"
	"streamhub/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds archiver configuration.
type Config struct {
	S3        S3Config
	Retention time.Duration
	Interval  time.Duration
	BatchSize int
}

// State represents the archiver state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Run statuses recorded per stream batch.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Status holds the current archiver status.
type Status struct {
	State   State      `json:"state"`
	LastRun *time.Time `json:"last_run,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// StatusCallback is called whenever the archiver state changes.
type StatusCallback func(Status)

// Manager archives old messages on a schedule. Disabled when S3 credentials
// are missing.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	messages *store.MessageStore
	runs     *store.ArchiveStore
	client   s3Client
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates an archive manager.
func NewManager(cfg Config, messages *store.MessageStore, runs *store.ArchiveStore, logger *slog.Logger, callback StatusCallback) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}

	m := &Manager{
		cfg:      cfg,
		messages: messages,
		runs:     runs,
		logger:   logger,
		callback: callback,
		status:   Status{State: StateDisabled},
	}

	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
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

// Start begins the scheduled archive loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled archive run failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the archiver.
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

// Status returns the current archiver status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// RunNow archives every stream with messages older than the retention window
// and returns the total number of messages moved. A failing stream is
// recorded and skipped; the run continues.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return 0, fmt.Errorf("archiver not configured: S3 credentials missing")
	}

	m.setStatus(Status{State: StateRunning})

	cutoff := time.Now().UTC().Add(-m.cfg.Retention)
	streamIDs, err := m.messages.StreamIDsWithMessagesBefore(cutoff)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, err
	}

	var total int64
	var lastErr error
	for _, streamID := range streamIDs {
		n, err := m.archiveStream(ctx, streamID, cutoff)
		total += n
		if err != nil {
			lastErr = err
			m.logger.Error("archive stream failed", "stream_id", streamID, "error", err)
		}
	}

	now := time.Now().UTC()
	if lastErr != nil {
		m.setStatus(Status{State: StateError, LastRun: &now, Error: lastErr.Error()})
		return total, lastErr
	}
	m.setStatus(Status{State: StateIdle, LastRun: &now})
	return total, nil
}

// archiveStream uploads one stream's aged messages as a JSON batch, then
// deletes them. The delete only happens after a confirmed upload, so a failed
// run leaves the messages in place for the next one.
func (m *Manager) archiveStream(ctx context.Context, streamID int64, cutoff time.Time) (int64, error) {
	msgs, err := m.messages.ListBefore(streamID, cutoff, m.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	key := objectKey(streamID, cutoff)
	if err := m.upload(ctx, key, streamID, msgs); err != nil {
		if _, recErr := m.runs.Record(streamID, key, 0, RunFailed, err.Error()); recErr != nil {
			m.logger.Error("record archive run", "error", recErr)
		}
		return 0, err
	}

	deleted, err := m.messages.DeleteBefore(streamID, cutoff)
	if err != nil {
		if _, recErr := m.runs.Record(streamID, key, len(msgs), RunFailed, err.Error()); recErr != nil {
			m.logger.Error("record archive run", "error", recErr)
		}
		return 0, fmt.Errorf("delete archived messages: %w", err)
	}

	if _, err := m.runs.Record(streamID, key, len(msgs), RunCompleted, ""); err != nil {
		m.logger.Error("record archive run", "error", err)
	}

	m.logger.Info("archived stream messages", "stream_id", streamID, "count", deleted, "key", key)
	return deleted, nil
}

type batch struct {
	StreamID   int64               `json:"stream_id"`
	ArchivedAt time.Time           `json:"archived_at"`
	Messages   []model.ChatMessage `json:"messages"`
}

func (m *Manager) upload(ctx context.Context, key string, streamID int64, msgs []model.ChatMessage) error {
	data, err := json.Marshal(batch{
		StreamID:   streamID,
		ArchivedAt: time.Now().UTC(),
		Messages:   msgs,
	})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload batch: %w", err)
	}
	return nil
}

func objectKey(streamID int64, cutoff time.Time) string {
	return fmt.Sprintf("chat/%d/%s.json", streamID, cutoff.Format("20060102T150405Z"))
}
