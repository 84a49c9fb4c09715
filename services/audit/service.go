// Package audit produces the gateway's append-only audit trail. The trail
// guarantees production of one record per query; storage is delegated to a
// pluggable sink.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civinigrani/civigate/internal/observability"
	"github.com/civinigrani/civigate/models"
)

// Sink is the append-only receiver of audit records.
type Sink interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
}

// Config holds configuration for the trail service.
type Config struct {
	BufferSize  int // size of the record buffer channel
	WorkerCount int // number of concurrent workers
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 4,
	}
}

// Service writes audit records to the sink asynchronously so the hot path
// never blocks on storage.
type Service struct {
	sink        Sink
	logger      *zap.Logger
	metrics     *observability.Metrics
	recordChan  chan *models.AuditRecord
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	mu          sync.Mutex
	started     bool
	closed      bool
}

// NewService creates a trail service over the given sink.
func NewService(sink Sink, metrics *observability.Metrics, logger *zap.Logger, cfg Config) *Service {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultConfig().WorkerCount
	}
	return &Service{
		sink:        sink,
		logger:      logger.Named("audit"),
		metrics:     metrics,
		recordChan:  make(chan *models.AuditRecord, cfg.BufferSize),
		workerCount: cfg.WorkerCount,
		bufferSize:  cfg.BufferSize,
	}
}

// Start starts the background workers.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))
	return nil
}

// Stop drains pending records and stops the workers, bounded by timeout.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_records", len(s.recordChan)))
	close(s.recordChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record enqueues a record without blocking. Records are write-once: the
// trail never mutates what it receives. A full buffer drops the record with
// a warning rather than stalling query processing.
func (s *Service) Record(rec *models.AuditRecord) {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		s.logger.Warn("audit record dropped: service not running",
			zap.String("request_id", rec.RequestID))
		return
	}
	s.mu.Unlock()

	select {
	case s.recordChan <- rec:
		s.metrics.AuditBufferFill.Set(float64(len(s.recordChan)))
	default:
		s.logger.Warn("audit buffer full, dropping record",
			zap.String("request_id", rec.RequestID),
			zap.String("decision", string(rec.Decision)))
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))
	for rec := range s.recordChan {
		s.metrics.AuditBufferFill.Set(float64(len(s.recordChan)))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.sink.Append(ctx, rec); err != nil {
			s.logger.Error("failed to append audit record",
				zap.Int("worker_id", id),
				zap.String("request_id", rec.RequestID),
				zap.Error(err))
		}
		cancel()
	}
	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}
