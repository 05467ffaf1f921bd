package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/synaptica-ai/formrelay/pkg/common/logger"
	"github.com/synaptica-ai/formrelay/pkg/common/models"
	"github.com/synaptica-ai/formrelay/pkg/observability/metrics"
	"github.com/synaptica-ai/formrelay/pkg/storage"
)

const sinkTimeout = 5 * time.Second

// Store is the Record Store contract the service depends on.
type Store interface {
	Append(timestamp string, fields models.FieldMap) error
}

// Service receives form payloads over UDP and appends them to a Store, one
// datagram at a time.
type Service struct {
	addr       string
	bufferSize int
	store      Store
	sinks      []Sink
	now        func() time.Time

	conn *net.UDPConn
}

type Option func(*Service)

// WithSinks registers sinks that receive every persisted record.
func WithSinks(sinks ...Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(addr string, bufferSize int, store Store, opts ...Option) *Service {
	s := &Service{
		addr:       addr,
		bufferSize: bufferSize,
		store:      store,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the datagram socket. It must be called before Serve.
func (s *Service) Listen() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", s.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.conn = conn
	return nil
}

// Addr is the bound socket address, or nil before Listen.
func (s *Service) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Close releases the socket of a service that was never served.
func (s *Service) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Serve reads datagrams until ctx is cancelled, then closes the socket.
// Payloads longer than the buffer size are truncated by the socket.
func (s *Service) Serve(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("ingestion service is not listening")
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		s.conn.Close()
	}()

	logger.WithFields(map[string]interface{}{
		"addr":        s.conn.LocalAddr().String(),
		"buffer_size": s.bufferSize,
	}).Info("Ingestion Service started")

	buf := make([]byte, s.bufferSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Info("Ingestion Service stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("ingestion socket closed: %w", err)
			}
			logger.Log.WithError(err).Warn("Failed to read datagram")
			continue
		}

		if n == len(buf) {
			logger.WithFields(map[string]interface{}{
				"remote_addr": from.String(),
				"buffer_size": s.bufferSize,
			}).Warn("Datagram filled the receive buffer and may be truncated")
		}

		_ = s.Handle(ctx, buf[:n], from)
	}
}

// Run binds the socket and serves until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Handle decodes and persists a single payload. Failures are logged and
// returned; the record is discarded and nothing partial is written.
func (s *Service) Handle(ctx context.Context, payload []byte, from net.Addr) error {
	metrics.DatagramReceived()
	fields := map[string]interface{}{"bytes": len(payload)}
	if from != nil {
		fields["remote_addr"] = from.String()
	}
	entry := logger.WithFields(fields)

	decoded, err := Decode(payload)
	if err != nil {
		metrics.SubmissionMalformed()
		entry.WithError(err).Warn("Discarding malformed submission")
		return err
	}

	rec := models.NewRecord(s.now(), decoded)
	entry = entry.WithField("timestamp", rec.Timestamp)

	if err := s.store.Append(rec.Timestamp, rec.Fields); err != nil {
		if storage.IsCorrupt(err) {
			metrics.StoreCorrupt()
			entry.WithError(err).Error("Record store is corrupt, discarding record")
		} else {
			metrics.StoreWriteFailed()
			entry.WithError(err).Error("Failed to persist record")
		}
		return err
	}
	metrics.RecordPersisted()
	entry.WithField("fields", len(rec.Fields)).Info("Record persisted")

	s.fanOut(ctx, rec)
	return nil
}

func (s *Service) fanOut(ctx context.Context, rec models.Record) {
	if len(s.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	for _, sink := range s.sinks {
		if err := sink.Write(ctx, rec); err != nil {
			metrics.SinkFailed()
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"sink":      sink.Name(),
				"timestamp": rec.Timestamp,
			}).Error("Failed to write record to sink")
		}
	}
}
