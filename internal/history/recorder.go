package history

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/mqttgate/internal/infrastructure/logging"
	"github.com/nerrad567/mqttgate/internal/publisher"
)

const (
	// queueSize bounds pending writes. Records beyond this are dropped.
	queueSize = 256

	// writeTimeout bounds each insert.
	writeTimeout = 5 * time.Second
)

// Recorder turns publish outcomes into history records and writes them
// asynchronously. It implements publisher.Observer.
//
// ObservePublish never blocks: when the queue is full the record is dropped
// and a warning is logged. Run must be running for records to be written.
type Recorder struct {
	repo    Repository
	logger  *logging.Logger
	queue   chan *Record
	dropped atomic.Int64
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo Repository, logger *logging.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan *Record, queueSize),
	}
}

// ObservePublish implements publisher.Observer.
func (r *Recorder) ObservePublish(_ context.Context, o publisher.Outcome) {
	rec := &Record{
		Topic:       o.Topic,
		PayloadSize: o.PayloadSize,
		Outcome:     string(o.Result),
		Backend:     o.Backend,
		RequestID:   o.RequestID,
		DurationMS:  float64(o.Duration.Microseconds()) / 1000,
		CreatedAt:   o.Time.UTC(),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}

	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		r.logger.Warn("history queue full, dropping record",
			"topic", o.Topic,
			"outcome", o.Result,
		)
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run writes queued records serially until ctx is cancelled, then drains
// what is left. It always returns nil so it can run under an errgroup.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) write(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, rec); err != nil {
		r.logger.Error("history write failed",
			"topic", rec.Topic,
			"outcome", rec.Outcome,
			"error", err,
		)
	}
}
