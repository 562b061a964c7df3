package eventbus

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/mcdev12/racebot/go/internal/race/events"
	"github.com/rs/zerolog/log"
)

// ErrQueueFull is returned when the dispatcher cannot accept more events.
var ErrQueueFull = errors.New("event queue full")

type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:      1000,
		Workers:        2,
		PublishTimeout: 5 * time.Second,
	}
}

// Dispatcher queues events and hands them to the wrapped publisher from a
// small worker pool, so callers holding a race lock never wait on the network.
// Events of one channel always land on the same worker and keep their order.
type Dispatcher struct {
	publisher EventPublisher
	config    DispatcherConfig
	metrics   MetricsCollector

	queues []chan events.Event
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

func NewDispatcher(publisher EventPublisher, cfg DispatcherConfig, metrics MetricsCollector) *Dispatcher {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	size := max(1, cfg.QueueSize/cfg.Workers)
	queues := make([]chan events.Event, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan events.Event, size)
	}
	return &Dispatcher{
		publisher: publisher,
		config:    cfg,
		metrics:   metrics,
		queues:    queues,
	}
}

// Publish enqueues the event without blocking.
func (d *Dispatcher) Publish(_ context.Context, event events.Event) error {
	select {
	case d.queueFor(event.ChannelID) <- event:
		d.metrics.RecordQueueDepth(d.depth())
		return nil
	default:
		d.metrics.RecordDropped(string(event.Type))
		log.Warn().
			Str("event_type", string(event.Type)).
			Str("channel_id", event.ChannelID).
			Msg("event queue full, dropping event")
		return ErrQueueFull
	}
}

// Start launches the workers. They drain the queue until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	log.Info().
		Int("workers", d.config.Workers).
		Int("queue_size", d.config.QueueSize).
		Msg("event dispatcher started")
}

func (d *Dispatcher) queueFor(channelID string) chan events.Event {
	h := fnv.New32a()
	h.Write([]byte(channelID))
	return d.queues[h.Sum32()%uint32(len(d.queues))]
}

func (d *Dispatcher) depth() int {
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}

// Wait blocks until every worker has stopped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	queue := d.queues[id]
	for {
		select {
		case <-ctx.Done():
			d.drain(id)
			return
		case event := <-queue:
			d.publish(context.Background(), id, event)
		}
	}
}

// drain publishes whatever is still queued at shutdown.
func (d *Dispatcher) drain(id int) {
	for {
		select {
		case event := <-d.queues[id]:
			d.publish(context.Background(), id, event)
		default:
			log.Debug().Int("worker", id).Msg("event worker stopped")
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, id int, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, d.config.PublishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Int("worker", id).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Msg("failed to publish event")
	}
}
