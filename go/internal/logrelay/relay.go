package logrelay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gopkg.in/Graylog2/go-gelf.v2/gelf"
)

// MessageReader yields GELF messages. *gelf.Reader satisfies it.
type MessageReader interface {
	ReadMessage() (*gelf.Message, error)
}

// Listen opens a UDP GELF reader on port.
func Listen(port int) (*gelf.Reader, error) {
	r, err := gelf.NewReader(fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen for gelf on %d: %w", port, err)
	}
	return r, nil
}

// Relay forwards every message read to a sink.
type Relay struct {
	reader      MessageReader
	sink        Sink
	application string
	metrics     *Metrics
}

func NewRelay(reader MessageReader, sink Sink, application string, metrics *Metrics) *Relay {
	return &Relay{
		reader:      reader,
		sink:        sink,
		application: application,
		metrics:     metrics,
	}
}

// Run relays until ctx is cancelled or the reader reports io.EOF. The reader
// cannot be interrupted, so a blocked read is abandoned on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	records := make(chan *gelf.Message)
	errc := make(chan error, 1)

	go func() {
		for {
			m, err := r.reader.ReadMessage()
			if errors.Is(err, io.EOF) {
				errc <- nil
				return
			}
			if err != nil {
				r.metrics.failed.WithLabelValues("read").Inc()
				log.Warn().Err(err).Msg("failed to read gelf message")
				continue
			}
			select {
			case records <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case m := <-records:
			r.forward(ctx, m)
		}
	}
}

func (r *Relay) forward(ctx context.Context, m *gelf.Message) {
	r.metrics.received.Inc()

	rec := FromGELF(m, r.application)
	if err := r.sink.Write(ctx, rec); err != nil {
		r.metrics.failed.WithLabelValues("forward").Inc()
		log.Warn().Err(err).Str("container", rec.Container).Msg("failed to forward log record")
		return
	}
	r.metrics.forwarded.WithLabelValues(rec.Container).Inc()
}
