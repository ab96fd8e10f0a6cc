package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultSubjectPrefix namespaces report subjects
const DefaultSubjectPrefix = "quantlens.reports."

const flushTimeout = 5 * time.Second

// Envelope is the message published for each report
type Envelope struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Date        string          `json:"date"`
	Subject     string          `json:"subject"`
	Report      json.RawMessage `json:"report"`
	PublishedAt time.Time       `json:"published_at"`
}

// Publisher publishes reports on NATS
type Publisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

// NewPublisher connects to NATS at url
func NewPublisher(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("quantlens-reports"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p := NewPublisherWithConn(nc, prefix)
	p.owned = true

	log.Info().
		Str("nats_url", url).
		Str("prefix", p.prefix).
		Msg("Report publisher initialized")

	return p, nil
}

// NewPublisherWithConn publishes on an existing connection, which the
// caller keeps ownership of
func NewPublisherWithConn(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{nc: nc, prefix: prefix}
}

// Subject returns the subject reports of kind are published on
func (p *Publisher) Subject(kind string) string {
	return fmt.Sprintf("%sdaily.%s", p.prefix, kind)
}

// Publish sends the report and flushes the connection
func (p *Publisher) Publish(ctx context.Context, r Report) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !p.nc.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data, err := json.Marshal(Envelope{
		ID:          uuid.New(),
		Kind:        r.Kind(),
		Date:        r.ReportDate(),
		Subject:     r.Subject(),
		Report:      payload,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	subject := p.Subject(r.Kind())
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	if err := p.nc.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("report_subject", r.Subject()).
		Msg("Published report")

	return nil
}

// Close closes the connection if the publisher opened it
func (p *Publisher) Close() {
	if p.owned && p.nc != nil {
		p.nc.Close()
	}
}
