// Package natsjetstream 把审计记录发布到 NATS JetStream（主题 <prefix><entity_type>）。
package natsjetstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"auditbase/data/audit"
	"auditbase/logging"
)

// jetStream is the subset of nats.JetStreamContext used for publishing.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// Config configures the JetStream publisher.
type Config struct {
	URL           string
	Conn          *nats.Conn
	Stream        string // 默认 "AUDIT"
	SubjectPrefix string // 默认 "audit."
	MaxAge        time.Duration
	Replicas      int
	Logger        logging.Logger
}

// Publisher implements audit.IPublisher; the record ID is used as Nats-Msg-Id for de-duplication.
type Publisher struct {
	cfg      Config
	conn     *nats.Conn
	js       jetStream
	ownsConn bool
	logger   logging.Logger
}

var _ audit.IPublisher = (*Publisher)(nil)

// NewPublisher connects (unless Conn is provided) and ensures the stream exists.
func NewPublisher(cfg Config) (*Publisher, error) {
	conn := cfg.Conn
	own := false
	if conn == nil {
		if cfg.URL == "" {
			return nil, errors.New("nats connection not configured")
		}
		var err error
		conn, err = nats.Connect(cfg.URL, nats.Name("auditbase-feed"))
		if err != nil {
			return nil, fmt.Errorf("natsjetstream: connect: %w", err)
		}
		own = true
	}
	js, err := conn.JetStream()
	if err != nil {
		if own {
			conn.Close()
		}
		return nil, fmt.Errorf("natsjetstream: jetstream context: %w", err)
	}
	p := newPublisher(cfg, js)
	p.conn = conn
	p.ownsConn = own
	if err := p.ensureStream(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(cfg Config, js jetStream) *Publisher {
	if cfg.Stream == "" {
		cfg.Stream = "AUDIT"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "audit."
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("feed.natsjetstream")
	}
	return &Publisher{cfg: cfg, js: js, logger: cfg.Logger}
}

func (p *Publisher) ensureStream() error {
	if _, err := p.js.StreamInfo(p.cfg.Stream); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("natsjetstream: stream info %s: %w", p.cfg.Stream, err)
	}
	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:     p.cfg.Stream,
		Subjects: []string{p.cfg.SubjectPrefix + ">"},
		MaxAge:   p.cfg.MaxAge,
		Replicas: p.cfg.Replicas,
	})
	if err != nil {
		return fmt.Errorf("natsjetstream: add stream %s: %w", p.cfg.Stream, err)
	}
	return nil
}

// Publish sends the JSON-encoded record and waits for the JetStream ack.
func (p *Publisher) Publish(ctx context.Context, rec audit.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("natsjetstream: encode record: %w", err)
	}
	subject := p.subjectName(rec.EntityType)
	ack, err := p.js.Publish(subject, data, nats.MsgId(rec.ID), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("natsjetstream: publish %s: %w", subject, err)
	}
	p.logger.Debug(ctx, "audit record published",
		logging.String("subject", subject),
		logging.Int64("seq", int64(ack.Sequence)),
		logging.Bool("duplicate", ack.Duplicate))
	return nil
}

// Close drains the connection when the publisher owns it.
func (p *Publisher) Close() error {
	if p.ownsConn && p.conn != nil {
		return p.conn.Drain()
	}
	return nil
}

func (p *Publisher) subjectName(entityType string) string {
	return p.cfg.SubjectPrefix + strings.ToLower(entityType)
}
