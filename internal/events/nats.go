package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/sigreer/astrogod/internal/logger"
)

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink forwards bus events to NATS subjects "<prefix>.<type>" so
// dashboards and other processes can follow hot-plug and server activity.
// Delivery is best effort.
type NATSSink struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
}

// ConnectNATS dials url and returns a sink publishing under prefix.
func ConnectNATS(url, prefix string, log zerolog.Logger) (*NATSSink, error) {
	log = logger.WithComponent(log, "nats")

	nc, err := nats.Connect(url,
		nats.Name("astrogod"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	sink := NewNATSSink(nc, prefix, log)
	sink.conn = nc
	return sink, nil
}

// NewNATSSink wraps an existing publisher.
func NewNATSSink(pub Publisher, prefix string, log zerolog.Logger) *NATSSink {
	return &NATSSink{pub: pub, prefix: prefix, log: log}
}

// Subject returns the subject an event type is published on.
func (s *NATSSink) Subject(t Type) string {
	return s.prefix + "." + string(t)
}

// Handle is a bus Handler.
func (s *NATSSink) Handle(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.log.Warn().Err(err).Str("type", string(e.Type)).Msg("failed to marshal event")
		return
	}
	if err := s.pub.Publish(s.Subject(e.Type), data); err != nil {
		s.log.Warn().Err(err).Str("type", string(e.Type)).Msg("failed to publish event")
	}
}

// Close drains the connection when the sink owns one.
func (s *NATSSink) Close() {
	if s.conn != nil {
		_ = s.conn.Drain()
	}
}
