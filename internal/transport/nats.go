package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const (
	SubjectInbound  = "tata.sms.inbound"
	SubjectOutbound = "tata.sms.outbound"
	subjectReport   = "tata.report."
)

// Bus carries SMS between the relay and the gateway that owns the modem.
type Bus struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func Connect(url string, lg *slog.Logger) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("tata-codec"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				lg.Warn("nats: disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			lg.Info("nats: reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return NewBus(nc, lg), nil
}

func NewBus(nc *nats.Conn, lg *slog.Logger) *Bus {
	return &Bus{nc: nc, logger: lg.With("component", "nats")}
}

// Send publishes an outbound SMS.
func (b *Bus) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.nc.Publish(SubjectOutbound, data)
}

// PublishReport fans a decoded report out to anyone listening for phone.
func (b *Bus) PublishReport(phone string, payload []byte) error {
	return b.nc.Publish(subjectReport+phone, payload)
}

// Subscribe delivers every inbound SMS to handler on the NATS goroutine.
func (b *Bus) Subscribe(handler func(Message)) (*nats.Subscription, error) {
	return b.nc.Subscribe(SubjectInbound, func(msg *nats.Msg) {
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			b.logger.Warn("nats: bad inbound payload", "err", err)
			return
		}
		handler(m)
	})
}

func (b *Bus) Close() {
	_ = b.nc.Drain()
}
