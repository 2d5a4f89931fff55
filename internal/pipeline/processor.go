package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tata-codec/internal/codec"
	"tata-codec/internal/model"
	"tata-codec/internal/observability"
	"tata-codec/internal/store"
	"tata-codec/internal/transport"
)

var (
	ErrUnpaired     = errors.New("report from unpaired phone")
	ErrNotEnveloped = errors.New("body is not an enveloped record")
)

// StateStore is the part of the store the processor needs.
type StateStore interface {
	SaveReport(ctx context.Context, phone string, p model.Protector, at time.Time) error
	LastState(ctx context.Context, phone string) (store.DeviceState, bool, error)
	Receiver(ctx context.Context, phone string) (*model.ReceiverInfo, error)
}

// Sink receives every successfully decoded report.
type Sink interface {
	Name() string
	Forward(ctx context.Context, r Report) error
}

type Options struct {
	DevicePhone string
	Operators   []string
	// Location for human timestamps; nil means time.Local.
	Location *time.Location
}

type Processor struct {
	opts    Options
	store   StateStore
	sender  transport.Sender
	sinks   []Sink
	logger  *slog.Logger
	machine codec.ProtectorMachine
	human   codec.ProtectorHuman
	now     func() time.Time
}

func NewProcessor(opts Options, st StateStore, sender transport.Sender, lg *slog.Logger, sinks ...Sink) *Processor {
	return &Processor{
		opts:   opts,
		store:  st,
		sender: sender,
		sinks:  sinks,
		logger: lg.With("component", "pipeline"),
		human:  codec.ProtectorHuman{Location: opts.Location},
		now:    time.Now,
	}
}

// HandleReport decodes an enveloped device SMS, stores it, notifies the
// registered receiver and forwards it to every sink. Store, notification and
// sink failures are logged; only pairing and decode failures are returned.
func (p *Processor) HandleReport(ctx context.Context, from, body string) (Report, error) {
	if p.opts.DevicePhone != "" && from != p.opts.DevicePhone {
		observability.ReportsRejected.WithLabelValues("unpaired").Inc()
		return Report{}, fmt.Errorf("%s: %w", from, ErrUnpaired)
	}
	payload, ok := codec.Unwrap(body)
	if !ok {
		observability.ReportsRejected.WithLabelValues("no_envelope").Inc()
		return Report{}, ErrNotEnveloped
	}

	start := time.Now()
	prot, err := p.machine.Deserialize(payload)
	observability.ObserveDecodeLatency(start)
	if err != nil {
		observability.DecodeErrors.WithLabelValues(codec.ErrorKind(err)).Inc()
		return Report{}, fmt.Errorf("decode report from %s: %w", from, err)
	}
	observability.ReportsDecoded.WithLabelValues(statusLabel(prot)).Inc()

	var last *model.CarLocation
	if prot.CarLocation == nil {
		last = p.lastCarLocation(ctx, from)
	}

	at := p.now()
	if err := p.store.SaveReport(ctx, from, prot, at); err != nil {
		observability.RedisErrors.Inc()
		p.logger.Error("save report failed", "phone", from, "err", err)
	}

	rep := BuildReport(from, at, prot, p.human.Serialize(prot))
	rep.LastCarLocation = last
	p.logger.Info("report decoded",
		"phone", from,
		"report", prot.String(),
		"notification", rep.Notification,
	)

	p.notify(ctx, rep, payload)

	for _, s := range p.sinks {
		if err := s.Forward(ctx, rep); err != nil {
			observability.ForwardErrors.WithLabelValues(s.Name()).Inc()
			p.logger.Warn("forward failed", "sink", s.Name(), "phone", from, "err", err)
		}
	}
	return rep, nil
}

// notify delivers the report the way the last command's receiver asked for.
// Without a receiver every configured operator gets the human text.
func (p *Processor) notify(ctx context.Context, rep Report, payload string) {
	receiver, err := p.store.Receiver(ctx, rep.Phone)
	if err != nil {
		observability.RedisErrors.Inc()
		p.logger.Warn("load receiver failed", "phone", rep.Phone, "err", err)
	}

	text := p.smsText(rep)

	var out []transport.Message
	switch {
	case receiver == nil:
		for _, op := range p.opts.Operators {
			out = append(out, transport.Message{Phone: op, Body: text})
		}
	case receiver.Type == model.ReceiverSmsHuman:
		out = append(out, transport.Message{Phone: receiver.PhoneNumber, Body: text})
	case receiver.Type == model.ReceiverSmsMachine:
		out = append(out, transport.Message{Phone: receiver.PhoneNumber, Body: codec.Wrap(payload)})
	default:
		// push receivers are served by the sinks
		return
	}

	for _, m := range out {
		if err := p.sender.Send(ctx, m); err != nil {
			p.logger.Warn("notify failed", "to", m.Phone, "err", err)
		}
	}
}

// lastCarLocation is the fix remembered from an earlier report, if any.
func (p *Processor) lastCarLocation(ctx context.Context, phone string) *model.CarLocation {
	st, ok, err := p.store.LastState(ctx, phone)
	if err != nil {
		observability.RedisErrors.Inc()
		p.logger.Warn("load last state failed", "phone", phone, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return st.CarLocation
}

// smsText is the human rendering, led by the notification line when the
// report itself renders empty, and followed by the remembered fix when the
// report has none.
func (p *Processor) smsText(rep Report) string {
	text := rep.Text
	if rep.LastCarLocation != nil {
		text += "Last known location\n\n" + p.human.Serialize(model.Protector{CarLocation: rep.LastCarLocation})
	}
	if rep.Text == "" {
		if text == "" {
			return rep.Notification
		}
		return rep.Notification + "\n\n" + text
	}
	return text
}

func statusLabel(p model.Protector) string {
	if p.Status == nil {
		return "none"
	}
	return p.Status.Type.String()
}
