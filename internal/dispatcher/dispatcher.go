package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"tata-codec/internal/codec"
	"tata-codec/internal/model"
	"tata-codec/internal/observability"
	"tata-codec/internal/pipeline"
	"tata-codec/internal/transport"
	"tata-codec/internal/utilities"
)

var ErrNotOperator = errors.New("sender is not an operator")

// CommandStore is the part of the store the dispatcher needs.
type CommandStore interface {
	SaveReceiver(ctx context.Context, phone string, r model.ReceiverInfo) error
	IncDailyCmdCounter(ctx context.Context, phone, cmd string, limit int, now time.Time) (bool, int64, error)
}

type ReportHandler interface {
	HandleReport(ctx context.Context, from, body string) (pipeline.Report, error)
}

type Options struct {
	DevicePhone string
	// Operators allowed to command the device; empty allows anyone.
	Operators        []string
	DailyLimit       int
	SessionLimit     int
	MinRetryInterval time.Duration
}

// Dispatcher routes every inbound SMS: device reports go to the pipeline,
// everything else is parsed as an operator command.
type Dispatcher struct {
	opts     Options
	store    CommandStore
	sender   transport.Sender
	reports  ReportHandler
	audit    *utilities.AuditLog
	logger   *slog.Logger
	commands map[string]Command
	sessions sessions
	machine  codec.WatcherMachine
	human    codec.WatcherHuman
	now      func() time.Time
}

func New(opts Options, st CommandStore, sender transport.Sender, reports ReportHandler, audit *utilities.AuditLog, lg *slog.Logger) *Dispatcher {
	return &Dispatcher{
		opts:     opts,
		store:    st,
		sender:   sender,
		reports:  reports,
		audit:    audit,
		logger:   lg.With("component", "dispatcher"),
		commands: buildRegistry(opts),
		now:      time.Now,
	}
}

// ProcessIncoming is the single entry point of every transport.
func (d *Dispatcher) ProcessIncoming(ctx context.Context, m transport.Message) {
	if err := d.audit.Write("sms_in", m.Phone+" "+m.Body); err != nil {
		d.logger.Warn("audit failed", "err", err)
	}

	if m.Phone == d.opts.DevicePhone || strings.HasPrefix(m.Body, codec.EnvelopePrefix+"/") {
		if _, err := d.reports.HandleReport(ctx, m.Phone, m.Body); err != nil {
			d.logger.Warn("report dropped", "phone", m.Phone, "err", err)
			return
		}
		d.sessions.reset(m.Phone)
		return
	}

	if err := d.HandleCommand(ctx, m); err != nil {
		d.logger.Warn("command not sent", "phone", m.Phone, "body", m.Body, "err", err)
	}
}

// HandleCommand parses an operator SMS and forwards it to the device. The
// operator becomes the receiver of the device's answer. Unknown commands are
// answered with the command list.
func (d *Dispatcher) HandleCommand(ctx context.Context, m transport.Message) error {
	if len(d.opts.Operators) > 0 && !slices.Contains(d.opts.Operators, m.Phone) {
		observability.CommandsParsed.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%s: %w", m.Phone, ErrNotOperator)
	}

	text := strings.TrimSpace(m.Body)
	w, err := d.human.Deserialize(text)
	if err != nil {
		observability.CommandsParsed.WithLabelValues("unknown").Inc()
		if sendErr := d.sender.Send(ctx, transport.Message{Phone: m.Phone, Body: HelpText()}); sendErr != nil {
			d.logger.Warn("help reply failed", "to", m.Phone, "err", sendErr)
		}
		return err
	}
	observability.CommandsParsed.WithLabelValues("ok").Inc()
	if d.opts.DevicePhone == "" {
		return ErrNoDevice
	}

	receiver := model.ReceiverInfo{Type: model.ReceiverSmsHuman, PhoneNumber: m.Phone}
	w.Receiver = &receiver
	if err := d.store.SaveReceiver(ctx, d.opts.DevicePhone, receiver); err != nil {
		observability.RedisErrors.Inc()
		d.logger.Warn("save receiver failed", "phone", m.Phone, "err", err)
	}

	return d.TrySend(ctx, commandName(text), w)
}

// HelpText lists the accepted commands.
func HelpText() string {
	cmds := codec.Commands()
	texts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		texts = append(texts, c.Text)
	}
	return "Unknown command. Try: " + strings.Join(texts, ", ")
}
