package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tata-codec/internal/codec"
	"tata-codec/internal/model"
	"tata-codec/internal/observability"
	"tata-codec/internal/transport"
)

var (
	ErrThrottled      = errors.New("command throttled")
	ErrUnknownCommand = errors.New("no such command")
	ErrNoDevice       = errors.New("no paired device phone configured")
)

/* =======================================================================
                        COMMAND DEFINITION
======================================================================= */

type Command struct {
	Name             string
	Text             string
	DailyLimit       int
	SessionLimit     int
	MinRetryInterval time.Duration
}

// commandName turns "park on" into "park_on" for metrics and Redis keys.
func commandName(text string) string {
	return strings.ReplaceAll(text, " ", "_")
}

func buildRegistry(opts Options) map[string]Command {
	cmds := codec.Commands()
	reg := make(map[string]Command, len(cmds))
	for _, hc := range cmds {
		c := Command{
			Name:             commandName(hc.Text),
			Text:             hc.Text,
			DailyLimit:       opts.DailyLimit,
			SessionLimit:     opts.SessionLimit,
			MinRetryInterval: opts.MinRetryInterval,
		}
		reg[c.Name] = c
	}
	return reg
}

/* =======================================================================
                     PER-DEVICE COMMAND SESSION STATE
======================================================================= */

// A session lasts from one device report to the next: commands the device
// has not answered yet count against SessionLimit.
type perCmdState struct {
	SessionCount int
	LastAttempt  time.Time
}

type sessions struct {
	mu    sync.Mutex
	state map[string]map[string]*perCmdState
}

func (s *sessions) get(phone, cmd string) *perCmdState {
	if s.state == nil {
		s.state = make(map[string]map[string]*perCmdState)
	}
	if s.state[phone] == nil {
		s.state[phone] = make(map[string]*perCmdState)
	}
	st, ok := s.state[phone][cmd]
	if !ok {
		st = &perCmdState{}
		s.state[phone][cmd] = st
	}
	return st
}

// reset clears session counts; retry timestamps survive.
func (s *sessions) reset(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.state[phone] {
		st.SessionCount = 0
	}
}

// reservation is a session slot taken before the command goes out.
type reservation struct {
	phone, cmd string
	at, prev   time.Time
	session    int
}

// reserve checks cmd's session and retry limits and takes a slot when both
// pass. The limit that refused is returned as a metric label.
func (s *sessions) reserve(phone string, cmd Command, now time.Time) (reservation, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(phone, cmd.Name)

	/* ---------------- session-limit ---------------- */
	if cmd.SessionLimit > 0 && st.SessionCount >= cmd.SessionLimit {
		return reservation{}, "session"
	}

	/* -------------- min retry interval -------------- */
	if !st.LastAttempt.IsZero() && now.Sub(st.LastAttempt) < cmd.MinRetryInterval {
		return reservation{}, "retry"
	}

	r := reservation{phone: phone, cmd: cmd.Name, at: now, prev: st.LastAttempt}
	st.SessionCount++
	st.LastAttempt = now
	r.session = st.SessionCount
	return r, ""
}

// release gives back a slot whose command never went out.
func (s *sessions) release(r reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(r.phone, r.cmd)
	if st.SessionCount > 0 {
		st.SessionCount--
	}
	if st.LastAttempt.Equal(r.at) {
		st.LastAttempt = r.prev
	}
}

/* =======================================================================
                  UNIVERSAL COMMAND SEND FUNCTION
======================================================================= */

// TrySend machine-encodes w and sends it to the paired device unless one of
// cmdName's limits holds it back. A throttled command returns ErrThrottled.
// No lock is held while Redis or the transport is busy.
func (d *Dispatcher) TrySend(ctx context.Context, cmdName string, w model.Watcher) error {
	cmd, ok := d.commands[cmdName]
	if !ok {
		return fmt.Errorf("%s: %w", cmdName, ErrUnknownCommand)
	}
	phone := d.opts.DevicePhone
	if phone == "" {
		return ErrNoDevice
	}

	now := d.now()
	res, limit := d.sessions.reserve(phone, cmd, now)
	if limit != "" {
		observability.CommandsThrottled.WithLabelValues(limit).Inc()
		return fmt.Errorf("%s limit %s: %w", limit, cmd.Name, ErrThrottled)
	}

	/* -------------- daily limit via Redis ------------ */
	allowed, dailyCount, err := d.store.IncDailyCmdCounter(ctx, phone, cmd.Name, cmd.DailyLimit, now)
	if err != nil {
		d.sessions.release(res)
		observability.RedisErrors.Inc()
		return err
	}
	if !allowed {
		d.sessions.release(res)
		observability.CommandsThrottled.WithLabelValues("daily").Inc()
		return fmt.Errorf("daily limit %s: %w", cmd.Name, ErrThrottled)
	}

	/* --------------------- SEND --------------------- */
	body := codec.Wrap(d.machine.Serialize(w))
	if err := d.sender.Send(ctx, transport.Message{Phone: phone, Body: body}); err != nil {
		d.sessions.release(res)
		d.logger.Error("command send failed", "cmd", cmd.Name, "phone", phone, "err", err)
		return err
	}
	if err := d.audit.Write("sms_out", phone+" "+body); err != nil {
		d.logger.Warn("audit failed", "err", err)
	}

	observability.CommandsSent.Inc()
	d.logger.Info("command sent",
		"cmd", cmd.Name,
		"phone", phone,
		"session", res.session,
		"daily", dailyCount,
	)
	return nil
}
