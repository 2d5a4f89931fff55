package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one SMS as seen by the relay: who it is from (inbound) or to
// (outbound), and the raw body.
type Message struct {
	Phone string `json:"phone"`
	Body  string `json:"body"`
}

// Sender hands a message to whatever delivers SMS.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

var ErrNoSender = errors.New("no sender available")

// Fallback tries each sender in order until one accepts the message.
type Fallback []Sender

func (f Fallback) Send(ctx context.Context, m Message) error {
	var errs []error
	for _, s := range f {
		err := s.Send(ctx, m)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrNoSender
	}
	return errors.Join(errs...)
}

var (
	lineEscaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	lineUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")
)

// EncodeLine renders m for the TCP bridge: "<phone>\t<body>".
func EncodeLine(m Message) string {
	return m.Phone + "\t" + lineEscaper.Replace(m.Body)
}

func DecodeLine(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	phone, body, found := strings.Cut(line, "\t")
	if !found {
		return Message{}, fmt.Errorf("bridge line without tab separator: %q", line)
	}
	if phone == "" {
		return Message{}, fmt.Errorf("bridge line without phone: %q", line)
	}
	return Message{Phone: phone, Body: lineUnescaper.Replace(body)}, nil
}
