package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tata-codec/internal/codec"
	"tata-codec/internal/model"
	"tata-codec/internal/store"
	"tata-codec/internal/transport"
)

const device = "+36201111111"

type fakeSender struct {
	mu   sync.Mutex
	sent []transport.Message
}

func (f *fakeSender) Send(_ context.Context, m transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

type fakeSink struct {
	name string
	err  error
	got  []Report
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Forward(_ context.Context, r Report) error {
	f.got = append(f.got, r)
	return f.err
}

func newTestProcessor(t *testing.T, sinks ...Sink) (*Processor, *store.Store, *fakeSender) {
	t.Helper()
	mr := miniredis.RunT(t)
	st := store.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	sender := &fakeSender{}
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProcessor(Options{
		DevicePhone: device,
		Operators:   []string{"+36300000001", "+36300000002"},
		Location:    time.UTC,
	}, st, sender, lg, sinks...)
	p.now = func() time.Time { return time.Date(2022, 12, 3, 14, 30, 0, 0, time.UTC) }
	return p, st, sender
}

func sampleReport() model.Protector {
	return model.Protector{
		CarLocation: &model.CarLocation{
			Position:  model.Position{Latitude: 46.7624859, Longitude: 18.6304591},
			Accuracy:  250.25,
			Battery:   0.8912,
			Timestamp: 1670077542109,
		},
		ParkLocation: &model.ParkLocation{
			Position: model.Position{Latitude: 47.1258945, Longitude: 17.8372091},
			Accuracy: 500.25,
		},
		Status: &model.Status{Type: model.ParkingDetected},
	}
}

func enveloped(p model.Protector) string {
	return codec.Wrap(codec.ProtectorMachine{}.Serialize(p))
}

func TestHandleReportNotifiesOperators(t *testing.T) {
	sink := &fakeSink{name: "test"}
	p, st, sender := newTestProcessor(t, sink)
	ctx := context.Background()

	rep, err := p.HandleReport(ctx, device, enveloped(sampleReport()))
	if err != nil {
		t.Fatalf("HandleReport: %v", err)
	}
	if rep.Notification != "Parking detected" {
		t.Errorf("notification = %q", rep.Notification)
	}
	if !rep.FixValid {
		t.Error("fix should be valid")
	}
	if rep.ParkDistance == nil || *rep.ParkDistance < 72519 || *rep.ParkDistance > 72520 {
		t.Errorf("park distance = %v", rep.ParkDistance)
	}
	if !strings.Contains(rep.Text, "Park distance 72519.74 meters") {
		t.Errorf("text = %q", rep.Text)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	for i, op := range []string{"+36300000001", "+36300000002"} {
		if sender.sent[i].Phone != op || sender.sent[i].Body != rep.Text {
			t.Errorf("message %d = %+v", i, sender.sent[i])
		}
	}

	if len(sink.got) != 1 || sink.got[0].Phone != device {
		t.Errorf("sink got %+v", sink.got)
	}

	state, ok, err := st.LastState(ctx, device)
	if err != nil || !ok {
		t.Fatalf("LastState: ok=%v err=%v", ok, err)
	}
	if state.CarLocation == nil || state.CarLocation.Timestamp != 1670077542109 {
		t.Errorf("stored car location = %+v", state.CarLocation)
	}
}

func TestHandleReportReceiver(t *testing.T) {
	cases := []struct {
		name     string
		receiver model.ReceiverInfo
		wantSent int
		wantBody func(rep Report, body string) string
	}{
		{
			name:     "human",
			receiver: model.ReceiverInfo{Type: model.ReceiverSmsHuman, PhoneNumber: "+36309999999"},
			wantSent: 1,
			wantBody: func(rep Report, _ string) string { return rep.Text },
		},
		{
			name:     "machine",
			receiver: model.ReceiverInfo{Type: model.ReceiverSmsMachine, PhoneNumber: "+36309999999"},
			wantSent: 1,
			wantBody: func(_ Report, body string) string { return body },
		},
		{
			name:     "gcm",
			receiver: model.ReceiverInfo{Type: model.ReceiverGcm, PhoneNumber: "token"},
			wantSent: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, st, sender := newTestProcessor(t)
			ctx := context.Background()
			if err := st.SaveReceiver(ctx, device, tc.receiver); err != nil {
				t.Fatalf("SaveReceiver: %v", err)
			}

			body := enveloped(sampleReport())
			rep, err := p.HandleReport(ctx, device, body)
			if err != nil {
				t.Fatalf("HandleReport: %v", err)
			}
			if len(sender.sent) != tc.wantSent {
				t.Fatalf("sent %d messages, want %d", len(sender.sent), tc.wantSent)
			}
			if tc.wantSent == 0 {
				return
			}
			m := sender.sent[0]
			if m.Phone != tc.receiver.PhoneNumber {
				t.Errorf("to = %q", m.Phone)
			}
			if want := tc.wantBody(rep, body); m.Body != want {
				t.Errorf("body = %q, want %q", m.Body, want)
			}
		})
	}
}

func TestHandleReportWithoutLocation(t *testing.T) {
	p, _, sender := newTestProcessor(t)
	rep, err := p.HandleReport(context.Background(), device, enveloped(model.Protector{}))
	if err != nil {
		t.Fatalf("HandleReport: %v", err)
	}
	if rep.Text != "" {
		t.Errorf("text = %q, want empty", rep.Text)
	}
	// an empty human rendering falls back to the notification line
	if len(sender.sent) == 0 || sender.sent[0].Body != "Update without location" {
		t.Errorf("sent = %+v", sender.sent)
	}
}

func TestHandleReportRemembersLastFix(t *testing.T) {
	p, _, sender := newTestProcessor(t)
	ctx := context.Background()

	if _, err := p.HandleReport(ctx, device, enveloped(sampleReport())); err != nil {
		t.Fatal(err)
	}
	sender.sent = nil

	theft := model.Protector{Status: &model.Status{Type: model.CarTheftDetected}}
	rep, err := p.HandleReport(ctx, device, enveloped(theft))
	if err != nil {
		t.Fatalf("HandleReport: %v", err)
	}
	if rep.LastCarLocation == nil || rep.LastCarLocation.Timestamp != 1670077542109 {
		t.Fatalf("LastCarLocation = %v", rep.LastCarLocation)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	want := "Car theft detected!\n\nLast known location\n\n" +
		"http://maps.google.com/?q=46.7624859,18.6304591\n\n" +
		"250.25 meters, 89.12 %, 12/03/22 14:25:42 UTC\n\n"
	if got := sender.sent[0].Body; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	// a report with its own fix does not carry the old one
	rep, err = p.HandleReport(ctx, device, enveloped(sampleReport()))
	if err != nil {
		t.Fatal(err)
	}
	if rep.LastCarLocation != nil {
		t.Errorf("LastCarLocation = %v, want nil", rep.LastCarLocation)
	}
}

func TestHandleReportRejects(t *testing.T) {
	cases := []struct {
		name string
		from string
		body string
		want error
	}{
		{"unpaired", "+36209999999", enveloped(sampleReport()), ErrUnpaired},
		{"plain text", device, "hello", ErrNotEnveloped},
		{"wrong prefix", device, "$TATA/* * * *", ErrNotEnveloped},
		{"truncated", device, codec.Wrap("*"), codec.ErrTruncated},
		{"bad flag", device, codec.Wrap("* * * x"), codec.ErrBadFlag},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &fakeSink{name: "test"}
			p, _, sender := newTestProcessor(t, sink)
			_, err := p.HandleReport(context.Background(), tc.from, tc.body)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if len(sender.sent) != 0 || len(sink.got) != 0 {
				t.Error("rejected report must not be delivered")
			}
		})
	}
}

func TestSinkFailureDoesNotStopOthers(t *testing.T) {
	bad := &fakeSink{name: "bad", err: errors.New("down")}
	good := &fakeSink{name: "good"}
	p, _, _ := newTestProcessor(t, bad, good)

	if _, err := p.HandleReport(context.Background(), device, enveloped(sampleReport())); err != nil {
		t.Fatalf("HandleReport: %v", err)
	}
	if len(bad.got) != 1 || len(good.got) != 1 {
		t.Errorf("bad=%d good=%d", len(bad.got), len(good.got))
	}
}

func TestNotificationText(t *testing.T) {
	theft := model.Protector{Status: &model.Status{Type: model.CarTheftDetected}}
	updated := model.Protector{Status: &model.Status{Type: model.ParkingUpdated}}
	plain := model.Protector{CarLocation: &model.CarLocation{}}

	for p, want := range map[*model.Protector]string{
		&theft:   "Car theft detected!",
		&updated: "Park location updated",
		&plain:   "Location update",
	} {
		if got := NotificationText(*p); got != want {
			t.Errorf("NotificationText(%s) = %q, want %q", p, got, want)
		}
	}
}

func TestReportMap(t *testing.T) {
	rep := BuildReport(device, time.Unix(0, 0).UTC(), sampleReport(), "x")
	m, err := rep.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if m["phone"] != device || m["notification"] != "Parking detected" {
		t.Errorf("map = %v", m)
	}
	if _, ok := m["protector"].(map[string]any)["car_location"]; !ok {
		t.Error("car_location missing from map")
	}
}
