package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tata-codec/internal/model"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestSaveReportAndLastState(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	phone := "+36301234567"

	if _, ok, err := s.LastState(ctx, phone); err != nil || ok {
		t.Fatalf("LastState on empty store = %v, %v", ok, err)
	}

	car := &model.CarLocation{Position: model.Position{Latitude: 46.7624859, Longitude: 18.6304591}, Accuracy: 250.25, Battery: 0.8912, Timestamp: 1670077542109}
	park := &model.ParkLocation{Position: model.Position{Latitude: 47.1258945, Longitude: 17.8372091}, Accuracy: 500.25}
	at := time.UnixMilli(1670077600000)

	err := s.SaveReport(ctx, phone, model.Protector{
		CarLocation:  car,
		ParkLocation: park,
		Status:       &model.Status{Type: model.CarTheftDetected},
		Service:      &model.Service{Value: true},
	}, at)
	if err != nil {
		t.Fatal(err)
	}

	st, ok, err := s.LastState(ctx, phone)
	if err != nil || !ok {
		t.Fatalf("LastState = %v, %v", ok, err)
	}
	if st.CarLocation == nil || st.CarLocation.String() != car.String() {
		t.Errorf("CarLocation = %v, want %v", st.CarLocation, car)
	}
	if st.ParkLocation == nil || st.ParkLocation.String() != park.String() {
		t.Errorf("ParkLocation = %v, want %v", st.ParkLocation, park)
	}
	if st.Status == nil || *st.Status != model.CarTheftDetected {
		t.Errorf("Status = %v", st.Status)
	}
	if st.ServiceEnabled == nil || !*st.ServiceEnabled {
		t.Errorf("ServiceEnabled = %v", st.ServiceEnabled)
	}
	if !st.UpdatedAt.Equal(at) || st.WithoutLocation {
		t.Errorf("UpdatedAt = %v WithoutLocation = %v", st.UpdatedAt, st.WithoutLocation)
	}
	if ttl := mr.TTL(deviceKey(phone)); ttl != stateTTL {
		t.Errorf("state TTL = %v, want %v", ttl, stateTTL)
	}

	// a report without a fix keeps the old car location and clears the park one
	if err := s.SaveReport(ctx, phone, model.Protector{Service: &model.Service{}}, at.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	st, _, err = s.LastState(ctx, phone)
	if err != nil {
		t.Fatal(err)
	}
	if st.CarLocation == nil || !st.WithoutLocation {
		t.Errorf("car fix lost or flag unset: %+v", st)
	}
	if st.ParkLocation != nil {
		t.Errorf("ParkLocation = %v, want cleared", st.ParkLocation)
	}
	if st.ServiceEnabled == nil || *st.ServiceEnabled {
		t.Errorf("ServiceEnabled = %v, want false", st.ServiceEnabled)
	}
}

func TestLastStateCorruptFields(t *testing.T) {
	cases := []struct {
		field, value string
	}{
		{"status", "theft"},
		{"status", "7"},
		{"updated_at", "yesterday"},
		{"car", "{"},
		{"park", "[]"},
	}
	for _, c := range cases {
		t.Run(c.field+"="+c.value, func(t *testing.T) {
			s, mr := newTestStore(t)
			mr.HSet(deviceKey("dev"), "without_location", "1", c.field, c.value)
			if _, ok, err := s.LastState(context.Background(), "dev"); err == nil || ok {
				t.Errorf("LastState = ok %v, err %v, want an error", ok, err)
			}
		})
	}
}

func TestReceiver(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.Receiver(ctx, "dev")
	if err != nil || r != nil {
		t.Fatalf("Receiver on empty store = %v, %v", r, err)
	}

	want := model.ReceiverInfo{Type: model.ReceiverSmsHuman, PhoneNumber: "+36701111111"}
	if err := s.SaveReceiver(ctx, "dev", want); err != nil {
		t.Fatal(err)
	}
	r, err = s.Receiver(ctx, "dev")
	if err != nil || r == nil || *r != want {
		t.Errorf("Receiver = %v, %v, want %v", r, err, want)
	}
}

func TestIncDailyCmdCounter(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 2; i++ {
		ok, n, err := s.IncDailyCmdCounter(ctx, "dev", "call", 2, now)
		if err != nil || !ok || n != int64(i) {
			t.Fatalf("attempt %d: ok=%v n=%d err=%v", i, ok, n, err)
		}
	}
	ok, n, err := s.IncDailyCmdCounter(ctx, "dev", "call", 2, now)
	if err != nil || ok || n != 3 {
		t.Errorf("third attempt: ok=%v n=%d err=%v, want refused", ok, n, err)
	}
	if ttl := mr.TTL("tata:cmd:dev:call:20240501"); ttl != counterTTL {
		t.Errorf("counter TTL = %v", ttl)
	}

	// next day starts over
	ok, n, _ = s.IncDailyCmdCounter(ctx, "dev", "call", 2, now.Add(24*time.Hour))
	if !ok || n != 1 {
		t.Errorf("next day: ok=%v n=%d", ok, n)
	}

	// no limit
	ok, _, _ = s.IncDailyCmdCounter(ctx, "dev", "park", 0, now)
	if !ok {
		t.Error("limit 0 should never refuse")
	}
}
