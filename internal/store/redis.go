package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tata-codec/internal/model"
)

const (
	stateTTL   = 30 * 24 * time.Hour
	counterTTL = 48 * time.Hour
)

// Store keeps the last known state of each paired device in Redis.
type Store struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func deviceKey(phone string) string   { return "tata:dev:" + phone }
func receiverKey(phone string) string { return "tata:dev:" + phone + ":receiver" }

// DeviceState is what the operator side remembers between reports.
type DeviceState struct {
	CarLocation     *model.CarLocation  `json:"car_location,omitempty"`
	ParkLocation    *model.ParkLocation `json:"park_location,omitempty"`
	Status          *model.StatusType   `json:"status,omitempty"`
	ServiceEnabled  *bool               `json:"service_enabled,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
	WithoutLocation bool                `json:"without_location"`
}

// SaveReport merges a decoded report into the device state. A report without
// a car fix keeps the previous one and flags the update; the park location is
// always replaced, including by "none".
func (s *Store) SaveReport(ctx context.Context, phone string, p model.Protector, at time.Time) error {
	key := deviceKey(phone)
	fields := map[string]any{
		"updated_at":       at.UnixMilli(),
		"without_location": p.CarLocation == nil,
	}
	if p.CarLocation != nil {
		b, err := json.Marshal(p.CarLocation)
		if err != nil {
			return err
		}
		fields["car"] = b
	}
	if p.Status != nil {
		fields["status"] = int(p.Status.Type)
	}
	if p.Service != nil {
		fields["service"] = p.Service.Value
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if p.ParkLocation != nil {
			b, err := json.Marshal(p.ParkLocation)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, key, "park", b)
		} else {
			pipe.HDel(ctx, key, "park")
		}
		pipe.Expire(ctx, key, stateTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", key, err)
	}
	return nil
}

// LastState returns the stored state; ok is false when nothing was saved yet.
func (s *Store) LastState(ctx context.Context, phone string) (DeviceState, bool, error) {
	var st DeviceState
	vals, err := s.rdb.HGetAll(ctx, deviceKey(phone)).Result()
	if err != nil {
		return st, false, fmt.Errorf("redis load %s: %w", deviceKey(phone), err)
	}
	if len(vals) == 0 {
		return st, false, nil
	}

	if v, ok := vals["car"]; ok {
		st.CarLocation = &model.CarLocation{}
		if err := json.Unmarshal([]byte(v), st.CarLocation); err != nil {
			return st, false, fmt.Errorf("car location: %w", err)
		}
	}
	if v, ok := vals["park"]; ok {
		st.ParkLocation = &model.ParkLocation{}
		if err := json.Unmarshal([]byte(v), st.ParkLocation); err != nil {
			return st, false, fmt.Errorf("park location: %w", err)
		}
	}
	if v, ok := vals["status"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return st, false, fmt.Errorf("status %q: %w", v, err)
		}
		t := model.StatusType(n)
		if !t.Valid() {
			return st, false, fmt.Errorf("status %d out of range", n)
		}
		st.Status = &t
	}
	if v, ok := vals["service"]; ok {
		b := v == "1"
		st.ServiceEnabled = &b
	}
	if v, ok := vals["updated_at"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return st, false, fmt.Errorf("updated_at %q: %w", v, err)
		}
		st.UpdatedAt = time.UnixMilli(ms)
	}
	st.WithoutLocation = vals["without_location"] == "1"
	return st, true, nil
}

// SaveReceiver remembers who should hear about the device's next report.
func (s *Store) SaveReceiver(ctx context.Context, phone string, r model.ReceiverInfo) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, receiverKey(phone), b, stateTTL).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", receiverKey(phone), err)
	}
	return nil
}

// Receiver returns nil when no receiver was registered.
func (s *Store) Receiver(ctx context.Context, phone string) (*model.ReceiverInfo, error) {
	val, err := s.rdb.Get(ctx, receiverKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", receiverKey(phone), err)
	}
	var r model.ReceiverInfo
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// IncDailyCmdCounter counts one attempt of cmd towards phone for today and
// reports whether it is still within limit. limit <= 0 disables the check.
func (s *Store) IncDailyCmdCounter(ctx context.Context, phone, cmd string, limit int, now time.Time) (bool, int64, error) {
	key := fmt.Sprintf("tata:cmd:%s:%s:%s", phone, cmd, now.UTC().Format("20060102"))
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis INCR %s: %w", key, err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, counterTTL).Err(); err != nil {
			return false, n, fmt.Errorf("redis EXPIRE %s: %w", key, err)
		}
	}
	if limit > 0 && n > int64(limit) {
		return false, n, nil
	}
	return true, n, nil
}
