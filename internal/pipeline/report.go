package pipeline

import (
	"encoding/json"
	"time"

	"tata-codec/internal/model"
)

// Report is a decoded device report plus what the relay derived from it.
// It is the payload every downstream sink receives.
type Report struct {
	Phone        string          `json:"phone"`
	ReceivedAt   time.Time       `json:"received_at"`
	Protector    model.Protector `json:"protector"`
	Text         string          `json:"text"`
	Notification string          `json:"notification"`
	ParkDistance *float64        `json:"park_distance,omitempty"`
	FixValid     bool            `json:"fix_valid"`

	// LastCarLocation is the previously stored fix, set only when the
	// report carries none.
	LastCarLocation *model.CarLocation `json:"last_car_location,omitempty"`
}

// NotificationText is the one-line summary an operator sees first.
func NotificationText(p model.Protector) string {
	if p.Status != nil {
		switch p.Status.Type {
		case model.ParkingDetected:
			return "Parking detected"
		case model.ParkingUpdated:
			return "Park location updated"
		case model.CarTheftDetected:
			return "Car theft detected!"
		}
	}
	if p.CarLocation == nil {
		return "Update without location"
	}
	return "Location update"
}

func BuildReport(phone string, at time.Time, p model.Protector, text string) Report {
	r := Report{
		Phone:        phone,
		ReceivedAt:   at,
		Protector:    p,
		Text:         text,
		Notification: NotificationText(p),
	}
	if p.CarLocation != nil {
		r.FixValid = p.CarLocation.Position.Valid()
		if p.ParkLocation != nil {
			d := model.DistanceBetween(p.CarLocation, p.ParkLocation)
			r.ParkDistance = &d
		}
	}
	return r
}

// Map is the report as a generic JSON object, for sinks that need one.
func (r Report) Map() (map[string]any, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
