package model

import (
	"fmt"
	"time"
)

// DateTimeLayout is the device's "%D %T %Z" rendering.
const DateTimeLayout = "01/02/06 15:04:05 MST"

// FormatTimestamp renders epoch milliseconds in loc.
func FormatTimestamp(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(DateTimeLayout)
}

func (p Position) String() string {
	return fmt.Sprintf("%.7f,%.7f", p.Latitude, p.Longitude)
}

// Debug renderings use UTC so two decodes of the same bytes compare equal anywhere.

func (c CarLocation) String() string {
	return fmt.Sprintf("[%s %.2fm %.2f%% %s]",
		c.Position, c.Accuracy, c.Battery*100, FormatTimestamp(c.Timestamp, time.UTC))
}

func (p ParkLocation) String() string {
	return fmt.Sprintf("[%s %.2fm]", p.Position, p.Accuracy)
}

func (t StatusType) String() string {
	switch t {
	case ParkingDetected:
		return "ParkingDetected"
	case ParkingUpdated:
		return "ParkingUpdated"
	case CarTheftDetected:
		return "CarTheftDetected"
	}
	return fmt.Sprintf("StatusType(%d)", int(t))
}

func (s Status) String() string { return s.Type.String() }

func (t ReceiverType) String() string {
	switch t {
	case ReceiverGcm:
		return "GCM"
	case ReceiverSmsHuman:
		return "Human"
	case ReceiverSmsMachine:
		return "Machine"
	case ReceiverService:
		return "Service"
	}
	return fmt.Sprintf("ReceiverType(%d)", int(t))
}

func (r ReceiverInfo) String() string {
	return "[" + r.Type.String() + " " + r.PhoneNumber + "]"
}

func (s Service) String() string { return boolString(s.Value) }
func (c Call) String() string    { return boolString(c.Value) }
func (r Refresh) String() string { return boolString(r.Value) }
func (p Park) String() string    { return boolString(p.Value) }

func (p Protector) String() string {
	return "{" + optional(p.CarLocation) + " " + optional(p.ParkLocation) + " " +
		optional(p.Status) + " " + optional(p.Service) + "}"
}

func (w Watcher) String() string {
	return "{" + optional(w.Call) + " " + optional(w.Refresh) + " " + optional(w.Park) + " " +
		optional(w.Receiver) + " " + optional(w.Service) + "}"
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func optional[T fmt.Stringer](v *T) string {
	if v == nil {
		return "null"
	}
	return (*v).String()
}
