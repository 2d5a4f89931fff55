package model

// CarLocation is the fix reported by the device.
type CarLocation struct {
	Position  Position `json:"position"`
	Accuracy  float32  `json:"accuracy"`  // meters
	Battery   float32  `json:"battery"`   // 0.0 - 1.0
	Timestamp int64    `json:"timestamp"` // epoch ms
}

func (c CarLocation) Location() Position { return c.Position }

// ParkLocation is the last fix taken when parking was detected.
type ParkLocation struct {
	Position Position `json:"position"`
	Accuracy float32  `json:"accuracy"`
}

func (p ParkLocation) Location() Position { return p.Position }

type StatusType int

const (
	ParkingDetected StatusType = iota
	ParkingUpdated
	CarTheftDetected
)

// Valid reports whether the ordinal is one the device can send.
func (t StatusType) Valid() bool {
	return t >= ParkingDetected && t <= CarTheftDetected
}

type Status struct {
	Type StatusType `json:"type"`
}

// Service is the maintenance-mode flag, shared by both root records.
type Service struct {
	Value bool `json:"value"`
}

// Protector is the device -> operator report. Every field is optional.
type Protector struct {
	CarLocation  *CarLocation  `json:"car_location,omitempty"`
	ParkLocation *ParkLocation `json:"park_location,omitempty"`
	Status       *Status       `json:"status,omitempty"`
	Service      *Service      `json:"service,omitempty"`
}
