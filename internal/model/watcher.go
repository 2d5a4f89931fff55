package model

type Call struct {
	Value bool `json:"value"`
}

type Refresh struct {
	Value bool `json:"value"`
}

type Park struct {
	Value bool `json:"value"`
}

// ReceiverType tells the device how to reach whoever asked.
type ReceiverType int

const (
	ReceiverGcm ReceiverType = iota
	ReceiverSmsHuman
	ReceiverSmsMachine
	ReceiverService
)

func (t ReceiverType) Valid() bool {
	return t >= ReceiverGcm && t <= ReceiverService
}

type ReceiverInfo struct {
	Type        ReceiverType `json:"type"`
	PhoneNumber string       `json:"phone_number"`
}

// Watcher is the operator -> device command set. Every field is optional.
type Watcher struct {
	Call     *Call         `json:"call,omitempty"`
	Refresh  *Refresh      `json:"refresh,omitempty"`
	Park     *Park         `json:"park,omitempty"`
	Receiver *ReceiverInfo `json:"receiver,omitempty"`
	Service  *Service      `json:"service,omitempty"`
}

// Empty reports whether no field is set.
func (w Watcher) Empty() bool {
	return w.Call == nil && w.Refresh == nil && w.Park == nil && w.Receiver == nil && w.Service == nil
}
