package codec

import "tata-codec/internal/model"

// ProtectorMachine is the reversible wire codec for device reports.
//
// Layout: carLocation parkLocation status service, absent fields as "*".
type ProtectorMachine struct{}

func (ProtectorMachine) Serialize(p model.Protector) string {
	return encodeFields(protectorLayout(&p))
}

// Deserialize consumes the whole stream or fails; a failed decode returns
// the zero Protector.
func (ProtectorMachine) Deserialize(s string) (model.Protector, error) {
	var p model.Protector
	if err := decodeFields(s, protectorLayout(&p)); err != nil {
		return model.Protector{}, err
	}
	return p, nil
}

// WatcherMachine is the reversible wire codec for operator commands.
//
// Layout: call refresh park receiver service, absent fields as "*".
type WatcherMachine struct{}

func (WatcherMachine) Serialize(w model.Watcher) string {
	return encodeFields(watcherLayout(&w))
}

func (WatcherMachine) Deserialize(s string) (model.Watcher, error) {
	var w model.Watcher
	if err := decodeFields(s, watcherLayout(&w)); err != nil {
		return model.Watcher{}, err
	}
	return w, nil
}
