package codec

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"tata-codec/internal/model"
)

const mapsURL = "http://maps.google.com/?q="

// ProtectorHuman renders a report as an SMS a person can read. Text cannot
// be turned back into a report.
type ProtectorHuman struct {
	// Location for the report timestamp; nil means time.Local.
	Location *time.Location
}

func (h ProtectorHuman) Serialize(p model.Protector) string {
	var out strings.Builder

	if c := p.CarLocation; c != nil {
		fmt.Fprintf(&out, "%s%s\n\n", mapsURL, c.Position)
		fmt.Fprintf(&out, "%.2f meters, %.2f %%, %s\n\n",
			c.Accuracy, c.Battery*100, model.FormatTimestamp(c.Timestamp, h.Location))
	}

	if p.Service != nil && p.Service.Value {
		out.WriteString("Service on\n\n")
	}

	if pk := p.ParkLocation; pk != nil {
		if p.CarLocation == nil {
			// no fresh fix, the last park location is the best we have
			fmt.Fprintf(&out, "Last park location\n\n%s%s\n\n%.2f meters\n\n",
				mapsURL, pk.Position, pk.Accuracy)
		} else {
			fmt.Fprintf(&out, "Park distance %.2f meters\n\n",
				model.DistanceBetween(p.CarLocation, pk))
		}
	}

	return out.String()
}

func (ProtectorHuman) Deserialize(string) (model.Protector, error) {
	return model.Protector{}, ErrUnsupported
}

// HumanCommand is one entry of the fixed command vocabulary.
type HumanCommand struct {
	Text  string
	apply func(w *model.Watcher)
}

var humanCommands = []HumanCommand{
	{"location", func(w *model.Watcher) { w.Refresh = &model.Refresh{Value: true} }},
	{"call", func(w *model.Watcher) { w.Call = &model.Call{Value: true} }},
	{"park on", func(w *model.Watcher) { w.Park = &model.Park{Value: true} }},
	{"park off", func(w *model.Watcher) { w.Park = &model.Park{Value: false} }},
	{"service on", func(w *model.Watcher) { w.Service = &model.Service{Value: true} }},
	{"service off", func(w *model.Watcher) { w.Service = &model.Service{Value: false} }},
}

// Commands returns every command WatcherHuman accepts, in help order. The
// slice is a copy.
func Commands() []HumanCommand {
	return slices.Clone(humanCommands)
}

// WatcherHuman parses operator commands. Matching is exact and
// case-sensitive; exactly one Watcher field is set on success.
type WatcherHuman struct{}

// Serialize always returns "", commands are never rendered for people.
func (WatcherHuman) Serialize(model.Watcher) string { return "" }

func (WatcherHuman) Deserialize(s string) (model.Watcher, error) {
	for _, c := range humanCommands {
		if c.Text == s {
			var w model.Watcher
			c.apply(&w)
			return w, nil
		}
	}
	return model.Watcher{}, fmt.Errorf("%q: %w", s, ErrUnknownCommand)
}
