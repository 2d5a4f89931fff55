package pipeline

import (
	"context"
	"encoding/json"
)

// ReportPublisher publishes an encoded report on a per-device topic.
type ReportPublisher interface {
	PublishReport(phone string, payload []byte) error
}

// PublishSink forwards reports as JSON through a ReportPublisher.
type PublishSink struct {
	Publisher ReportPublisher
}

func (PublishSink) Name() string { return "nats" }

func (s PublishSink) Forward(_ context.Context, r Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.Publisher.PublishReport(r.Phone, b)
}
