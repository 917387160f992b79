package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/trackline/trackline/pkg/events"
)

type NatsBus struct {
	Conn *nats.Conn
	Enc  *nats.EncodedConn
}

func NewNatsBus(url string) (*NatsBus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}

	ec, err := nats.NewEncodedConn(nc, nats.JSON_ENCODER)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats encoded conn failed: %w", err)
	}

	return &NatsBus{
		Conn: nc,
		Enc:  ec,
	}, nil
}

func (b *NatsBus) Close() {
	b.Enc.Close()
	b.Conn.Close()
}

func (b *NatsBus) PublishIssueEvent(event *events.IssueEvent) error {
	return b.Enc.Publish(events.IssueEventSubject, event)
}

func (b *NatsBus) PublishSprintEvent(event *events.SprintEvent) error {
	return b.Enc.Publish(events.SprintEventSubject, event)
}
