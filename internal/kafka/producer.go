package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
)

// Topics names the streams the platform publishes on.
type Topics struct {
	EventFacts    string
	CheckInFacts  string
	BalanceFacts  string
	TransferFacts string
}

// eventFact wraps an event row with what happened to it; the event
// topic carries creations, updates and deletions alike.
type eventFact struct {
	Action string       `json:"action"`
	Event  models.Event `json:"event"`
}

// Publisher streams domain facts to Kafka, one writer per topic. In
// mock mode messages are logged and dropped so the services run
// without a broker.
type Publisher struct {
	topics  Topics
	writers map[string]*kafka.Writer
	mock    bool
	log     *logger.Logger
}

func NewPublisher(brokers []string, topics Topics, mock bool, log *logger.Logger) *Publisher {
	p := &Publisher{
		topics:  topics,
		writers: make(map[string]*kafka.Writer),
		mock:    mock,
		log:     log,
	}
	if mock {
		return p
	}
	for _, topic := range []string{topics.EventFacts, topics.CheckInFacts, topics.BalanceFacts, topics.TransferFacts} {
		p.writers[topic] = kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return p
}

// PublishEventCreated streams the event creation fact
func (p *Publisher) PublishEventCreated(ev models.Event) error {
	return p.publish(p.topics.EventFacts, eventKey(ev.ID), eventFact{Action: "created", Event: ev})
}

// PublishEventUpdated streams the event update fact
func (p *Publisher) PublishEventUpdated(ev models.Event) error {
	return p.publish(p.topics.EventFacts, eventKey(ev.ID), eventFact{Action: "updated", Event: ev})
}

// PublishEventDeleted streams the event deletion fact
func (p *Publisher) PublishEventDeleted(ev models.Event) error {
	return p.publish(p.topics.EventFacts, eventKey(ev.ID), eventFact{Action: "deleted", Event: ev})
}

// PublishCheckedIn streams a successful check-in
func (p *Publisher) PublishCheckedIn(fact models.CheckInFact) error {
	return p.publish(p.topics.CheckInFacts, eventKey(fact.EventID), fact)
}

// PublishCheckInUndone streams a reversed check-in
func (p *Publisher) PublishCheckInUndone(fact models.CheckInFact) error {
	return p.publish(p.topics.CheckInFacts, eventKey(fact.EventID), fact)
}

// PublishBalanceChanged streams one earmark mutation
func (p *Publisher) PublishBalanceChanged(fact models.BalanceFact) error {
	return p.publish(p.topics.BalanceFacts, fact.Wallet, fact)
}

// PublishTransfer streams one custody movement
func (p *Publisher) PublishTransfer(xfer models.Transfer) error {
	return p.publish(p.topics.TransferFacts, xfer.Token, xfer)
}

func (p *Publisher) publish(topic, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if p.mock {
		p.log.LogKafka("MOCK", topic, string(msgBytes))
		return nil
	}
	p.log.LogKafka("PUBLISH", topic, string(msgBytes))
	return p.writers[topic].WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// Close flushes and closes every writer.
func (p *Publisher) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func eventKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}
