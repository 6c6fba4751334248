// Package queue carries due-campaign fire jobs between the scheduler loop
// and the delivery consumer over RabbitMQ.
package queue

import (
	"encoding/json"
	"log/slog"

	"github.com/streadway/amqp"
)

const (
	KindRecurring = "recurring"
	KindScheduled = "scheduled"
)

// FireJob tells the consumer one campaign is due.
type FireJob struct {
	CampaignID int    `json:"campaign_id"`
	Kind       string `json:"kind"`
}

type Publisher struct {
	ch    *amqp.Channel
	queue string
}

func NewPublisher(conn *amqp.Connection, queueName string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch, queue: queueName}, nil
}

func (p *Publisher) Publish(job FireJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.ch.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (p *Publisher) Close() error { return p.ch.Close() }

// Consume drains fire jobs with manual acks. A failed job is requeued
// once; a second failure is dropped (FireDue is idempotent and the
// scheduler loop will re-publish the campaign while it stays due).
func Consume(conn *amqp.Connection, queueName string, handler func(FireJob) error) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for d := range msgs {
		var job FireJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			slog.Error("invalid fire job", "error", err)
			d.Ack(false)
			continue
		}

		if err := handler(job); err != nil {
			slog.Error("fire job failed", "campaign_id", job.CampaignID, "kind", job.Kind, "error", err)
			if !d.Redelivered {
				d.Nack(false, true)
				continue
			}
			d.Nack(false, false)
			continue
		}
		d.Ack(false)
	}
	return nil
}
