// Package notify publishes notification events to RabbitMQ.  Delivery
// is fire-and-forget: a broker outage is logged and the triggering
// operation proceeds unaffected.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/moimlab/moim-server/internal/queue"
)

const notifyQueueName = "notify.events"

// Notifier publishes to the notify.events queue.  Each Dispatch runs
// in its own goroutine with a fresh connection; the push worker is a
// separate process, so publish volume here is one message per state
// change and connection reuse is not worth the failure handling.
type Notifier struct {
	url     string
	timeout time.Duration
}

func New(url string) *Notifier {
	return &Notifier{url: url, timeout: 10 * time.Second}
}

// Dispatch queues the event for delivery and returns immediately.
func (n *Notifier) Dispatch(ev queue.NotificationEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.publish(ctx, ev); err != nil {
			log.Printf("notify: dropping %s event for reservation %d: %v", ev.Type, ev.ReservationID, err)
		}
	}()
}

func (n *Notifier) publish(ctx context.Context, ev queue.NotificationEvent) error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(notifyQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",              // default exchange
		notifyQueueName, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
