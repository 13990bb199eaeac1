package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"

	"github.com/habitloop/habitloop/backend/server/notifications/email"
	"github.com/habitloop/habitloop/backend/storage/cache"
)

// dedupeTTL bounds how long a processed message id is remembered.
const dedupeTTL = 72 * time.Hour

// globalCount is used in the round robin assignment of producers to messages.
var globalCount int

// WelcomeProducerFactory creates new WelcomeProducer instances.
type WelcomeProducerFactory struct{}

// WelcomeConsumerFactory creates new WelcomeConsumer instances.
// The Cache dedupes already-processed messages across redeliveries.
type WelcomeConsumerFactory struct {
	Cache cache.CacheInterface
}

// WelcomeProducer publishes welcome messages to the AMQP queue.
type WelcomeProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// WelcomeConsumer reads welcome messages off the AMQP queue and sends the mails.
type WelcomeConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	cache   cache.CacheInterface
}

// WelcomeMessage is the payload published on registration.
type WelcomeMessage struct {
	Id       string `json:"id"`       // the id of the message, used for deduplication
	To       string `json:"to"`       // the recipient of the message
	Username string `json:"username"` // the display name used in the greeting
}

// CreateProducer instantiates a new WelcomeProducer bound to the given
// connection, channel and queue.
func (f *WelcomeProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &WelcomeProducer{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// CreateConsumer instantiates a new WelcomeConsumer bound to the given
// connection, channel, queue and the factory's cache.
func (f *WelcomeConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &WelcomeConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		cache:   f.Cache,
	}, nil
}

// Publish publishes the given message body to the queue.
func (wp *WelcomeProducer) Publish(body []byte) error {
	err := wp.channel.Publish(
		"",            // exchange
		wp.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Consume sets up a consumer on the queue and launches a goroutine that
// continuously reads from it. Each message is unmarshalled, checked against
// the dedupe cache, and either sent as a welcome mail or discarded.
func (wc *WelcomeConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := wc.channel.Consume(
		wc.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					return
				}

				message := &WelcomeMessage{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal welcome message: %v", err)
					d.Nack(false, false) // malformed, drop without requeue
					continue
				}

				var processed bool
				err := wc.cache.Get(ctx, "welcome_"+message.Id, &processed)
				if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
					log.Printf("error checking cache: %v", err)
					d.Nack(false, true) // requeue the message in case of transient error
					continue
				}

				if processed {
					d.Ack(false)
					continue
				}

				if err := email.SendWelcomeEmail(message.To, message.Username); err != nil {
					log.Printf("failed to send welcome email: %v", err)
					d.Nack(false, true) // requeue the message in case of transient error
				} else {
					d.Ack(false)
					if err := wc.cache.Set(ctx, "welcome_"+message.Id, true, dedupeTTL); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildWelcomeQueue initializes a new Queue for welcome mails with the given
// numbers of producers and consumers, deduping through the given cache.
func BuildWelcomeQueue(rabbitMQURL string, numProducers int, numConsumers int, dedupeCache cache.CacheInterface) (*Queue, error) {
	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &WelcomeProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &WelcomeConsumerFactory{Cache: dedupeCache}
	}

	return InitQueue(rabbitMQURL, "welcomeQueue", prodFactories, consFactories)
}

// ProcessWelcome serializes a welcome message and publishes it onto the queue
// using one of the producers in a round-robin manner.
func ProcessWelcome(msg *WelcomeMessage, q *Queue) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.New("failed to marshal welcome message: " + err.Error())
	}

	producerCount := len(q.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	producer := q.Producers[globalCount%producerCount]
	globalCount++

	if err := producer.Publish(body); err != nil {
		return errors.New("failed to publish welcome message: " + err.Error())
	}

	return nil
}
