// Package queue wires the welcome-email pipeline onto RabbitMQ: registration
// publishes a message, consumers dedupe against the cache and hand it to the
// SMTP sender.
package queue

import (
	"context"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// Producer interface provides the Publish method to publish messages to RabbitMQ.
// Publish sends a message body as a byte array to RabbitMQ.
// Returns an error if there was a problem.
type Producer interface {
	Publish(body []byte) error
}

// Consumer interface provides the Consume method to consume messages from RabbitMQ.
// Consume listens to messages from RabbitMQ and handles the message stream.
// Returns the stream of RabbitMQ Delivery and an error if there was a problem.
type Consumer interface {
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
}

// ProducerFactory instantiates new producers over an established connection,
// channel and queue.
type ProducerFactory interface {
	CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error)
}

// ConsumerFactory instantiates new consumers over an established connection,
// channel and queue.
type ConsumerFactory interface {
	CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error)
}

// Queue holds slices of Producers and Consumers which can be used to send and
// consume messages.
type Queue struct {
	Producers []Producer
	Consumers []Consumer

	conn *amqp.Connection
}

// connect establishes a connection to RabbitMQ and opens a new channel.
// The function listens for closure of connection and logs any closure error.
func connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	if err = ch.Confirm(false); err != nil {
		return nil, nil, err
	}

	notifyClose := make(chan *amqp.Error)
	conn.NotifyClose(notifyClose)

	go func() {
		err := <-notifyClose
		if err != nil {
			log.Printf("RabbitMQ connection closed: %v", err)
		}
	}()

	return conn, ch, nil
}

// InitQueue initializes a Queue with producers and consumers. It establishes a
// connection to the RabbitMQ instance at the given URL, declares a durable
// queue under the given name, and uses the factories to create the producers
// and consumers bound to it.
func InitQueue(url string, queueName string, prodFactories []ProducerFactory, consFactories []ConsumerFactory) (*Queue, error) {
	conn, ch, err := connect(url)
	if err != nil {
		return nil, err
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return nil, err
	}

	var producers []Producer
	var consumers []Consumer

	for _, prodFactory := range prodFactories {
		producer, err := prodFactory.CreateProducer(conn, ch, &queue)
		if err != nil {
			return nil, err
		}
		producers = append(producers, producer)
	}

	for _, consFactory := range consFactories {
		consumer, err := consFactory.CreateConsumer(conn, ch, &queue)
		if err != nil {
			return nil, err
		}
		consumers = append(consumers, consumer)
	}

	return &Queue{
		Producers: producers,
		Consumers: consumers,
		conn:      conn,
	}, nil
}

// StartConsumers starts all consumers in the queue, each in its own goroutine.
// Cancelling the context stops them. The returned WaitGroup can be used to
// wait for all consumers to finish.
func (q *Queue) StartConsumers(ctx context.Context) (*sync.WaitGroup, error) {
	var wg sync.WaitGroup

	for _, consumer := range q.Consumers {
		wg.Add(1)

		go func(c Consumer) {
			defer wg.Done()

			if _, err := c.Consume(ctx); err != nil {
				log.Printf("Error starting consumer: %v", err)
			}
		}(consumer)
	}

	return &wg, nil
}

// Close releases the underlying RabbitMQ connection.
func (q *Queue) Close() error {
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
