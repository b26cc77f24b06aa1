package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"smartdine/internal/logger"
)

// Exchange and queue names
const (
	OrdersExchange   = "orders_topic"
	OrderEventsQueue = "order_events_queue"
	OrderEventsDLX   = "order_events_dlx"
	OrderEventsDLQ   = "order_events_dead"
	orderEventsTTLms = 24 * 60 * 60 * 1000
	connectAttempts  = 5
)

// Binding ties a queue to the orders exchange
type Binding struct {
	Queue      string
	RoutingKey string
}

// Bindings is the queue topology declared on connect
var Bindings = []Binding{
	{Queue: OrderEventsQueue, RoutingKey: "order.#"},
}

// Connection wraps a RabbitMQ connection and channel with reconnect
type Connection struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New dials url and declares the topology
func New(url string, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger: log,
		url:    url,
	}

	if err := conn.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}
	return conn, nil
}

// connect establishes connection to RabbitMQ with retry logic. Callers hold mu
// or own the Connection exclusively.
func (c *Connection) connect() error {
	var err error

	for i := 0; i < connectAttempts; i++ {
		c.conn, err = amqp091.Dial(c.url)
		if err == nil {
			c.channel, err = c.conn.Channel()
			if err == nil {
				if setupErr := c.setupTopology(); setupErr != nil {
					c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", setupErr, nil)
					c.close()
					err = setupErr
				} else {
					c.logger.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", nil)
					return nil
				}
			} else {
				c.conn.Close()
			}
		}

		if i < connectAttempts-1 {
			wait := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", wait),
				"startup", err, nil)
			time.Sleep(wait)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", connectAttempts, err)
}

// setupTopology declares the orders exchange, the event queue with its dead
// letter queue, and the bindings.
func (c *Connection) setupTopology() error {
	for _, ex := range []struct{ name, kind string }{
		{OrdersExchange, "topic"},
		{OrderEventsDLX, "fanout"},
	} {
		err := c.channel.ExchangeDeclare(
			ex.name, // name
			ex.kind, // type
			true,    // durable
			false,   // auto-deleted
			false,   // internal
			false,   // no-wait
			nil,     // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to declare %s exchange: %w", ex.name, err)
		}
	}

	if _, err := c.channel.QueueDeclare(OrderEventsDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", OrderEventsDLQ, err)
	}
	if err := c.channel.QueueBind(OrderEventsDLQ, "", OrderEventsDLX, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", OrderEventsDLQ, err)
	}

	_, err := c.channel.QueueDeclare(
		OrderEventsQueue, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		amqp091.Table{
			"x-message-ttl":          orderEventsTTLms,
			"x-dead-letter-exchange": OrderEventsDLX,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", OrderEventsQueue, err)
	}

	for _, b := range Bindings {
		if err := c.channel.QueueBind(b.Queue, b.RoutingKey, OrdersExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s with routing key %s: %w", b.Queue, b.RoutingKey, err)
		}
	}
	return nil
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsClosed checks if the connection is closed
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect drops the current connection and dials again
func (c *Connection) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	return c.connect()
}
