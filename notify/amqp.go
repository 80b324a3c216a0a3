package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig says where job events are published.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// handshakeTimeout bounds Connect when ctx carries no deadline.
const handshakeTimeout = 30 * time.Second

// AMQPNotifier publishes events as JSON to a durable fanout exchange.
type AMQPNotifier struct {
	Logger *log.Logger

	config   AMQPConfig
	conn     *amqp.Connection
	channel  *amqp.Channel
	mu       sync.Mutex
	isClosed bool
}

func NewAMQPNotifier(config AMQPConfig, logger *log.Logger) *AMQPNotifier {
	if config.Exchange == "" {
		config.Exchange = "epi-contentful-sync.jobs"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AMQPNotifier{Logger: logger, config: config}
}

// Connect dials the broker and declares the exchange.  Calling it again is a no-op.  ctx bounds
// the dial and the handshake.
func (n *AMQPNotifier) Connect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isClosed {
		return fmt.Errorf("notify: notifier is closed")
	}
	if n.conn != nil {
		return nil
	}

	conn, err := dial(ctx, n.config.URL)
	if err != nil {
		return fmt.Errorf("notify: failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("notify: failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		n.config.Exchange, // name
		"fanout",          // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("notify: failed to declare exchange: %w", err)
	}

	n.conn = conn
	n.channel = ch
	n.Logger.Printf("Connected to broker, publishing job events to '%s'", n.config.Exchange)
	return nil
}

// dial opens the connection like amqp.Dial, but gives up when ctx is done.
func dial(ctx context.Context, url string) (*amqp.Connection, error) {
	var stop func() bool
	config := amqp.Config{
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Properties: amqp.NewConnectionProperties(),
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// The library clears the deadline once the handshake is done.
			deadline, ok := ctx.Deadline()
			if !ok {
				deadline = time.Now().Add(handshakeTimeout)
			}
			if err := conn.SetDeadline(deadline); err != nil {
				conn.Close()
				return nil, err
			}
			stop = context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
			return conn, nil
		},
	}

	conn, err := amqp.DialConfig(url, config)
	if stop != nil {
		stop()
	}
	return conn, err
}

func (n *AMQPNotifier) Notify(ctx context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isClosed {
		return fmt.Errorf("notify: notifier is closed")
	}
	if n.channel == nil {
		return fmt.Errorf("notify: not connected, call Connect first")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal event: %w", err)
	}

	err = n.channel.PublishWithContext(
		ctx,
		n.config.Exchange,   // exchange
		n.config.RoutingKey, // routing key
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.JobID + "." + string(event.Type),
			Timestamp:    event.At,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("notify: failed to publish event: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isClosed {
		return nil
	}
	n.isClosed = true

	var errs []error
	if n.channel != nil {
		if err := n.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: errors during close: %v", errs)
	}
	return nil
}
