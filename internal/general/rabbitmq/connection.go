package rabbitmq

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"ride-convoy/internal/general/config"
	"ride-convoy/internal/general/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Client is a RabbitMQ connector with auto-reconnect and topology setup.
// Session consumers opened on it do not survive a reconnect; they report
// the loss and the caller opens a new one.
type Client struct {
	url      string
	exchange string
	appID    string
	logger   *logger.Logger
	logCtx   context.Context // context for logging (without cancel)

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	pubMu       sync.Mutex
	pubConfirms chan amqp.Confirmation

	closeOnce sync.Once
	closed    chan struct{}
	reconnect chan struct{}
}

// ConnectRabbitMQ establishes a connection and starts a background watcher
// that reconnects on failures.
func ConnectRabbitMQ(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	client := &Client{
		url:       amqpURL(cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port),
		exchange:  cfg.RabbitMQ.Exchange,
		appID:     uuid.NewString(),
		logger:    log.Named("rabbitmq"),
		logCtx:    context.WithoutCancel(ctx), // avoid ctx cancel on reconnects
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}

	// initial connect (single attempt; further retries happen in the watcher)
	if err := client.connectOnce(); err != nil {
		return nil, err
	}

	go client.watch()

	return client, nil
}

// AppID identifies this client on every message it publishes.
func (client *Client) AppID() string {
	return client.appID
}

// Close stops the watcher and closes AMQP resources.
func (client *Client) Close() {
	client.closeOnce.Do(func() { close(client.closed) })

	client.mu.Lock()
	if client.pubChan != nil {
		_ = client.pubChan.Close()
		client.pubChan = nil
	}
	if client.conn != nil {
		_ = client.conn.Close()
		client.conn = nil
	}
	client.mu.Unlock()

	// close the confirms channel so any waiters exit cleanly
	client.pubMu.Lock()
	if client.pubConfirms != nil {
		close(client.pubConfirms)
		client.pubConfirms = nil
	}
	client.pubMu.Unlock()
}

func amqpURL(user, password, host string, port int) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/",
	}
	return u.String()
}

// connectOnce tries to connect and set up topology once.
func (client *Client) connectOnce() (err error) {
	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_open_channel_failed", "Failed to open RabbitMQ channel", err, nil)
		return fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}

	if err = declareTopology(ch, client.exchange); err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_declare_topology_failed", "Failed to declare RabbitMQ topology", err, map[string]any{
			"exchange": client.exchange,
		})
		return fmt.Errorf("rabbitmq: failed to declare topology: %w", err)
	}

	// enable publisher confirms on the publishing channel
	if err = ch.Confirm(false); err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_enable_confirms_failed", "Failed to enable publisher confirms", err, nil)
		return fmt.Errorf("rabbitmq: failed to enable confirms: %w", err)
	}

	client.pubMu.Lock()
	oldConfirms := client.pubConfirms
	client.pubConfirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	client.pubMu.Unlock()

	if oldConfirms != nil {
		close(oldConfirms)
	}

	// atomically install the new connection + publishing channel
	client.mu.Lock()
	if client.pubChan != nil && !client.pubChan.IsClosed() {
		_ = client.pubChan.Close()
	}
	client.conn = conn
	client.pubChan = ch
	client.mu.Unlock()

	// either the connection or the publisher channel closing triggers a reconnect
	go func(conn *amqp.Connection, ch *amqp.Channel) {
		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-client.closed:
			return
		case <-connClosed:
		case <-chClosed:
		}

		select {
		case client.reconnect <- struct{}{}:
		default:
		}
	}(conn, ch)

	client.logger.Info(client.logCtx, "rabbitmq_connected", "RabbitMQ connection established successfully", map[string]any{
		"exchange": client.exchange,
		"app_id":   client.appID,
	})

	return nil
}

// watch runs in background and attempts reconnects with exponential backoff.
func (client *Client) watch() {
	backoff := time.Second
	for {
		select {
		case <-client.closed:
			return
		case <-client.reconnect:
			for {
				select {
				case <-client.closed:
					return
				default:
				}

				err := client.connectOnce()
				if err == nil {
					backoff = time.Second
					client.logger.Info(client.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ and re-ensured topology", nil)
					break
				}

				client.logger.Error(client.logCtx, "retry_attempted", "Failed to reconnect to RabbitMQ", err, map[string]any{
					"backoff": backoff.String(),
				})

				select {
				case <-client.closed:
					return
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, 30*time.Second)
			}
		}
	}
}
