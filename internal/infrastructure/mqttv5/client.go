package mqttv5

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nerrad567/horn-node/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 30 // seconds
	maxQoS                = 2
)

// Logger interface for optional logging support.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
type MessageHandler func(topic string, payload []byte, attachment map[string][]byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is an MQTT 5 connection with tracked subscriptions.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	cm     *autopaho.ConnectionManager
	router *paho.StandardRouter
	cfg    config.BusConfig
	broker *url.URL

	subs  map[string]subscription
	subMu sync.RWMutex

	connected atomic.Bool
	cancel    context.CancelFunc
	handlers  sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect dials brokerURL and waits until the first connection is up or
// ctx expires.
func Connect(ctx context.Context, cfg config.BusConfig, brokerURL string) (*Client, error) {
	u, err := url.Parse(brokerURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, brokerURL)
	}

	c := &Client{
		router: paho.NewStandardRouter(),
		cfg:    cfg,
		broker: u,
		subs:   make(map[string]subscription),
	}

	pahoCfg := autopaho.ClientConfig{
		BrokerUrls:        []*url.URL{u},
		KeepAlive:         defaultKeepAlive,
		ConnectRetryDelay: retryDelay(cfg.Reconnect.InitialDelay),
		ConnectTimeout:    defaultConnectTimeout,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.connected.Store(true)
			c.restoreSubscriptions(cm)
		},
		OnConnectError: func(err error) {
			c.connected.Store(false)
			c.logWarn("MQTT5 connect attempt failed", "broker", u.String(), "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.Broker.ClientID,
			Router:   c.router,
			OnServerDisconnect: func(d *paho.Disconnect) {
				c.connected.Store(false)
				c.logWarn("MQTT5 server disconnected", "broker", u.String(), "reason", d.ReasonCode)
			},
			OnClientError: func(err error) {
				c.connected.Store(false)
				c.logWarn("MQTT5 client error", "broker", u.String(), "error", err)
			},
		},
	}
	if u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "mqtts" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.Auth.Username != "" {
		pahoCfg.SetUsernamePassword(cfg.Auth.Username, []byte(cfg.Auth.Password))
	}

	// The connection manager lives until Close, not until ctx expires.
	connCtx, cancel := context.WithCancel(context.Background())
	cm, err := autopaho.NewConnection(connCtx, pahoCfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, u, err)
	}

	awaitCtx, awaitCancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer awaitCancel()
	if err := cm.AwaitConnection(awaitCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, u, err)
	}

	c.cm = cm
	c.cancel = cancel
	c.connected.Store(true)
	return c, nil
}

func retryDelay(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) restoreSubscriptions(cm *autopaho.ConnectionManager) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.subs) == 0 {
		return
	}

	sub := &paho.Subscribe{Subscriptions: make(map[string]paho.SubscribeOptions, len(c.subs))}
	for topic, s := range c.subs {
		sub.Subscriptions[topic] = paho.SubscribeOptions{QoS: s.qos}
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
	defer cancel()
	if _, err := cm.Subscribe(ctx, sub); err != nil {
		c.logWarn("MQTT5 resubscribe failed", "error", err)
	}
}

// Publish sends payload to topic with the attachment as user properties.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, attachment map[string][]byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	pubCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	_, err := c.cm.Publish(pubCtx, &paho.Publish{
		QoS:     qos,
		Retain:  retained,
		Topic:   topic,
		Payload: payload,
		Properties: &paho.PublishProperties{
			User: toUserProperties(attachment),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers handler for topic and subscribes on the broker.
func (c *Client) Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()
	c.router.RegisterHandler(topic, c.dispatch(handler))

	subCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	_, err := c.cm.Subscribe(subCtx, &paho.Subscribe{
		Subscriptions: map[string]paho.SubscribeOptions{
			topic: {QoS: qos},
		},
	})
	if err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Unsubscribe stops delivering topic to its handler. The broker-side
// subscription ends with the connection.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	c.forget(topic)
	return nil
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subs, topic)
	c.subMu.Unlock()
	c.router.UnregisterHandler(topic)
}

// dispatch runs handler off the receive loop and recovers panics.
func (c *Client) dispatch(handler MessageHandler) paho.MessageHandler {
	return func(p *paho.Publish) {
		topic := p.Topic
		payload := p.Payload
		attachment := fromUserProperties(p.Properties)

		c.handlers.Add(1)
		go func() {
			defer c.handlers.Done()
			defer func() {
				if r := recover(); r != nil {
					c.logError("MQTT5 handler panic recovered", "topic", topic, "panic", r)
				}
			}()
			if err := handler(topic, payload, attachment); err != nil {
				c.logWarn("MQTT5 handler returned error", "topic", topic, "error", err)
			}
		}()
	}
}

// Close disconnects and waits for in-flight handlers.
func (c *Client) Close() error {
	if c == nil || c.cm == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
	defer cancel()

	err := c.cm.Disconnect(ctx)
	c.cancel()
	c.connected.Store(false)
	c.handlers.Wait()
	if err != nil {
		return fmt.Errorf("mqttv5 disconnect: %w", err)
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// HealthCheck reports whether the connection is usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqttv5 health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// BrokerAddress returns the broker URL this client dials.
func (c *Client) BrokerAddress() string {
	return c.broker.String()
}

// SetLogger sets a logger for connection and handler errors.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) logWarn(msg string, args ...any) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l != nil {
		l.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l != nil {
		l.Error(msg, args...)
	}
}
