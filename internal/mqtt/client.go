package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultKeepAlive      = 30 * time.Second
	defaultMaxReconnect   = time.Minute
	resubscribeTimeout    = 5 * time.Second
	tokenPollInterval     = 100 * time.Millisecond
	disconnectQuiesceTime = 250
)

type ClientOptions struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	Clean     bool
	KeepAlive int // seconds

	// MaxReconnectInterval caps paho's reconnect backoff.
	MaxReconnectInterval time.Duration

	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

type Handler func(topic string, payload []byte)

// Client is a paho client that remembers its subscriptions and restores them
// whenever the connection comes back.
type Client struct {
	pc     paho.Client
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string]route
}

type route struct {
	qos     byte
	handler Handler
}

func NewClient(o ClientOptions) (*Client, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	logger := log.Logger
	if o.Logger != nil {
		logger = *o.Logger
	}
	broker := brokerURL(o.Broker)
	cl := &Client{
		logger: logger.With().Str("broker", broker).Str("client_id", o.ClientID).Logger(),
		subs:   make(map[string]route),
	}

	keepAlive := defaultKeepAlive
	if o.KeepAlive > 0 {
		keepAlive = time.Duration(o.KeepAlive) * time.Second
	}
	maxReconnect := o.MaxReconnectInterval
	if maxReconnect <= 0 {
		maxReconnect = defaultMaxReconnect
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(o.ClientID).
		SetCleanSession(o.Clean).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(maxReconnect).
		SetOnConnectHandler(cl.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			cl.logger.Warn().Err(err).Msg("mqtt connection lost, reconnecting")
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}
	cl.pc = paho.NewClient(opts)
	return cl, nil
}

func brokerURL(b string) string {
	if !strings.Contains(b, "://") {
		return "tcp://" + b
	}
	return b
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, t paho.Token) error {
	for {
		if t.WaitTimeout(tokenPollInterval) {
			return t.Error()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (c *Client) Connect(ctx context.Context) error {
	return wait(ctx, c.pc.Connect())
}

func (c *Client) Disconnect() {
	if c.pc != nil && c.pc.IsConnectionOpen() {
		c.pc.Disconnect(disconnectQuiesceTime)
	}
}

// Subscribe registers handler for topic. A second call for the same topic
// replaces the handler.
func (c *Client) Subscribe(ctx context.Context, topic string, qos byte, handler Handler) error {
	c.mu.Lock()
	c.subs[topic] = route{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := wait(ctx, c.pc.Subscribe(topic, qos, callback(handler))); err != nil {
		c.logger.Error().Err(err).Str("topic", topic).Uint8("qos", qos).Msg("mqtt subscribe failed")
		return err
	}
	c.logger.Info().Str("topic", topic).Uint8("qos", qos).Msg("mqtt subscribed")
	return nil
}

func (c *Client) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	return wait(ctx, c.pc.Publish(topic, qos, retain, payload))
}

func callback(h Handler) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		h(m.Topic(), m.Payload())
	}
}

func (c *Client) onConnect(pc paho.Client) {
	c.mu.RLock()
	subs := make(map[string]route, len(c.subs))
	for topic, r := range c.subs {
		subs[topic] = r
	}
	c.mu.RUnlock()

	c.logger.Info().Int("subscriptions", len(subs)).Msg("mqtt connected")
	for topic, r := range subs {
		t := pc.Subscribe(topic, r.qos, callback(r.handler))
		switch {
		case !t.WaitTimeout(resubscribeTimeout):
			c.logger.Warn().Str("topic", topic).Msg("mqtt resubscribe timed out, retrying on next reconnect")
		case t.Error() != nil:
			c.logger.Error().Err(t.Error()).Str("topic", topic).Msg("mqtt resubscribe failed")
		default:
			c.logger.Debug().Str("topic", topic).Msg("mqtt resubscribed")
		}
	}
}
