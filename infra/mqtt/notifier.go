// Package mqtt implements the realtime notifier on top of Eclipse Paho.
// Swap events are published to station- and admin-scoped topics; delivery is
// best effort and never blocks the swap transition that triggered it.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/evswap/stationd/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled        bool   `json:"enabled"`
	Broker         string `json:"broker"`
	ClientID       string `json:"client_id"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TopicPrefix    string `json:"topic_prefix"`
	QoS            byte   `json:"qos"`
	UseTLS         bool   `json:"use_tls"`
	ClientCert     string `json:"client_cert"`
	ClientKey      string `json:"client_key"`
	CABundle       string `json:"ca_bundle"`
	ConnectRetries int    `json:"connect_retries"`
	BackoffMS      int    `json:"backoff_ms"`
	PublishTimeout int    `json:"publish_timeout_ms"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "stationd/events"
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 500
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = 2000
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Notifier publishes JSON-encoded events to `<prefix>/<topic>`.
type Notifier struct {
	cli     pahoClient
	prefix  string
	qos     byte
	timeout time.Duration
	log     logger.Logger
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewNotifier connects to the broker, retrying per the config backoff.
func NewNotifier(cfg Config) (*Notifier, error) {
	cfg.SetDefaults()
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := newTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	n := &Notifier{
		cli:     newMQTTClient(opts),
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: time.Duration(cfg.PublishTimeout) * time.Millisecond,
		log:     logger.New("mqtt_notifier"),
	}
	backoff := time.Duration(cfg.BackoffMS) * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < cfg.ConnectRetries; attempt++ {
		tok := n.cli.Connect()
		tok.Wait()
		if lastErr = tok.Error(); lastErr == nil {
			return n, nil
		}
		n.log.Warnf("mqtt connect attempt %d failed: %v", attempt+1, lastErr)
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, fmt.Errorf("mqtt connect: %w", lastErr)
}

func newTLSConfig(cfg Config) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca bundle %s contains no certificates", cfg.CABundle)
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// Publish encodes the event as JSON and publishes it. The call waits at most
// the configured publish timeout for broker confirmation.
func (n *Notifier) Publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	full := n.prefix + "/" + topic
	tok := n.cli.Publish(full, n.qos, false, payload)
	if !tok.WaitTimeout(n.timeout) {
		return fmt.Errorf("publish %s: timeout", full)
	}
	return tok.Error()
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	n.cli.Disconnect(250)
}
