// Package natsutil connects the calendar services to JetStream and makes
// sure the activity stream exists before anyone publishes a record to it.
package natsutil

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flowcal/project/internal/messaging"
)

const clientName = "flowcal"

// Client bundles the raw connection with its JetStream context. The API
// publishes activity records through JS; the web service subscribes per user.
type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
}

// ConnectJetStream dials the server, obtains a JetStream context and ensures
// the activity stream. The connection reconnects indefinitely once
// established; only the initial dial can fail here.
func ConnectJetStream(url string) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	if err := messaging.EnsureStreams(js); err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, fmt.Errorf("ensure activity stream: %w", err)
	}
	return &Client{Conn: conn, JS: js}, nil
}

// ConnectJetStreamWithRetry keeps dialing until the deadline so the services
// come up cleanly while the broker is still starting.
func ConnectJetStreamWithRetry(url string, timeout time.Duration) (*Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ConnectJetStream(url)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("connect jetstream timeout after %s: %w", timeout, lastErr)
}

// Close drains in-flight activity publishes before closing. Safe on nil.
func (c *Client) Close() {
	if c == nil || c.Conn == nil {
		return
	}
	_ = c.Conn.Drain()
	c.Conn.Close()
}

// Publisher is the seam the activity recorder publishes through, so tests
// can capture records without a broker.
type Publisher interface {
	Publish(subject string, payload []byte) error
}

// JetStreamPublisher publishes synchronously and surfaces the stream ack
// error, so a lost record is at least logged by the caller.
type JetStreamPublisher struct {
	JS nats.JetStreamContext
}

func (p JetStreamPublisher) Publish(subject string, payload []byte) error {
	_, err := p.JS.Publish(subject, payload)
	return err
}
