// Package mqttstatus mirrors every STATUS packet the control loop
// emits onto an MQTT topic, for operators who already pipe telemetry
// through a broker instead of sniffing the status multicast group.
// It is a pure secondary sink: a publish failure never affects the
// multicast status protocol itself.
package mqttstatus

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cwsl/radiod/internal/rlog"
)

// Publisher mirrors STATUS packets to "<TopicPrefix>/<ssrc>".
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// Config names the broker and topic prefix; TopicPrefix defaults to
// "radiod/status" when empty.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// New connects to the configured broker. Connection is attempted
// synchronously so a misconfigured broker fails fast at startup rather
// than silently dropping every mirrored packet later.
func New(cfg Config) (*Publisher, error) {
	topic := defaultTopicPrefix(cfg.TopicPrefix)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		rlog.Printf("mqttstatus: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqttstatus: connect: %w", token.Error())
	}

	return &Publisher{client: client, topic: topic, qos: 0}, nil
}

// Mirror publishes payload to "<topic>/<ssrc>", retained so a client
// subscribing late still sees the last known status. Matches the
// (ssrc uint32, payload []byte) shape status.Loop.SetMirror expects.
func (p *Publisher) Mirror(ssrc uint32, payload []byte) {
	if p == nil {
		return
	}
	t := topicFor(p.topic, ssrc)
	token := p.client.Publish(t, p.qos, true, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			rlog.V(1).Printf("mqttstatus: publish to %s: %v", t, token.Error())
		}
	}()
}

// Close disconnects from the broker, waiting up to 250ms for
// in-flight publishes to drain.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}

func topicFor(prefix string, ssrc uint32) string {
	return fmt.Sprintf("%s/%d", prefix, ssrc)
}

func defaultTopicPrefix(prefix string) string {
	if prefix == "" {
		return "radiod/status"
	}
	return prefix
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "radiod_" + hex.EncodeToString(b)
}
