package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// topicPrefix is the MQTT namespace the bus lives under; a notefile name
// like "telemetry.qi" is published/subscribed as "fleet/telemetry.qi", and
// "device:<uid>:relay.qi" becomes "fleet/device/<uid>/relay.qi".
const topicPrefix = "fleet/"

// MQTTOptions configures an MQTTClient connection.
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Log       zerolog.Logger
}

// MQTTClient is an Adapter backed by an MQTT broker — either the cloud
// broker the modem sidecar relays through, or the embedded local broker
// (see embedded.go) for standalone/dev deployments. Because MQTT delivers
// by push, inbound notes are buffered per-file as they arrive; Drain pops
// from that buffer rather than polling the broker directly.
type MQTTClient struct {
	conn      mqtt.Client
	log       zerolog.Logger
	connected atomic.Bool

	mu      sync.Mutex
	inbox   map[string][]Note
	nowMu   sync.RWMutex
	nowSet  bool
	nowVal  float64
}

// ConnectMQTT dials a broker and subscribes to the full bus namespace.
func ConnectMQTT(opts MQTTOptions) (*MQTTClient, error) {
	c := &MQTTClient{
		log:   opts.Log,
		inbox: make(map[string][]Note),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Msg("bus: mqtt connected, subscribing to fleet namespace")
	token := client.Subscribe(topicPrefix+"#", 1, c.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		c.log.Error().Err(err).Msg("bus: mqtt subscribe failed")
	}
}

func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("bus: mqtt connection lost, will auto-reconnect")
}

func (c *MQTTClient) onMessage(_ mqtt.Client, msg mqtt.Message) {
	fileName := topicToFile(msg.Topic())
	if fileName == clockTopicSuffix {
		c.handleClockMessage(msg.Payload())
		return
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Payload(), &body); err != nil {
		c.log.Warn().Err(err).Str("file", fileName).Msg("bus: dropping malformed note")
		return
	}

	c.mu.Lock()
	c.inbox[fileName] = append(c.inbox[fileName], Note{Body: body, Epoch: c.Now()})
	c.mu.Unlock()
}

// clockTopicSuffix carries periodic wall-clock beacons from the sidecar.
const clockTopicSuffix = "_clock"

func (c *MQTTClient) handleClockMessage(payload []byte) {
	var msg struct {
		Epoch float64 `json:"epoch"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	c.nowMu.Lock()
	c.nowVal = msg.Epoch
	c.nowSet = true
	c.nowMu.Unlock()
}

// Now returns the clock's best current guess, used only to timestamp notes
// as they're buffered; it is not the authoritative clock (see internal/clock).
func (c *MQTTClient) Now() float64 {
	c.nowMu.RLock()
	defer c.nowMu.RUnlock()
	return c.nowVal
}

func (c *MQTTClient) CurrentTime() (float64, bool) {
	c.nowMu.RLock()
	defer c.nowMu.RUnlock()
	return c.nowVal, c.nowSet
}

func (c *MQTTClient) Drain(ctx context.Context, fileName string, maxPerCall int) ([]Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.inbox[fileName]
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf) <= maxPerCall {
		delete(c.inbox, fileName)
		return buf, nil
	}
	out := make([]Note, maxPerCall)
	copy(out, buf[:maxPerCall])
	c.inbox[fileName] = buf[maxPerCall:]
	return out, nil
}

func (c *MQTTClient) Enqueue(ctx context.Context, fileName string, body map[string]any, sync bool) error {
	if !c.connected.Load() {
		return fmt.Errorf("bus: mqtt not connected")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	token := c.conn.Publish(fileToTopic(fileName), 1, false, payload)
	if sync {
		token.Wait()
		return token.Error()
	}
	return nil
}

// Close disconnects from the broker.
func (c *MQTTClient) Close() {
	c.conn.Disconnect(250)
}

func fileToTopic(fileName string) string {
	return topicPrefix + strings.ReplaceAll(fileName, ":", "/")
}

func topicToFile(topic string) string {
	rest := strings.TrimPrefix(topic, topicPrefix)
	return strings.ReplaceAll(rest, "/", ":")
}
