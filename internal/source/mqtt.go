package source

import (
	"context"
	"fmt"
	"log"
	"time"

	"backend-mtbtrainer/internal/merge"
	"backend-mtbtrainer/internal/sensor"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout   = 10 * time.Second
	mqttSubscribeTimeout = 5 * time.Second
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
}

// MQTT subscribes to a topic carrying tagged samples, one object or an array
// per message. A lost connection ends this source only.
type MQTT struct {
	cfg  MQTTConfig
	gate gate

	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func NewMQTT(cfg MQTTConfig) *MQTT {
	return &MQTT{cfg: cfg, newClient: mqtt.NewClient}
}

func (m *MQTT) Name() string { return "mqtt:" + m.cfg.Topic }

func (m *MQTT) options(lost chan<- error) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetAutoReconnect(false)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	}
	return opts
}

func (m *MQTT) Run(ctx context.Context, emit merge.Emit) error {
	if !m.gate.open(emit) {
		return ErrAlreadySubscribed
	}
	defer m.gate.close()

	lost := make(chan error, 1)
	client := m.newClient(m.options(lost))

	log.Printf("source: mqtt connecting to %s", m.cfg.Broker)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("mqtt connect timeout: %w", merge.ErrSourceUnavailable)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %v: %w", err, merge.ErrSourceUnavailable)
	}
	defer client.Disconnect(250)

	sub := client.Subscribe(m.cfg.Topic, m.cfg.QoS, m.onMessage)
	if !sub.WaitTimeout(mqttSubscribeTimeout) {
		return fmt.Errorf("mqtt subscribe %s timeout: %w", m.cfg.Topic, merge.ErrSourceUnavailable)
	}
	if err := sub.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %v: %w", m.cfg.Topic, err, merge.ErrSourceUnavailable)
	}
	log.Printf("source: mqtt subscribed to %s", m.cfg.Topic)

	select {
	case <-ctx.Done():
		client.Unsubscribe(m.cfg.Topic).WaitTimeout(time.Second)
		return nil
	case err := <-lost:
		return fmt.Errorf("mqtt connection lost: %w", err)
	}
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	samples, err := sensor.DecodeBatch(msg.Payload())
	if err != nil {
		log.Printf("source: mqtt %s: skipping malformed payload: %v", msg.Topic(), err)
		return
	}
	for _, s := range samples {
		if _, subscribed := m.gate.offer(s); !subscribed {
			return
		}
	}
}
