package vpp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	PAYLOAD_ONLINE  = "online"
	PAYLOAD_OFFLINE = "offline"
)

// Options carries the MQTT session parameters for a VPP connection. UnitId
// identifies the plant within the service and is part of every topic.
type Options struct {
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string
	UnitId    string
}

func MQTTOptsFromOptions(opts Options) *mqtt.ClientOptions {
	copts := mqtt.NewClientOptions()
	copts.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	copts.SetClientID(fmt.Sprintf("hass2vpp_%d", rand.IntN(1000)))
	if opts.Username != "" && opts.Password != "" {
		copts.SetUsername(opts.Username)
		copts.SetPassword(opts.Password)
	}
	copts.WillEnabled = true
	copts.WillPayload = []byte(PAYLOAD_OFFLINE)
	copts.WillRetained = true
	copts.WillTopic = bridgeStateTopic(opts.BaseTopic, opts.UnitId)
	copts.WillQos = 0

	return copts
}

func CreateMQTTClient(opts Options, copts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		copts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		copts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:         mqtt.NewClient(copts),
		opts:           opts,
		workModeRegexp: workModeCommandExtractor(opts.BaseTopic),
	}
}

type MQTTClient struct {
	client         mqtt.Client
	opts           Options
	workModeRegexp *regexp.Regexp
}

func (c *MQTTClient) baseTopic() string {
	return c.opts.BaseTopic
}

func (c *MQTTClient) unitId() string {
	return c.opts.UnitId
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic(), c.unitId())
}

func (c *MQTTClient) EnergyTopic() string {
	return fmt.Sprintf("%s/%s/energy", c.baseTopic(), c.unitId())
}

func (c *MQTTClient) MetricsTopic() string {
	return fmt.Sprintf("%s/%s/metrics", c.baseTopic(), c.unitId())
}

func (c *MQTTClient) WorkModeTopic() string {
	return fmt.Sprintf("%s/%s/workmode", c.baseTopic(), c.unitId())
}

// ParseWorkModeCommand extracts a WORKMODE command from an MQTT message.
// The topic must carry this client's unit id and the payload must be a JSON
// command with a non-empty mode.
func (c *MQTTClient) ParseWorkModeCommand(msg mqtt.Message) (*WorkModeCommand, error) {
	matches := c.workModeRegexp.FindAllStringSubmatch(msg.Topic(), 1)
	if len(matches) == 0 || len(matches[0]) != 2 {
		return nil, errors.New("invalid workmode command topic")
	}
	if matches[0][1] != c.unitId() {
		return nil, errors.New("workmode command for another unit")
	}
	var cmd WorkModeCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		return nil, err
	}
	if cmd.Mode == "" {
		return nil, errors.New("workmode command without mode")
	}
	return &cmd, nil
}

func (c *MQTTClient) PublishEnergy(data EnergyData, qos byte, continuation func(error), timeout time.Duration) {
	payload, err := json.Marshal(data)
	if err != nil {
		continuation(err)
		return
	}
	c.Publish(c.EnergyTopic(), payload, qos, false, continuation, timeout)
}

func (c *MQTTClient) PublishMetrics(data MetricsData, qos byte, continuation func(error), timeout time.Duration) {
	payload, err := json.Marshal(data)
	if err != nil {
		continuation(err)
		return
	}
	c.Publish(c.MetricsTopic(), payload, qos, false, continuation, timeout)
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToWorkModeTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.WorkModeTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	token := c.client.Unsubscribe(topic)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT unsubscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func workModeCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("%s/([a-zA-Z0-9_]+)/workmode$", baseTopic))
}

func bridgeStateTopic(baseTopic, unitId string) string {
	return fmt.Sprintf("%s/%s/bridge/state", baseTopic, unitId)
}
