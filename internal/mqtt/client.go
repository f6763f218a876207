package mqtt

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"ledsignal-agent/internal/config"
	"ledsignal-agent/internal/core"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client publishes the unit's status to an MQTT broker so site monitoring
// can watch the LED units without speaking the controller's UDP protocol.
// It is publish-only; commands arrive exclusively over UDP.
type Client struct {
	client   mqtt.Client
	eventBus *core.EventBus
	stateFn  func() core.Snapshot
	prefix   string
	broker   string
}

// NewClient builds the MQTT client, or nil when MQTT is disabled.
func NewClient(cfg *config.Config, eventBus *core.EventBus, stateFn func() core.Snapshot) *Client {
	if !cfg.MQTT.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Keep trying at startup even if the broker is still booting.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetOrderMatters(false)

	// The broker announces us dead if the link drops.
	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		eventBus: eventBus,
		stateFn:  stateFn,
		prefix:   prefix,
		broker:   cfg.MQTT.Broker,
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("[MQTT] connected")
		client.Publish(prefix+"/availability", 1, true, "online")
		c.publishState(c.stateFn())
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] connection lost: %v. Retrying in background...", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Run connects and republishes the state on every agent event until ctx is
// cancelled.
func (c *Client) Run(ctx context.Context) {
	log.Printf("[MQTT] starting connection loop to %s...", c.broker)
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		// With ConnectRetry on, an error here means broken configuration
		// rather than a slow broker.
		log.Printf("[MQTT] initial connection error: %v", token.Error())
		return
	}

	sub := c.eventBus.Subscribe(core.ModeChangedEvent, core.FaultChangedEvent, core.StateChangedEvent)
	defer c.eventBus.Unsubscribe(sub, core.ModeChangedEvent, core.FaultChangedEvent, core.StateChangedEvent)

	for {
		select {
		case <-ctx.Done():
			c.disconnect()
			return
		case event := <-sub:
			c.publishState(event.State)
		}
	}
}

func (c *Client) publishState(snap core.Snapshot) {
	if !c.client.IsConnected() {
		return
	}
	fault := "false"
	if snap.Fault {
		fault = "true"
	}
	c.client.Publish(c.prefix+"/mode", 0, true, snap.Mode.String())
	c.client.Publish(c.prefix+"/fault", 0, true, fault)
	c.client.Publish(c.prefix+"/intensity", 0, true, strconv.Itoa(snap.Aggregate()))
}

func (c *Client) disconnect() {
	if !c.client.IsConnected() {
		return
	}
	log.Println("[MQTT] disconnecting...")

	token := c.client.Publish(c.prefix+"/availability", 0, true, "offline")
	if !token.WaitTimeout(2 * time.Second) {
		log.Println("[MQTT] warning: timed out publishing offline status")
	}
	c.client.Disconnect(250)
}
