// Package publish pushes readings to an MQTT broker so local consumers
// (Home Assistant, Node-RED) can follow production without touching the
// inverter themselves. Publishing is a best-effort sink, same as the upload.
package publish

import (
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pvlog/agent/internal/models"
)

const connectTimeout = 10 * time.Second

// Publisher publishes readings under a fixed topic prefix.
type Publisher struct {
	client mqtt.Client
	prefix string
}

// Connect dials the broker and announces availability. The broker's last
// will flips the availability topic to "offline" if the agent dies without
// a clean shutdown.
func Connect(broker, prefix string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("pvlog-agent").
		SetAutoReconnect(true).
		SetWill(prefix+"/availability", "offline", 0, true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", broker, err)
	}

	p := &Publisher{client: client, prefix: prefix}
	p.publish("availability", "online")
	return p, nil
}

// Publish pushes one reading as retained messages, one topic per metric.
func (p *Publisher) Publish(reading models.Reading) error {
	steps := []struct {
		topic   string
		payload string
	}{
		{"power", strconv.Itoa(reading.PowerWatts)},
		{"energy_today_wh", strconv.Itoa(reading.EnergyTodayWh())},
		{"status", reading.Status},
	}
	for _, s := range steps {
		if err := p.publish(s.topic, s.payload); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the agent offline and disconnects.
func (p *Publisher) Close() {
	p.publish("availability", "offline")
	p.client.Disconnect(250)
}

func (p *Publisher) publish(topic, payload string) error {
	token := p.client.Publish(p.prefix+"/"+topic, 0, true, payload)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
