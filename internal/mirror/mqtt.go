// Package mirror republishes uploaded readings on a local MQTT broker so
// nearby consumers can follow the room without polling the collector API.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250
	connectRetries    = 5
)

// ErrNotConnected is reported by PingContext while the broker link is down.
var ErrNotConnected = errors.New("mqtt not connected")

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Publisher mirrors readings to roomsense/{device}/{sensor}. Best effort.
type Publisher struct {
	client client
	device string
	qos    byte
}

// Connect dials the broker, retrying with exponential backoff.
func Connect(ctx context.Context, broker, clientID, device string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var c mqtt.Client
	err := backoff.Retry(func() error {
		c = mqtt.NewClient(opts)
		token := c.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("mirror: connect broker=%s err=%v", broker, err)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, connectRetries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("mirror: connect %s: %w", broker, err)
	}

	log.Printf("mirror: connected broker=%s client_id=%s", broker, clientID)
	return newPublisher(c, device), nil
}

func newPublisher(c client, device string) *Publisher {
	return &Publisher{client: c, device: device}
}

// Topic is the MQTT topic readings of class are mirrored to.
func Topic(device string, class domain.SensorClass) string {
	return fmt.Sprintf("roomsense/%s/%s", device, class)
}

type message struct {
	Timestamp string         `json:"timestamp"`
	Device    string         `json:"device"`
	Sensor    string         `json:"sensor"`
	Data      map[string]any `json:"data"`
}

// Payload encodes one mirrored reading.
func Payload(device string, class domain.SensorClass, readAt time.Time, reading domain.Reading) ([]byte, error) {
	return json.Marshal(message{
		Timestamp: readAt.UTC().Format(time.RFC3339Nano),
		Device:    device,
		Sensor:    string(class),
		Data:      reading.TimeseriesData(),
	})
}

// Publish mirrors one reading. Failures are logged and dropped.
func (p *Publisher) Publish(ctx context.Context, class domain.SensorClass, readAt time.Time, reading domain.Reading) {
	payload, err := Payload(p.device, class, readAt, reading)
	if err != nil {
		log.Printf("mirror: sensor=%s encode error: %v", class, err)
		return
	}

	token := p.client.Publish(Topic(p.device, class), p.qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			log.Printf("mirror: sensor=%s publish error: %v", class, err)
		}
	case <-ctx.Done():
	case <-time.After(publishTimeout):
		log.Printf("mirror: sensor=%s publish timed out", class)
	}
}

// PingContext reports whether the broker connection is up.
func (p *Publisher) PingContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
	log.Println("mirror: disconnected")
}
