package mqttbridge

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealConn connects to an actual MQTT broker.
type RealConn struct {
	client paho.Client
}

// Dial connects to the given broker with automatic reconnect.
func Dial(broker, clientID string) (*RealConn, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealConn{client: client}, nil
}

// Subscribe registers a payload handler at QoS 0. Sensor readings are
// periodic; a lost one is replaced by the next sample.
func (c *RealConn) Subscribe(topic string, handler func(payload []byte)) error {
	token := c.client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *RealConn) Close() {
	c.client.Disconnect(1000)
}
