//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectAndClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "wifiattend-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegration_EventRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "wifiattend-int-publisher"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	// Independent subscriber so the client under test stays publish-only.
	subOpts := pahomqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:1883").
		SetClientID("wifiattend-int-subscriber")
	sub := pahomqtt.NewClient(subOpts)
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect failed: %v", token.Error())
	}
	defer sub.Disconnect(100)

	var (
		mu       sync.Mutex
		received []string
	)
	done := make(chan struct{}, 1)
	topic := client.Topics().RegistryEvent("bssid.created")
	sub.Subscribe(client.Topics().AllRegistryEvents(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		mu.Lock()
		received = append(received, msg.Topic())
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	}).WaitTimeout(5 * time.Second)

	if err := client.PublishJSON(topic, map[string]string{"bssid": "AA:BB"}); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) == 0 || received[0] != topic {
		t.Errorf("received = %v, want [%s]", received, topic)
	}
}
