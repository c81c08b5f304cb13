// Package mqtt publishes registry events to an MQTT broker.
//
// It wraps github.com/eclipse/paho.mqtt.golang with:
//   - auto-reconnect with bounded backoff
//   - a retained online/offline status on {prefix}/system/status, backed by
//     a Last Will for unexpected disconnects
//   - input validation and acknowledgement timeouts on Publish
//
// # Topics
//
//	{prefix}/registry/{event_type}   registry mutation events (not retained)
//	{prefix}/system/status           service status (retained)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().RegistryEvent("bssid.created")
//	err = client.PublishJSON(topic, evt)
package mqtt
