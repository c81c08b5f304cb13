package mqtt

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "wifiattend"

// Topics builds topic names under a common prefix.
//
//	topics := mqtt.NewTopics("wifiattend")
//	topics.RegistryEvent("bssid.created")
//	// Returns: "wifiattend/registry/bssid.created"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix, falling back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	return t.prefix
}

// RegistryEvent returns the topic for one registry event type.
//
// Example: wifiattend/registry/facility.deleted
func (t Topics) RegistryEvent(eventType string) string {
	return t.prefix + "/registry/" + eventType
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: wifiattend/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// AllRegistryEvents returns a pattern matching every registry event.
//
// Pattern: wifiattend/registry/#
func (t Topics) AllRegistryEvents() string {
	return t.prefix + "/registry/#"
}
