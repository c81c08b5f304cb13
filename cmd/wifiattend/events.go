package main

import (
	"sync"
	"sync/atomic"

	"github.com/nerrad567/wifiattend/internal/infrastructure/logging"
	"github.com/nerrad567/wifiattend/internal/infrastructure/mqtt"
	"github.com/nerrad567/wifiattend/internal/registry"
)

// eventQueueSize is the number of registry events buffered for MQTT.
const eventQueueSize = 256

// jsonPublisher is the subset of *mqtt.Client the relay needs.
type jsonPublisher interface {
	PublishJSON(topic string, v any) error
}

// mqttEventRelay adapts the MQTT client to registry.Notifier.
//
// Notify never blocks the registry: events are queued and published by a
// single worker in commit order. When the queue is full the event is dropped
// and counted.
type mqttEventRelay struct {
	client jsonPublisher
	topics mqtt.Topics
	log    *logging.Logger

	queue chan registry.Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
}

func newMQTTEventRelay(client jsonPublisher, topics mqtt.Topics, log *logging.Logger, size int) *mqttEventRelay {
	r := &mqttEventRelay{
		client: client,
		topics: topics,
		log:    log,
		queue:  make(chan registry.Event, size),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Notify implements registry.Notifier.
func (r *mqttEventRelay) Notify(evt registry.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.queue <- evt:
	default:
		r.dropped.Add(1)
		r.log.Warn("mqtt event queue full, dropping event", "event_type", evt.Type)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (r *mqttEventRelay) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be published.
func (r *mqttEventRelay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}

func (r *mqttEventRelay) run() {
	defer close(r.done)

	for evt := range r.queue {
		topic := r.topics.RegistryEvent(string(evt.Type))
		if err := r.client.PublishJSON(topic, evt); err != nil {
			r.log.Warn("failed to publish registry event", "topic", topic, "error", err)
		}
	}
}
