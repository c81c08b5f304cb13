package registry

import (
	"strings"
	"time"
)

// Record is one row of the registry.
// FacilityID is nil when the BSSID is unclaimed.
type Record struct {
	BSSID      string
	FacilityID *string
}

// Claimed reports whether the record is assigned to a facility.
func (r Record) Claimed() bool {
	return r.FacilityID != nil
}

// Outcome describes what a successful Insert did.
type Outcome int

// Insert outcomes.
const (
	// Created means a new record was written.
	Created Outcome = iota + 1

	// Updated means an unclaimed record was claimed by a facility.
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Listing is the full registry grouped by facility.
//
// Each slice is sorted and free of duplicates. Unclaimed holds BSSIDs
// without a facility; it is never nil.
type Listing struct {
	ByFacility map[string][]string
	Unclaimed  []string
}

// EventType identifies a committed registry mutation.
type EventType string

// Event types, used as MQTT topic suffixes and WebSocket event names.
const (
	EventCreated         EventType = "bssid.created"
	EventClaimed         EventType = "bssid.claimed"
	EventDeleted         EventType = "bssid.deleted"
	EventFacilityDeleted EventType = "facility.deleted"
	EventReset           EventType = "registry.reset"
)

// Known reports whether t is one of the event types the registry emits.
func (t EventType) Known() bool {
	switch t {
	case EventCreated, EventClaimed, EventDeleted, EventFacilityDeleted, EventReset:
		return true
	}
	return false
}

// Event is emitted after a mutation commits.
type Event struct {
	Type       EventType `json:"type"`
	BSSID      string    `json:"bssid,omitempty"`
	FacilityID *string   `json:"facility_id,omitempty"`
	Count      int64     `json:"count,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier receives committed mutation events.
// Notify is called outside the registry lock and must not block for long.
type Notifier interface {
	Notify(evt Event)
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

// Notify implements Notifier.
func (ns Notifiers) Notify(evt Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(evt)
		}
	}
}

// MetricsRecorder receives per-operation timing. Implementations must be
// non-blocking.
type MetricsRecorder interface {
	WriteOperationMetric(operation, outcome string, elapsed time.Duration)
}

// NormalizeFacility trims a facility identifier and maps blank values to nil.
func NormalizeFacility(facilityID *string) *string {
	if facilityID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*facilityID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
