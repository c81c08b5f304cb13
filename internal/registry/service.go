package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/wifiattend/internal/infrastructure/database"
)

// DefaultOperationTimeout bounds each operation when none is configured.
const DefaultOperationTimeout = 10 * time.Second

// Operation names used in logs, stats and telemetry.
const (
	OpInsert           = "insert"
	OpListAll          = "list_all"
	OpListByFacility   = "list_by_facility"
	OpDeleteOne        = "delete_one"
	OpDeleteByFacility = "delete_facility"
	OpReset            = "reset"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service implements the registry operations on top of a Store.
//
// It holds no registry data of its own; every call reads or writes the
// store. Writers are serialised by mu. All public methods are thread-safe.
// The Set* methods configure the service and must be called before use.
type Service struct {
	store   Store
	mu      sync.RWMutex
	timeout time.Duration

	logger   Logger
	notifier Notifier
	metrics  MetricsRecorder

	statsMu sync.Mutex
	stats   map[string]map[string]uint64
}

// NewService creates a registry service backed by store.
func NewService(store Store) *Service {
	return &Service{
		store:   store,
		timeout: DefaultOperationTimeout,
		logger:  noopLogger{},
		stats:   make(map[string]map[string]uint64),
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetNotifier sets the receiver of committed mutation events.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetMetrics sets the per-operation telemetry sink.
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// SetOperationTimeout bounds every store operation. Non-positive values
// restore DefaultOperationTimeout.
func (s *Service) SetOperationTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultOperationTimeout
	}
	s.timeout = d
}

// Insert registers bssid, optionally against facilityID.
//
// A new BSSID is created. An unclaimed BSSID is claimed when a facility is
// given and is a conflict otherwise. A claimed BSSID is always a conflict.
func (s *Service) Insert(ctx context.Context, bssid string, facilityID *string) (outcome Outcome, err error) {
	start := time.Now()
	defer func() { s.observe(OpInsert, start, outcome, err) }()

	bssid = strings.TrimSpace(bssid)
	if bssid == "" {
		return 0, newError(KindValidation, MsgBSSIDRequired)
	}
	facility := NormalizeFacility(facilityID)

	err = s.mutate(ctx, OpInsert, true, func(ctx context.Context, tx Store) error {
		existing, err := tx.FindByBSSID(ctx, bssid)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			if err := tx.Insert(ctx, Record{BSSID: bssid, FacilityID: facility}); err != nil {
				return err
			}
			outcome = Created
		case existing.Claimed():
			return newError(KindConflict, MsgPairExists)
		case facility == nil:
			return newError(KindConflict, MsgBSSIDExists)
		default:
			if err := tx.UpdateFacility(ctx, bssid, *facility); err != nil {
				return err
			}
			outcome = Updated
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	evt := EventCreated
	if outcome == Updated {
		evt = EventClaimed
	}
	s.notify(Event{Type: evt, BSSID: bssid, FacilityID: facility, Count: 1})

	return outcome, nil
}

// ListAll returns every record grouped by facility.
func (s *Service) ListAll(ctx context.Context) (listing Listing, err error) {
	start := time.Now()
	defer func() { s.observe(OpListAll, start, 0, err) }()

	var records []Record
	err = s.read(ctx, OpListAll, func(ctx context.Context) error {
		var err error
		records, err = s.store.FetchAll(ctx)
		return err
	})
	if err != nil {
		return Listing{}, err
	}

	return groupRecords(records), nil
}

// ListByFacility returns the BSSIDs registered to facilityID, sorted.
// Only a nil facilityID selects unclaimed BSSIDs; a blank one matches
// nothing. The result is never nil.
func (s *Service) ListByFacility(ctx context.Context, facilityID *string) (bssids []string, err error) {
	start := time.Now()
	defer func() { s.observe(OpListByFacility, start, 0, err) }()

	facility := NormalizeFacility(facilityID)
	if facilityID != nil && facility == nil {
		return []string{}, nil
	}
	err = s.read(ctx, OpListByFacility, func(ctx context.Context) error {
		var err error
		bssids, err = s.store.FetchByFacility(ctx, facility)
		return err
	})
	if err != nil {
		return nil, err
	}
	if bssids == nil {
		bssids = []string{}
	}
	return bssids, nil
}

// DeleteOne removes bssid. With a nil facilityID it removes the BSSID
// whatever its facility; otherwise only the matching pair is removed.
func (s *Service) DeleteOne(ctx context.Context, bssid string, facilityID *string) (err error) {
	start := time.Now()
	defer func() { s.observe(OpDeleteOne, start, 0, err) }()

	bssid = strings.TrimSpace(bssid)
	if bssid == "" {
		return newError(KindValidation, MsgBSSIDRequired)
	}
	facility := NormalizeFacility(facilityID)

	var removed int64
	err = s.mutate(ctx, OpDeleteOne, true, func(ctx context.Context, tx Store) error {
		n, err := tx.DeleteMatching(ctx, bssid, facility)
		if err != nil {
			return err
		}
		if n == 0 {
			return newError(KindNotFound, MsgBSSIDNotFound)
		}
		removed = n
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(Event{Type: EventDeleted, BSSID: bssid, FacilityID: facility, Count: removed})
	return nil
}

// DeleteByFacility removes every BSSID registered to facilityID and
// returns how many were removed. A nil or blank facilityID is rejected.
func (s *Service) DeleteByFacility(ctx context.Context, facilityID *string) (removed int64, err error) {
	start := time.Now()
	defer func() { s.observe(OpDeleteByFacility, start, 0, err) }()

	facility := NormalizeFacility(facilityID)
	if facility == nil {
		return 0, newError(KindValidation, MsgFacilityRequired)
	}

	err = s.mutate(ctx, OpDeleteByFacility, true, func(ctx context.Context, tx Store) error {
		n, err := tx.DeleteByFacility(ctx, *facility)
		if err != nil {
			return err
		}
		if n == 0 {
			return newError(KindNotFound, MsgFacilityNotFound)
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.notify(Event{Type: EventFacilityDeleted, FacilityID: facility, Count: removed})
	return removed, nil
}

// Reset drops the registry table. The next mutation recreates it.
func (s *Service) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe(OpReset, start, 0, err) }()

	err = s.mutate(ctx, OpReset, false, func(ctx context.Context, tx Store) error {
		exists, err := tx.SchemaExists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return newError(KindNotFound, MsgDatabaseNotFound)
		}
		return tx.DropAll(ctx)
	})
	if err != nil {
		return err
	}

	s.notify(Event{Type: EventReset})
	return nil
}

// Stats returns a snapshot of outcome counters keyed by operation then outcome.
func (s *Service) Stats() map[string]map[string]uint64 {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := make(map[string]map[string]uint64, len(s.stats))
	for op, outcomes := range s.stats {
		cp := make(map[string]uint64, len(outcomes))
		for k, v := range outcomes {
			cp[k] = v
		}
		out[op] = cp
	}
	return out
}

// mutate runs fn in one transaction under the write lock. The caller's
// cancellation is dropped; the operation timeout still applies.
func (s *Service) mutate(ctx context.Context, op string, ensureSchema bool, fn func(context.Context, Store) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ensureSchema {
		if err := s.store.EnsureSchema(ctx); err != nil {
			return s.classify(op, err)
		}
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		return fn(ctx, tx)
	})
	if err != nil {
		return s.classify(op, err)
	}
	return nil
}

// read runs fn under the read lock, bounded by the operation timeout.
func (s *Service) read(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		return s.classify(op, err)
	}
	return nil
}

// classify turns a store error into an *Error. Domain errors pass through;
// unique-constraint failures become conflicts; everything else is storage.
func (s *Service) classify(op string, err error) error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}

	if database.IsUniqueViolation(err) {
		s.logger.Warn("unique constraint rejected write", "operation", op, "error", err)
		return newError(KindConflict, MsgPairExists)
	}

	s.logger.Error("registry operation failed", "operation", op, "error", err)
	return storageError(err)
}

func (s *Service) notify(evt Event) {
	if s.notifier == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.notifier.Notify(evt)
}

func (s *Service) observe(op string, start time.Time, outcome Outcome, err error) {
	label := "ok"
	switch {
	case err != nil:
		label = KindOf(err).String()
	case outcome != 0:
		label = outcome.String()
	}

	s.statsMu.Lock()
	if s.stats[op] == nil {
		s.stats[op] = make(map[string]uint64)
	}
	s.stats[op][label]++
	s.statsMu.Unlock()

	elapsed := time.Since(start)
	s.logger.Debug("registry operation", "operation", op, "outcome", label, "duration", elapsed)

	if s.metrics != nil {
		s.metrics.WriteOperationMetric(op, label, elapsed)
	}
}

// groupRecords builds a Listing with sorted, de-duplicated groups.
func groupRecords(records []Record) Listing {
	unclaimed := make(map[string]struct{})
	claimed := make(map[string]map[string]struct{})

	for _, rec := range records {
		if rec.FacilityID == nil {
			unclaimed[rec.BSSID] = struct{}{}
			continue
		}
		set := claimed[*rec.FacilityID]
		if set == nil {
			set = make(map[string]struct{})
			claimed[*rec.FacilityID] = set
		}
		set[rec.BSSID] = struct{}{}
	}

	listing := Listing{
		ByFacility: make(map[string][]string, len(claimed)),
		Unclaimed:  sortedKeys(unclaimed),
	}
	for facility, set := range claimed {
		listing.ByFacility[facility] = sortedKeys(set)
	}
	return listing
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
