// Package registry maps Wi-Fi access points (BSSIDs) to the facility they
// belong to.
//
// A BSSID is registered either unclaimed (no facility) or against a
// facility. An unclaimed BSSID can later be claimed once; a claimed BSSID
// is never reassigned. Every other duplicate registration is a conflict.
//
// # Concurrency
//
// Service serialises writers behind a single RWMutex. Each mutation runs
// its schema check and its SQL statements in one transaction while holding
// the write lock, so concurrent registrations of the same BSSID produce one
// creation and N-1 conflicts. Reads share the read lock and never observe a
// half-applied mutation.
//
// Mutations are detached from caller cancellation and bounded by the
// operation timeout instead: a client that disconnects mid-request cannot
// leave a transaction half done.
//
// # Errors
//
// All failures are returned as *Error with a Kind. Use errors.Is against
// ErrValidation, ErrConflict, ErrNotFound or ErrStorage:
//
//	if errors.Is(err, registry.ErrConflict) {
//	    // report 409
//	}
//
// # Usage
//
//	store := registry.NewSQLStore(db)
//	svc := registry.NewService(store)
//	svc.SetLogger(log.With("component", "registry"))
//
//	outcome, err := svc.Insert(ctx, "AA:BB:CC:DD:EE:FF", registry.StringPtr("F1"))
package registry
