package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/wifiattend/internal/registry"
)

// Defaults applied by New when the config leaves them empty.
const (
	defaultUnclaimedKey = "None"
	defaultWSPath       = "/api/ws"
)

// bssidRequest is the body of insert_bssid and delete_bssid.
// An absent, null or blank facilityId means "no facility".
type bssidRequest struct {
	BSSID      string  `json:"bssid"`
	FacilityID *string `json:"facilityId"`
}

// facilityRequest is the body of delete_facility.
type facilityRequest struct {
	FacilityID *string `json:"facilityId"`
}

// handleInsertBSSID registers a BSSID or claims an unclaimed one.
func (s *Server) handleInsertBSSID(w http.ResponseWriter, r *http.Request) {
	var req bssidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	outcome, err := s.registry.Insert(r.Context(), req.BSSID, req.FacilityID)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	if outcome == registry.Updated {
		writeSuccess(w, http.StatusOK, msgBSSIDUpdated)
		return
	}
	writeSuccess(w, http.StatusCreated, msgBSSIDInserted)
}

// handleListBSSIDs returns every BSSID keyed by facility. Unclaimed BSSIDs
// are listed under the configured unclaimed key.
func (s *Server) handleListBSSIDs(w http.ResponseWriter, r *http.Request) {
	listing, err := s.registry.ListAll(r.Context())
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, EncodeListing(listing, s.cfg.UnclaimedKey))
}

// handleListFacilityBSSIDs returns the BSSIDs registered to one facility.
// The path value is matched literally; a blank value never selects the
// unclaimed BSSIDs.
func (s *Server) handleListFacilityBSSIDs(w http.ResponseWriter, r *http.Request) {
	facility := chi.URLParam(r, "facilityId")
	// chi routes on RawPath when the request carries reserved escapes
	// such as %2F, leaving the segment encoded.
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(facility); err == nil {
			facility = unescaped
		}
	}

	bssids, err := s.registry.ListByFacility(r.Context(), &facility)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, bssids)
}

// handleDeleteBSSID removes one BSSID, optionally only for a facility.
func (s *Server) handleDeleteBSSID(w http.ResponseWriter, r *http.Request) {
	var req bssidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	if err := s.registry.DeleteOne(r.Context(), req.BSSID, req.FacilityID); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgBSSIDDeleted)
}

// handleDeleteFacility removes every BSSID registered to a facility.
func (s *Server) handleDeleteFacility(w http.ResponseWriter, r *http.Request) {
	var req facilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	if _, err := s.registry.DeleteByFacility(r.Context(), req.FacilityID); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgFacilityDeleted)
}

// handleDeleteDatabase drops the registry table.
func (s *Server) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reset(r.Context()); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgDatabaseDeleted)
}

// EncodeListing flattens a Listing into the list-all wire object. A facility whose
// name equals unclaimedKey shares the entry with the unclaimed BSSIDs.
func EncodeListing(listing registry.Listing, unclaimedKey string) map[string][]string {
	out := make(map[string][]string, len(listing.ByFacility)+1)
	for facility, bssids := range listing.ByFacility {
		out[facility] = bssids
	}

	if len(listing.Unclaimed) == 0 {
		return out
	}

	existing, collides := out[unclaimedKey]
	if !collides {
		out[unclaimedKey] = listing.Unclaimed
		return out
	}

	seen := make(map[string]struct{}, len(existing)+len(listing.Unclaimed))
	merged := make([]string, 0, len(existing)+len(listing.Unclaimed))
	for _, group := range [][]string{existing, listing.Unclaimed} {
		for _, b := range group {
			if _, dup := seen[b]; dup {
				continue
			}
			seen[b] = struct{}{}
			merged = append(merged, b)
		}
	}
	sort.Strings(merged)
	out[unclaimedKey] = merged
	return out
}
