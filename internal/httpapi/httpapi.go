// Package httpapi implements the single HTTP control-plane route spec.md
// §4.G specifies: PUT /hostname, the sole writer to the shared record
// store. Grounded on the lineage's internal/transport/doh.go for the raw
// net/http + http.NewServeMux() pattern — the only net/http usage
// anywhere in the example pack; no web framework appears in it.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strings"

	"github.com/kunerd/koppeln/internal/eventbus"
	"github.com/kunerd/koppeln/internal/metrics"
	"github.com/kunerd/koppeln/internal/store"
)

// maxBodyBytes is spec.md §4.G/§6's 16KiB body ceiling.
const maxBodyBytes = 16 * 1024

// Handler serves PUT /hostname against a shared *store.Store.
type Handler struct {
	store *store.Store
	bus   *eventbus.Bus
}

// New constructs a Handler. bus may be nil, in which case successful
// updates are simply not announced to any subscriber.
func New(s *store.Store, bus *eventbus.Bus) *Handler {
	return &Handler{store: s, bus: bus}
}

// Mux returns an *http.ServeMux with the control-plane route registered,
// ready to be wrapped in an *http.Server by the caller.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /hostname", h.handlePutHostname)
	return mux
}

type updateRequest struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
}

func (h *Handler) handlePutHostname(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token == "" {
		h.reject(w, http.StatusUnauthorized)
		return
	}

	var req updateRequest
	body := io.LimitReader(r.Body, maxBodyBytes+1)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		metrics.HTTPUpdates.WithLabelValues("400").Inc()
		return
	}

	addr, err := netip.ParseAddr(req.IP)
	if err != nil {
		h.reject(w, http.StatusUnprocessableEntity)
		return
	}

	storedToken, ok := h.store.Token(req.Hostname)
	if !ok {
		h.reject(w, http.StatusUnprocessableEntity)
		return
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(storedToken)) != 1 {
		h.reject(w, http.StatusForbidden)
		return
	}

	family := "ipv4"
	if addr.Is4() {
		err = h.store.SetIPv4(req.Hostname, addr)
	} else {
		family = "ipv6"
		err = h.store.SetIPv6(req.Hostname, addr)
	}

	if err != nil {
		if errors.Is(err, store.ErrUnknownSubdomain) {
			h.reject(w, http.StatusUnprocessableEntity)
			return
		}
		log.Printf("httpapi: store update failed for %q: %v", req.Hostname, err)
		h.reject(w, http.StatusInternalServerError)
		return
	}

	if h.bus != nil {
		subdomain := strings.ToLower(strings.TrimSuffix(req.Hostname, "."))
		origin := strings.TrimSuffix(h.store.Origin(), ".")
		if subdomain == origin {
			subdomain = ""
		} else {
			subdomain = strings.TrimSuffix(subdomain, "."+origin)
		}
		h.bus.Publish(context.Background(), eventbus.TopicStoreUpdated, eventbus.StoreUpdated{
			Subdomain: subdomain,
			Family:    family,
		})
	}

	metrics.HTTPUpdates.WithLabelValues("204").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reject(w http.ResponseWriter, status int) {
	metrics.HTTPUpdates.WithLabelValues(statusLabel(status)).Inc()
	w.WriteHeader(status)
}

func statusLabel(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "401"
	case http.StatusForbidden:
		return "403"
	case http.StatusUnprocessableEntity:
		return "422"
	case http.StatusInternalServerError:
		return "500"
	default:
		return "other"
	}
}
