package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
	"github.com/rhx/orvibo-udp-hap/internal/bridges/orvibo"
	"github.com/rhx/orvibo-udp-hap/internal/history"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// statusResponse is returned by GET and PUT /status.
type statusResponse struct {
	BridgeID  string       `json:"bridge_id"`
	Status    string       `json:"status"`
	LastSeen  *time.Time   `json:"last_seen,omitempty"`
	LastKnown *knownStatus `json:"last_known,omitempty"`
}

// knownStatus is the newest recorded on/off, reported while the live
// status is unknown.
type knownStatus struct {
	Status string    `json:"status"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// setStatusRequest is the PUT /status body.
type setStatusRequest struct {
	Status string `json:"status"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	BridgeID   string            `json:"bridge_id"`
	Device     string            `json:"device_status"`
	LastSeen   *time.Time        `json:"last_seen,omitempty"`
	LastKnown  *knownStatus      `json:"last_known,omitempty"`
	Stats      orvibo.Stats      `json:"stats"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports "ok", or "degraded" when a dependency check fails.
// The response is always 200 so the process is not restarted for an
// unreachable broker.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	device := s.bridge.Status()
	resp := healthResponse{
		Status:    "ok",
		Version:   s.version,
		BridgeID:  s.bridgeID,
		Device:    device.String(),
		LastSeen:  lastSeen(s.bridge.LastSeen()),
		LastKnown: s.lastKnown(r.Context(), device),
		Stats:     s.bridge.Stats(),
	}

	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status := s.bridge.Status()
	resp := s.statusResponse(status)
	resp.LastKnown = s.lastKnown(r.Context(), status)
	writeJSON(w, http.StatusOK, resp)
}

// handleSetStatus requests a change through the accessory, exactly as the
// automation framework does. The bridge applies it asynchronously, so the
// response is 202 with the requested status.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Status == "" {
		fail(w, r, http.StatusBadRequest, "status is required")
		return
	}

	status, err := accessory.ParseStatus(req.Status)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "status must be on, off or unknown")
		return
	}

	s.logger.Info("status requested via API",
		"status", status.String(),
		"request_id", requestID(r.Context()))
	s.accessory.Request(status)

	writeJSON(w, http.StatusAccepted, s.statusResponse(status))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		fail(w, r, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "%s", err)
		return
	}

	entries, err := s.history.Recent(r.Context(), s.bridgeID, limit)
	if err != nil {
		s.logger.Error("failed to read status history", "error", err)
		fail(w, r, http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bridge_id": s.bridgeID,
		"entries":   entries,
		"count":     len(entries),
	})
}

func (s *Server) statusResponse(status accessory.Status) statusResponse {
	return statusResponse{
		BridgeID: s.bridgeID,
		Status:   status.String(),
		LastSeen: lastSeen(s.bridge.LastSeen()),
	}
}

// lastKnown looks up the newest on/off transition when current is
// unknown. It returns nil when the status is known, history is disabled
// or nothing has been recorded.
func (s *Server) lastKnown(ctx context.Context, current accessory.Status) *knownStatus {
	if current.Known() || s.history == nil {
		return nil
	}
	e, err := s.history.LastKnown(ctx, s.bridgeID)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			s.logger.Warn("failed to read last known status", "error", err)
		}
		return nil
	}
	return &knownStatus{Status: e.Status.String(), Source: e.Source, At: e.CreatedAt.UTC()}
}

func lastSeen(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// parseHistoryLimit validates the limit query parameter.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum of %d", maxHistoryLimit)
	}
	return limit, nil
}
