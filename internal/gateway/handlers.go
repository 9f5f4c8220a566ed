package gateway

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/rickgao/marketstream/internal/exchange"
	"github.com/rickgao/marketstream/internal/model"
	"github.com/rickgao/marketstream/internal/registry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// subscribeRequest is the POST /streams body.
type subscribeRequest struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Type     string `json:"type"`
}

// handleHealthz aggregates per-stream health. Any down stream makes the
// gateway unhealthy (503); stale streams degrade it but keep 200.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	reports := s.monitor.Scan()

	status := "healthy"
	code := http.StatusOK
	components := make(map[model.StreamID]model.HealthReport, len(reports))
	for _, rep := range reports {
		components[rep.StreamID] = rep
		switch rep.Status {
		case model.HealthDown:
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		case model.HealthStale:
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	writeJSON(w, code, struct {
		Status     string                                `json:"status"`
		Streams    int                                   `json:"streams"`
		Components map[model.StreamID]model.HealthReport `json:"components,omitempty"`
	}{status, len(reports), components})
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	streams := s.reg.ListActiveStreams()

	writeJSON(w, http.StatusOK, struct {
		Count   int                `json:"count"`
		Streams []model.StreamInfo `json:"streams"`
	}{len(streams), streams})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	streamType, err := model.ParseStreamType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.reg.Subscribe(req.Symbol, req.Exchange, streamType)
	switch {
	case err == nil:
	case errors.Is(err, registry.ErrSubscriptionLimit):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, exchange.ErrUnsupportedExchange):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, registry.ErrClosed), errors.Is(err, registry.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("stream subscribed via admin api", "stream_id", id)
	writeJSON(w, http.StatusCreated, struct {
		StreamID model.StreamID `json:"stream_id"`
	}{id})
}

func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	id := model.StreamID(r.PathValue("id"))

	if !s.reg.StopStream(r.Context(), id) {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}
	s.logger.Info("stream stopped via admin api", "stream_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStreamHealth(w http.ResponseWriter, r *http.Request) {
	id := model.StreamID(r.PathValue("id"))

	rep, err := s.reg.CheckStreamHealth(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{msg})
}
