package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/session"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

type startBacktestRequest struct {
	StrategyID string   `json:"strategy_id" validate:"required"`
	Symbols    []string `json:"symbols"`
	Timeframe  string   `json:"timeframe"`
	From       string   `json:"from" validate:"required"`
	To         string   `json:"to" validate:"required"`
}

type startLiveSimRequest struct {
	StrategyID      string  `json:"strategy_id" validate:"required"`
	Date            string  `json:"date" validate:"required"`
	Timeframe       string  `json:"timeframe"`
	SpeedMultiplier float64 `json:"speed_multiplier" validate:"omitempty,gt=0"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleStartBacktest(w http.ResponseWriter, r *http.Request) {
	var req startBacktestRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	from, err := parseTime("from", req.From)
	if err != nil {
		s.writeError(w, err)
		return
	}

	to, err := parseTime("to", req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}

	timeframe, err := parseTimeframe(req.Timeframe)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.manager.StartBacktest(r.Context(), session.BacktestRequest{
		StrategyID: req.StrategyID,
		Symbols:    req.Symbols,
		Timeframe:  timeframe,
		From:       from,
		To:         to,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("backtest accepted",
		zap.String("session_id", id),
		zap.String("strategy_id", req.StrategyID),
	)
	s.writeJSON(w, http.StatusAccepted, startResponse{SessionID: id})
}

func (s *Server) handleStartLiveSim(w http.ResponseWriter, r *http.Request) {
	var req startLiveSimRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	day, err := parseTime("date", req.Date)
	if err != nil {
		s.writeError(w, err)
		return
	}

	timeframe, err := parseTimeframe(req.Timeframe)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.manager.StartLiveSim(r.Context(), session.LiveSimRequest{
		StrategyID:      req.StrategyID,
		Day:             day,
		Timeframe:       timeframe,
		SpeedMultiplier: req.SpeedMultiplier,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("simulation accepted",
		zap.String("session_id", id),
		zap.String("strategy_id", req.StrategyID),
		zap.Float64("speed_multiplier", req.SpeedMultiplier),
	)
	s.writeJSON(w, http.StatusAccepted, startResponse{SessionID: id})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.Snapshot(mux.Vars(r)["sessionID"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionID"]

	if err := s.manager.Stop(id); err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("session stop accepted", zap.String("session_id", id))
	s.writeJSON(w, http.StatusAccepted, startResponse{SessionID: id})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	schema, err := s.cfg.GenerateSchemaJSON()
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeEncodeFailed, "schema generation failed", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, schema); err != nil {
		s.log.Error("schema write failed", zap.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads the request body into v and runs struct validation. Unknown
// fields are rejected so typos surface as 400s instead of silent defaults.
func (s *Server) decode(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "malformed request body", err)
	}

	if err := s.validate.Struct(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request", err)
	}

	return nil
}

// parseTime accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
func parseTime(field, value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.Newf(errors.ErrCodeInvalidParameter,
		"%s: %q is neither an RFC 3339 timestamp nor a YYYY-MM-DD date", field, value)
}

func parseTimeframe(value string) (types.Timeframe, error) {
	if value == "" {
		return "", nil
	}

	timeframe := types.Timeframe(value)
	if !timeframe.IsValid() {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe %q", value)
	}

	return timeframe, nil
}
