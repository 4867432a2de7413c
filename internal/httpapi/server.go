package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/command"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/service"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/types"
	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

// CommandSender is satisfied by *service.CommandService.
type CommandSender interface {
	Send(ctx context.Context, cmd command.Command) (types.CommandResponse, error)
	Recent(ctx context.Context, limit int) ([]store.CommandRecord, error)
}

// AccessDecider is satisfied by *service.AccessService.
type AccessDecider interface {
	Decide(ctx context.Context, code string) (types.AccessResponse, error)
}

// HeartbeatSource is satisfied by *service.HeartbeatMonitor.
type HeartbeatSource interface {
	Latest() heartbeat.Heartbeat
	Subscribe() (<-chan heartbeat.Heartbeat, func())
}

type Dependencies struct {
	Logger         *logger.Logger
	Addr           string
	DeviceID       string
	Commands       CommandSender
	Access         AccessDecider
	Heartbeats     HeartbeatSource
	HeartbeatStore store.HeartbeatStore
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

type Server struct {
	httpServer *http.Server
	log        *logger.Logger
	mux        *http.ServeMux

	deviceID   string
	commands   CommandSender
	access     AccessDecider
	heartbeats HeartbeatSource
	history    store.HeartbeatStore
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		log:        d.Logger.With("component", "httpapi"),
		mux:        mux,
		deviceID:   d.DeviceID,
		commands:   d.Commands,
		access:     d.Access,
		heartbeats: d.Heartbeats,
		history:    d.HeartbeatStore,
	}

	mux.HandleFunc("POST /v1/command", s.handleCommand)
	mux.HandleFunc("GET /v1/commands", s.handleCommands)
	mux.HandleFunc("POST /v1/access", s.handleAccess)
	mux.HandleFunc("GET /v1/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /v1/heartbeats", s.handleHeartbeats)
	mux.HandleFunc("GET /v1/heartbeat/stream", s.handleHeartbeatStream)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           loggingMiddleware(s.log, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	pbReq := isProtobuf(r)

	var (
		cmd command.Command
		err error
	)
	if pbReq {
		cmd, err = readCommandProto(r)
	} else {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
		err = dec.Decode(&cmd)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid command body")
		return
	}
	if cmd.IsEmpty() {
		writeError(w, http.StatusBadRequest, "empty_command", "command sets no fields")
		return
	}

	resp, err := s.commands.Send(r.Context(), cmd)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrConflict):
			writeError(w, http.StatusConflict, "command_conflict", err.Error())
		case errors.Is(err, service.ErrLinkUnavailable):
			writeError(w, http.StatusServiceUnavailable, "link_unavailable", "device link unavailable")
		default:
			s.log.Errorw("command error", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	if pbReq {
		writeStruct(w, http.StatusOK, commandResponseToStruct(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_limit", "limit must be an integer between 1 and 1000")
		return
	}

	recs, err := s.commands.Recent(r.Context(), limit)
	if err != nil {
		s.log.Errorw("list commands", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	out := make([]types.CommandRecordView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, types.NewCommandRecordView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.deviceID,
		"commands":  out,
	})
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req types.AccessRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.access.Decide(r.Context(), req.CardCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCardCode):
			writeError(w, http.StatusBadRequest, "invalid_card_code", err.Error())
		case errors.Is(err, service.ErrLinkUnavailable):
			// Decided and recorded, but the door never heard it.
			writeJSON(w, http.StatusServiceUnavailable, resp)
		default:
			s.log.Errorw("access error", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	hb := s.heartbeats.Latest()

	if wantsProtobuf(r) {
		msg, err := heartbeatToStruct(s.deviceID, hb)
		if err != nil {
			s.log.Errorw("heartbeat to struct", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeStruct(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, types.NewHeartbeatView(s.deviceID, hb))
}

func (s *Server) handleHeartbeats(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_limit", "limit must be an integer between 1 and 1000")
		return
	}

	recs, err := s.history.Recent(r.Context(), s.deviceID, limit)
	if err != nil {
		s.log.Errorw("list heartbeats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	out := make([]types.StoredHeartbeatView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, types.NewStoredHeartbeatView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":  s.deviceID,
		"heartbeats": out,
	})
}

// parseLimit reads ?limit=N. A missing value selects the default.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxListLimit {
		return 0, false
	}
	return n, true
}
