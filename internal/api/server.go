package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/ocelot/internal/config"
	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/httputil"
	"github.com/banshee-data/ocelot/internal/loop"
	"github.com/banshee-data/ocelot/internal/mapd"
	"github.com/banshee-data/ocelot/internal/monitoring"
	"github.com/banshee-data/ocelot/internal/recorder"
	"github.com/banshee-data/ocelot/internal/report"
	"github.com/banshee-data/ocelot/internal/security"
	"github.com/banshee-data/ocelot/internal/units"
	"github.com/banshee-data/ocelot/internal/vehicle"
	"github.com/banshee-data/ocelot/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxSpeedLimitBody bounds POST /api/map/speed_limit request bodies.
const maxSpeedLimitBody = 4096

// StateSource is the part of the control loop the API reads.
type StateSource interface {
	Latest() (vehicle.VehicleState, bool)
	Stats() loop.Stats
}

// RecorderStats reports telemetry recorder counters.
type RecorderStats interface {
	Stats() recorder.Stats
}

// Options configure a Server. Only States is required; endpoints backed by a
// missing dependency answer 503.
type Options struct {
	States   StateSource
	DB       *db.DB
	Bridge   *mapd.Bridge
	Tuning   *config.TuningConfig
	Recorder RecorderStats
	// Units is the default display unit; ?units= overrides it per request.
	Units string
}

type Server struct {
	states   StateSource
	db       *db.DB
	bridge   *mapd.Bridge
	tuning   *config.TuningConfig
	recorder RecorderStats
	units    string
}

func NewServer(opts Options) *Server {
	if !units.IsValid(opts.Units) {
		opts.Units = units.MPH
	}
	if opts.Tuning == nil {
		opts.Tuning = config.DefaultTuningConfig()
	}
	return &Server{
		states:   opts.States,
		db:       opts.DB,
		bridge:   opts.Bridge,
		tuning:   opts.Tuning,
		recorder: opts.Recorder,
		units:    opts.Units,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/states", s.listStates)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/map/speed_limit", s.handleSpeedLimit)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}/states", s.sessionStates)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.sessionSummary)
	mux.HandleFunc("GET /api/sessions/{id}/speed.png", s.sessionSpeedPlot)
	mux.HandleFunc("/debug/speed-chart", s.speedChart)
	mux.HandleFunc("GET /api/version", s.showVersion)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	httputil.WriteJSONError(w, status, msg)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	httputil.WriteJSONOK(w, v)
}

// requestUnits returns the ?units= override or the server default.
func (s *Server) requestUnits(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, true
	}
	if !units.IsValid(u) {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid 'units' parameter. Must be one of: %s", units.GetValidUnitsString()))
		return "", false
	}
	return u, true
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Telemetry database not configured")
		return false
	}
	return true
}

// StateAPI is a VehicleState with speeds converted to Units.
type StateAPI struct {
	vehicle.VehicleState
	Units string `json:"units"`
}

func convertState(st vehicle.VehicleState, unit string) StateAPI {
	st.WheelSpeeds = vehicle.WheelSpeeds{
		FL: units.ConvertSpeed(st.WheelSpeeds.FL, unit),
		FR: units.ConvertSpeed(st.WheelSpeeds.FR, unit),
		RL: units.ConvertSpeed(st.WheelSpeeds.RL, unit),
		RR: units.ConvertSpeed(st.WheelSpeeds.RR, unit),
	}
	st.VEgoRaw = units.ConvertSpeed(st.VEgoRaw, unit)
	st.VEgo = units.ConvertSpeed(st.VEgo, unit)
	st.CruiseState.Speed = units.ConvertSpeed(st.CruiseState.Speed, unit)
	st.MapSpeedLimit = units.ConvertSpeed(st.MapSpeedLimit, unit)
	return StateAPI{VehicleState: st, Units: unit}
}

func convertRecords(records []db.StateRecord, unit string) []db.StateRecord {
	out := make([]db.StateRecord, len(records))
	for i, r := range records {
		r.VEgoRaw = units.ConvertSpeed(r.VEgoRaw, unit)
		r.VEgo = units.ConvertSpeed(r.VEgo, unit)
		r.CruiseSpeed = units.ConvertSpeed(r.CruiseSpeed, unit)
		r.MapSpeedLimit = units.ConvertSpeed(r.MapSpeedLimit, unit)
		out[i] = r
	}
	return out
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	unit, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	st, ok := s.states.Latest()
	if !ok {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No vehicle state yet")
		return
	}
	s.writeJSON(w, convertState(st, unit))
}

func (s *Server) listStates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.requireDB(w) {
		return
	}
	unit, ok := s.requestUnits(w, r)
	if !ok {
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 10000 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	records, err := s.db.RecentStates(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve states: %v", err))
		return
	}
	s.writeJSON(w, convertRecords(records, unit))
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	stats := map[string]interface{}{
		"loop": s.states.Stats(),
	}
	if s.recorder != nil {
		stats["recorder"] = s.recorder.Stats()
	}
	if s.bridge != nil {
		stats["map_updates"] = s.bridge.Published()
	}
	s.writeJSON(w, stats)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	params, err := config.CarParamsFor(s.tuning.GetVariant(), s.tuning.GetGasInterceptor())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to build car params: %v", err))
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"units":      s.units,
		"car_params": params,
		"tuning":     s.tuning,
	})
}

func (s *Server) handleSpeedLimit(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Map bridge not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		latest, ok := s.bridge.Latest()
		if !ok {
			s.writeJSONError(w, http.StatusNotFound, "No speed limit published")
			return
		}
		s.writeJSON(w, latest)
	case http.MethodPost:
		var update mapd.SpeedLimit
		dec := json.NewDecoder(io.LimitReader(r.Body, maxSpeedLimitBody))
		if err := dec.Decode(&update); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
		update.ReceivedAt = time.Time{}
		if err := s.bridge.Publish(update); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.requireDB(w) {
		return
	}
	sessions, err := s.db.Sessions()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	s.writeJSON(w, sessions)
}

// loadSession fetches the states of the {id} session, answering 404 when the
// session has none.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) ([]db.StateRecord, bool) {
	if !s.requireDB(w) {
		return nil, false
	}
	id := r.PathValue("id")
	records, err := s.db.SessionStates(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve session states: %v", err))
		return nil, false
	}
	if len(records) == 0 {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No states recorded for session %q", id))
		return nil, false
	}
	return records, true
}

func (s *Server) sessionStates(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	records, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, convertRecords(records, unit))
}

func (s *Server) sessionSummary(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	records, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, report.Summarize(records, unit))
}

func (s *Server) sessionSpeedPlot(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	records, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=\"ocelot-%s.png\"", security.SanitizeFilename(r.PathValue("id"))))
	if err := report.WriteSpeedPNG(w, records, unit); err != nil {
		monitoring.Logf("[api] failed to render speed plot: %v", err)
	}
}

// speedChart renders recent states, or one session with ?session=, as an
// interactive HTML chart.
func (s *Server) speedChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.requireDB(w) {
		return
	}
	unit, ok := s.requestUnits(w, r)
	if !ok {
		return
	}

	var (
		records  []db.StateRecord
		err      error
		subtitle string
	)
	if id := r.URL.Query().Get("session"); id != "" {
		records, err = s.db.SessionStates(id)
		subtitle = "session " + id
	} else {
		records, err = s.db.RecentStates(1000)
		subtitle = "recent states"
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve states: %v", err))
		return
	}
	if len(records) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "No states recorded")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderSpeedChart(w, records, unit, subtitle); err != nil {
		monitoring.Logf("[api] failed to render speed chart: %v", err)
	}
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
