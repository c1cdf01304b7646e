package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ocelot/internal/vehicle"
)

// ErrSessionNotFound is returned when a session ID does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the control loop.
type Session struct {
	ID          string   `json:"session_id"`
	Variant     string   `json:"variant"`
	Notes       string   `json:"notes"`
	StartedUnix float64  `json:"started_unix"`
	EndedUnix   *float64 `json:"ended_unix,omitempty"`
}

// StateSample is a vehicle state taken at a given control cycle.
type StateSample struct {
	Cycle uint64
	At    time.Time
	State vehicle.VehicleState
}

// StateRecord is a stored vehicle state row. Speeds are in m/s.
type StateRecord struct {
	SessionID       string   `json:"session_id"`
	Cycle           uint64   `json:"cycle"`
	TimestampUnix   float64  `json:"ts_unix"`
	VEgoRaw         float64  `json:"v_ego_raw"`
	VEgo            float64  `json:"v_ego"`
	AEgo            float64  `json:"a_ego"`
	Standstill      bool     `json:"standstill"`
	Gear            string   `json:"gear"`
	SteeringAngle   float64  `json:"steering_angle"`
	SteeringTorque  float64  `json:"steering_torque"`
	SteeringPressed bool     `json:"steering_pressed"`
	BrakePressed    bool     `json:"brake_pressed"`
	Gas             float64  `json:"gas"`
	GasPressed      bool     `json:"gas_pressed"`
	CruiseEnabled   bool     `json:"cruise_enabled"`
	CruiseSpeed     float64  `json:"cruise_speed"`
	EngineRPM       float64  `json:"engine_rpm"`
	CanValid        bool     `json:"can_valid"`
	MapSpeedLimit   float64  `json:"map_speed_limit"`
	Events          []string `json:"events"`
}

// ButtonRecord is a stored button event.
type ButtonRecord struct {
	SessionID     string  `json:"session_id"`
	Cycle         uint64  `json:"cycle"`
	TimestampUnix float64 `json:"ts_unix"`
	Button        string  `json:"button"`
	Pressed       bool    `json:"pressed"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateSession starts a new session with a random ID.
func (db *DB) CreateSession(variant, notes string, startedAt time.Time) (Session, error) {
	s := Session{
		ID:          uuid.NewString(),
		Variant:     variant,
		Notes:       notes,
		StartedUnix: unixSeconds(startedAt),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, variant, notes, started_unix) VALUES (?, ?, ?, ?)`,
		s.ID, s.Variant, s.Notes, s.StartedUnix,
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// EndSession stamps the session end time.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix = ? WHERE session_id = ?`, unixSeconds(endedAt), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Sessions returns all sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, variant, notes, started_unix, ended_unix FROM sessions ORDER BY started_unix DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s     Session
			ended sql.NullFloat64
		)
		if err := rows.Scan(&s.ID, &s.Variant, &s.Notes, &s.StartedUnix, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			v := ended.Float64
			s.EndedUnix = &v
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RecordState stores a single sample.
func (db *DB) RecordState(sessionID string, s StateSample) error {
	return db.RecordStates(sessionID, []StateSample{s})
}

// RecordStates stores samples in one transaction together with the pressed
// buttons of each sample.
func (db *DB) RecordStates(sessionID string, samples []StateSample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stateStmt, err := tx.Prepare(`INSERT INTO vehicle_states (
			session_id, cycle, ts_unix, v_ego_raw, v_ego, a_ego, standstill, gear,
			steering_angle, steering_torque, steering_pressed, brake_pressed,
			gas, gas_pressed, cruise_enabled, cruise_speed, engine_rpm, can_valid,
			events, map_speed_limit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stateStmt.Close()

	for _, s := range samples {
		st := s.State
		events := make([]string, len(st.Events))
		for i, e := range st.Events {
			events[i] = string(e)
		}
		mapLimit := 0.0
		if st.MapSpeedLimitValid {
			mapLimit = st.MapSpeedLimit
		}
		if _, err := stateStmt.Exec(
			sessionID, s.Cycle, unixSeconds(s.At), st.VEgoRaw, st.VEgo, st.AEgo,
			boolInt(st.Standstill), string(st.GearShifter),
			st.SteeringAngle, st.SteeringTorque, boolInt(st.SteeringPressed), boolInt(st.BrakePressed),
			st.Gas, boolInt(st.GasPressed), boolInt(st.CruiseState.Enabled), st.CruiseState.Speed,
			st.EngineRPM, boolInt(st.CanValid), strings.Join(events, ","), mapLimit,
		); err != nil {
			return fmt.Errorf("failed to insert state for cycle %d: %w", s.Cycle, err)
		}

		var pressed []vehicle.ButtonEvent
		for _, ev := range st.ButtonEvents {
			if ev.Pressed {
				pressed = append(pressed, ev)
			}
		}
		if err := insertButtonEvents(tx, sessionID, s.Cycle, s.At, pressed); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordButtonEvents stores the given button events.
func (db *DB) RecordButtonEvents(sessionID string, cycle uint64, at time.Time, events []vehicle.ButtonEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertButtonEvents(tx, sessionID, cycle, at, events); err != nil {
		return err
	}
	return tx.Commit()
}

func insertButtonEvents(tx *sql.Tx, sessionID string, cycle uint64, at time.Time, events []vehicle.ButtonEvent) error {
	for _, ev := range events {
		if _, err := tx.Exec(
			`INSERT INTO button_events (session_id, cycle, ts_unix, button, pressed) VALUES (?, ?, ?, ?, ?)`,
			sessionID, cycle, unixSeconds(at), ev.Type.String(), boolInt(ev.Pressed),
		); err != nil {
			return fmt.Errorf("failed to insert button event: %w", err)
		}
	}
	return nil
}

// RecordSpeedLimit stores a map speed limit update.
func (db *DB) RecordSpeedLimit(sessionID string, limitMps float64, valid bool, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO map_speed_limits (session_id, ts_unix, speed_limit_mps, valid) VALUES (?, ?, ?, ?)`,
		sessionID, unixSeconds(at), limitMps, boolInt(valid),
	)
	if err != nil {
		return fmt.Errorf("failed to record speed limit: %w", err)
	}
	return nil
}

const stateColumns = `session_id, cycle, ts_unix, v_ego_raw, v_ego, a_ego, standstill, gear,
	steering_angle, steering_torque, steering_pressed, brake_pressed, gas, gas_pressed,
	cruise_enabled, cruise_speed, engine_rpm, can_valid, map_speed_limit, events`

func scanStates(rows *sql.Rows) ([]StateRecord, error) {
	defer rows.Close()

	var out []StateRecord
	for rows.Next() {
		var (
			r                                      StateRecord
			standstill, steerPressed, brakePressed int
			gasPressed, cruiseEnabled, canValid    int
			events                                 string
		)
		if err := rows.Scan(
			&r.SessionID, &r.Cycle, &r.TimestampUnix, &r.VEgoRaw, &r.VEgo, &r.AEgo, &standstill, &r.Gear,
			&r.SteeringAngle, &r.SteeringTorque, &steerPressed, &brakePressed, &r.Gas, &gasPressed,
			&cruiseEnabled, &r.CruiseSpeed, &r.EngineRPM, &canValid, &r.MapSpeedLimit, &events,
		); err != nil {
			return nil, err
		}
		r.Standstill = standstill != 0
		r.SteeringPressed = steerPressed != 0
		r.BrakePressed = brakePressed != 0
		r.GasPressed = gasPressed != 0
		r.CruiseEnabled = cruiseEnabled != 0
		r.CanValid = canValid != 0
		r.Events = []string{}
		if events != "" {
			r.Events = strings.Split(events, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentStates returns up to limit of the newest states across sessions,
// oldest first.
func (db *DB) RecentStates(limit int) ([]StateRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+stateColumns+` FROM (
			SELECT * FROM vehicle_states ORDER BY state_id DESC LIMIT ?
		) ORDER BY state_id ASC`, limit)
	if err != nil {
		return nil, err
	}
	return scanStates(rows)
}

// SessionStates returns every state of a session in cycle order.
func (db *DB) SessionStates(sessionID string) ([]StateRecord, error) {
	rows, err := db.Query(`SELECT `+stateColumns+` FROM vehicle_states WHERE session_id = ? ORDER BY cycle ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanStates(rows)
}

// SessionButtonEvents returns the recorded button events of a session.
func (db *DB) SessionButtonEvents(sessionID string) ([]ButtonRecord, error) {
	rows, err := db.Query(`SELECT session_id, cycle, ts_unix, button, pressed
		FROM button_events WHERE session_id = ? ORDER BY cycle ASC, event_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ButtonRecord
	for rows.Next() {
		var (
			r       ButtonRecord
			pressed int
		)
		if err := rows.Scan(&r.SessionID, &r.Cycle, &r.TimestampUnix, &r.Button, &pressed); err != nil {
			return nil, err
		}
		r.Pressed = pressed != 0
		out = append(out, r)
	}
	return out, rows.Err()
}
