package scandb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one connected run of the sensor, from handshake to stop.
type Session struct {
	ID           string     `json:"session_id"`
	Port         string     `json:"port"`
	Model        uint8      `json:"model"`
	Firmware     string     `json:"firmware"`
	Hardware     uint8      `json:"hardware"`
	SerialNumber string     `json:"serial_number"`
	ScanMode     string     `json:"scan_mode"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// StartSession inserts s with a fresh ID and returns the ID.
func (db *ScanDB) StartSession(s *Session) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := db.Exec(`INSERT INTO scan_sessions
		(session_id, port, model, firmware, hardware, serial_number, scan_mode, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Port, s.Model, s.Firmware, s.Hardware, s.SerialNumber, s.ScanMode, s.StartedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return s.ID, nil
}

// EndSession records when a session stopped.
func (db *ScanDB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE scan_sessions SET ended_unix_nanos = ? WHERE session_id = ?`, endedAt.UnixNano(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Sessions returns every session, most recent first.
func (db *ScanDB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, port, model, firmware, hardware, serial_number, scan_mode,
		started_unix_nanos, ended_unix_nanos
		FROM scan_sessions ORDER BY started_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Port, &s.Model, &s.Firmware, &s.Hardware, &s.SerialNumber, &s.ScanMode, &started, &ended); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
