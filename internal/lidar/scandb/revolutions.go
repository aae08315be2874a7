package scandb

import (
	"fmt"
	"time"

	"github.com/banshee-data/rplidar.report/internal/lidar/parse"
	"github.com/banshee-data/rplidar.report/internal/lidar/revolution"
)

// RevolutionSummary is a stored revolution without its points.
type RevolutionSummary struct {
	ID        int64
	SessionID string
	Index     int
	StartedAt time.Time
	EndedAt   time.Time
	Sweeps    int
	Partial   bool
	Stats     revolution.Stats
}

// RecordRevolution stores rev and its points under sessionID and returns the
// revolution's row ID.
func (db *ScanDB) RecordRevolution(sessionID string, rev *revolution.Revolution) (int64, error) {
	if rev == nil {
		return 0, nil
	}
	stats := rev.Stats()

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO scan_revolutions
		(session_id, revolution_index, started_unix_nanos, ended_unix_nanos, sweeps,
		 point_count, valid_count, mean_mm, stddev_mm, min_mm, max_mm, partial)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rev.Index, rev.StartedAt.UnixNano(), rev.EndedAt.UnixNano(), rev.Sweeps,
		stats.Points, stats.Valid, stats.MeanMM, stats.StdDevMM, stats.MinMM, stats.MaxMM, rev.Partial)
	if err != nil {
		return 0, fmt.Errorf("failed to insert revolution %d: %w", rev.Index, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO scan_points (revolution_id, seq, angle_q6, distance_q2) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, p := range rev.Points {
		if _, err := stmt.Exec(id, i, p.AngleQ6, p.DistanceQ2); err != nil {
			return 0, fmt.Errorf("failed to insert point %d of revolution %d: %w", i, rev.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Revolutions returns the summaries of a session's revolutions in order.
func (db *ScanDB) Revolutions(sessionID string) ([]RevolutionSummary, error) {
	rows, err := db.Query(`SELECT revolution_id, session_id, revolution_index, started_unix_nanos, ended_unix_nanos,
		sweeps, partial, point_count, valid_count, mean_mm, stddev_mm, min_mm, max_mm
		FROM scan_revolutions WHERE session_id = ? ORDER BY revolution_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RevolutionSummary
	for rows.Next() {
		var (
			r              RevolutionSummary
			started, ended int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Index, &started, &ended, &r.Sweeps, &r.Partial,
			&r.Stats.Points, &r.Stats.Valid, &r.Stats.MeanMM, &r.Stats.StdDevMM, &r.Stats.MinMM, &r.Stats.MaxMM); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.EndedAt = time.Unix(0, ended).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// RevolutionPoints returns the stored points of a revolution in capture
// order.
func (db *ScanDB) RevolutionPoints(revolutionID int64) ([]parse.LidarPoint, error) {
	rows, err := db.Query(`SELECT angle_q6, distance_q2 FROM scan_points WHERE revolution_id = ? ORDER BY seq`, revolutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []parse.LidarPoint
	for rows.Next() {
		var p parse.LidarPoint
		if err := rows.Scan(&p.AngleQ6, &p.DistanceQ2); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
