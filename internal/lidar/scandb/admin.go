package scandb

import (
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/rplidar.report/internal/httputil"
)

// AttachAdminRoutes mounts live SQL and a session listing on the /debug/
// pages of mux.
func (db *ScanDB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Scan DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("sessions", "Recorded scan sessions (JSON)", http.HandlerFunc(db.handleSessions))
	return nil
}

func (db *ScanDB) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := db.Sessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}

	type summary struct {
		Session
		Revolutions int `json:"revolutions"`
	}
	out := make([]summary, 0, len(sessions))
	for _, s := range sessions {
		revs, err := db.Revolutions(s.ID)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list revolutions: %v", err))
			return
		}
		out = append(out, summary{Session: s, Revolutions: len(revs)})
	}
	httputil.WriteJSONOK(w, out)
}
