// Command speedplot renders the recorded speed of a session as a PNG and
// prints its summary.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/report"
	"github.com/banshee-data/ocelot/internal/security"
	"github.com/banshee-data/ocelot/internal/units"
)

func main() {
	var dbPath string
	var sessionID string
	var unit string
	var out string

	flag.StringVar(&dbPath, "db", "ocelot.db", "path to sqlite db")
	flag.StringVar(&sessionID, "session", "", "session ID (default: most recent)")
	flag.StringVar(&unit, "units", units.MPH, "speed units ("+units.GetValidUnitsString()+")")
	flag.StringVar(&out, "out", "speed.png", "output PNG path, inside the working or temp directory")
	flag.Parse()

	if !units.IsValid(unit) {
		log.Fatalf("invalid units %q", unit)
	}

	dbConn, err := db.NewDBWithMigrationCheck(dbPath, false)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	summary, err := run(dbConn, sessionID, unit, out)
	if err != nil {
		log.Fatalf("%v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(summary)
	fmt.Printf("wrote %s\n", out)
}

// run resolves the session, writes the plot to out and returns the summary.
func run(d *db.DB, sessionID, unit, out string) (report.Summary, error) {
	if err := security.ValidateOutputPath(out); err != nil {
		return report.Summary{}, err
	}
	if sessionID == "" {
		sessions, err := d.Sessions()
		if err != nil {
			return report.Summary{}, fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			return report.Summary{}, fmt.Errorf("no sessions recorded")
		}
		sessionID = sessions[0].ID
	}

	records, err := d.SessionStates(sessionID)
	if err != nil {
		return report.Summary{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	f, err := os.Create(out)
	if err != nil {
		return report.Summary{}, err
	}
	if err := report.WriteSpeedPNG(f, records, unit); err != nil {
		f.Close()
		return report.Summary{}, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if err := f.Close(); err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(records, unit), nil
}
