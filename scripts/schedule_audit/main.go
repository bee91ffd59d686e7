// Command schedule_audit scans the lecture table for invariant
// violations the API should have prevented: overlapping lectures for a
// single teacher, sessions longer than five hours, and rows whose
// window falls outside the stored date. It exits non-zero when any
// violation is found, so it can gate deploys and run from cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusware/atp-api/pkg/config"
	"github.com/campusware/atp-api/pkg/database"
)

type overlapRow struct {
	TeacherID string    `db:"t_id"`
	FirstID   string    `db:"first_id"`
	SecondID  string    `db:"second_id"`
	FirstEnd  time.Time `db:"first_end"`
	SecondSt  time.Time `db:"second_start"`
}

type badWindowRow struct {
	LectureID string    `db:"l_id"`
	StartTime time.Time `db:"s_time"`
	EndTime   time.Time `db:"e_time"`
	Date      time.Time `db:"l_date"`
}

func main() {
	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall query timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	overlaps, err := findOverlaps(ctx, db)
	if err != nil {
		log.Fatalf("overlap scan failed: %v", err)
	}
	badWindows, err := findBadWindows(ctx, db)
	if err != nil {
		log.Fatalf("window scan failed: %v", err)
	}

	printReport(overlaps, badWindows)

	if len(overlaps)+len(badWindows) > 0 {
		os.Exit(1)
	}
}

// findOverlaps pairs every lecture with any later-starting lecture of
// the same teacher whose window collides, half-open.
func findOverlaps(ctx context.Context, db *sqlx.DB) ([]overlapRow, error) {
	const query = `
		SELECT a.t_id,
		       a.l_id AS first_id, b.l_id AS second_id,
		       a.e_time AS first_end, b.s_time AS second_start
		FROM lecture a
		JOIN lecture b
		  ON a.t_id = b.t_id
		 AND a.l_id < b.l_id
		 AND a.e_time > b.s_time
		 AND a.s_time < b.e_time
		ORDER BY a.t_id, a.s_time`

	var rows []overlapRow
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select overlapping lectures: %w", err)
	}
	return rows, nil
}

func findBadWindows(ctx context.Context, db *sqlx.DB) ([]badWindowRow, error) {
	const query = `
		SELECT l_id, s_time, e_time, l_date
		FROM lecture
		WHERE e_time <= s_time
		   OR e_time - s_time > INTERVAL '5 hours'
		   OR s_time::date <> l_date
		   OR e_time::date <> l_date
		ORDER BY l_date, s_time`

	var rows []badWindowRow
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select malformed lecture windows: %w", err)
	}
	return rows, nil
}

func printReport(overlaps []overlapRow, badWindows []badWindowRow) {
	fmt.Println("Schedule Audit Report")
	fmt.Println("=====================")

	if len(overlaps) == 0 {
		fmt.Println("No overlapping lectures.")
	}
	for _, o := range overlaps {
		fmt.Printf("[OVERLAP] teacher %s: %s ends %s after %s starts %s\n",
			o.TeacherID, o.FirstID, o.FirstEnd.Format("2006-01-02 15:04"),
			o.SecondID, o.SecondSt.Format("2006-01-02 15:04"))
	}

	if len(badWindows) == 0 {
		fmt.Println("No malformed lecture windows.")
	}
	for _, w := range badWindows {
		fmt.Printf("[WINDOW] %s: %s .. %s on %s\n",
			w.LectureID, w.StartTime.Format("15:04"), w.EndTime.Format("15:04"),
			w.Date.Format("2006-01-02"))
	}

	fmt.Printf("Overlaps: %d, Malformed windows: %d\n", len(overlaps), len(badWindows))
}
