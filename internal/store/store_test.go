package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vthunder/focuspet/internal/focus"
)

var drivers = []string{DriverCGO, DriverPureGo}

func openTest(t *testing.T, driver string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "focus.db"), driver)
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string, start time.Time, score int) focus.Record {
	return focus.Record{
		ID:         id,
		UserID:     "u1",
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
		LookingMs:  int64(score) * 1000,
		AwayMs:     int64(100-score) * 1000,
		Activity:   map[string]int64{"Code": 1200000, "Slack": 600000},
		Sites:      map[string]int64{"github.com": 300000},
		FocusScore: score,
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "x.db"), "postgres"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestSaveGet(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := openTest(t, driver)
			ctx := context.Background()
			start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			r := record("s1", start, 80)

			if err := s.Save(ctx, r); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Get(ctx, "s1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !got.StartTime.Equal(start) || got.FocusScore != 80 || got.LookingMs != 80000 || got.UserID != "u1" {
				t.Errorf("round trip = %+v", got)
			}
			if got.Activity["Code"] != 1200000 || got.Sites["github.com"] != 300000 {
				t.Errorf("usage = %v / %v", got.Activity, got.Sites)
			}

			// re-saving replaces usage rows
			r.Activity = map[string]int64{"Terminal": 5}
			if err := s.Save(ctx, r); err != nil {
				t.Fatal(err)
			}
			got, _ = s.Get(ctx, "s1")
			if len(got.Activity) != 1 || got.Activity["Terminal"] != 5 {
				t.Errorf("usage after resave = %v", got.Activity)
			}

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get missing: %v", err)
			}
		})
	}
}

func TestRecentSinceDelete(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := openTest(t, driver)
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			for i, id := range []string{"a", "b", "c"} {
				if err := s.Save(ctx, record(id, base.Add(time.Duration(i)*time.Hour), 50)); err != nil {
					t.Fatal(err)
				}
			}

			recent, err := s.Recent(ctx, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
				t.Errorf("Recent = %v", ids(recent))
			}

			since, _ := s.Since(ctx, base.Add(time.Hour))
			if len(since) != 2 || since[0].ID != "b" {
				t.Errorf("Since = %v", ids(since))
			}

			if err := s.Delete(ctx, "b"); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "b"); !errors.Is(err, ErrNotFound) {
				t.Errorf("double delete: %v", err)
			}
			all, _ := s.Recent(ctx, 0)
			if len(all) != 2 {
				t.Errorf("after delete = %v", ids(all))
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := openTest(t, DriverPureGo)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	s.Save(ctx, record("a", now.Add(-2*time.Hour), 90))
	s.Save(ctx, record("b", now.Add(-26*time.Hour), 70))

	st, err := s.Stats(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Sessions != 2 || st.AverageScore != 80 || st.StreakDays != 2 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestHandleSessionMergesTotals(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := openTest(t, driver)
			ctx := context.Background()
			start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

			if err := s.HandleSession(ctx, record("a", start, 60)); err != nil {
				t.Fatal(err)
			}
			if err := s.HandleSession(ctx, record("b", start.Add(time.Hour), 60)); err != nil {
				t.Fatal(err)
			}
			totals, err := s.AppTotals(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if totals["Code"] != 2400000 || totals["Slack"] != 1200000 {
				t.Errorf("totals = %v", totals)
			}

			merged, err := s.MergeAppTotals(ctx, map[string]int64{"Code": 1, "Figma": 2})
			if err != nil {
				t.Fatal(err)
			}
			if merged["Code"] != 2400001 || merged["Figma"] != 2 {
				t.Errorf("merged = %v", merged)
			}
		})
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.db")
	s, err := Open(path, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	s.Save(ctx, record("a", time.Now(), 10))
	s.Close()

	s, err = Open(path, DriverCGO)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Errorf("record lost across reopen: %v", err)
	}
}

func ids(rs []focus.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestDeleteLeavesNoUsageRows(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := openTest(t, driver)
			ctx := context.Background()
			s.db.SetMaxOpenConns(4)

			// every pooled connection enforces foreign keys, not just the first
			var conns []*sql.Conn
			for i := 0; i < 3; i++ {
				c, err := s.db.Conn(ctx)
				if err != nil {
					t.Fatal(err)
				}
				conns = append(conns, c)
			}
			for i, c := range conns {
				var on int
				if err := c.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&on); err != nil {
					t.Fatal(err)
				}
				if on != 1 {
					t.Errorf("conn %d: foreign_keys = %d", i, on)
				}
			}
			for _, c := range conns {
				c.Close()
			}

			if err := s.Save(ctx, record("a", time.Now(), 70)); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			var n int
			if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_usage WHERE session_id = ?`, "a").Scan(&n); err != nil {
				t.Fatal(err)
			}
			if n != 0 {
				t.Errorf("%d orphaned usage rows", n)
			}
		})
	}
}
