package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/normalize"
	"summoner-insights/internal/riot/riottest"
	"summoner-insights/internal/storage"
)

var day = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// testStores returns a fresh SQLite store and, when TEST_DATABASE_URL is
// set, a truncated Postgres store.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	stores := map[string]Store{}

	sqlite, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "insights.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	stores["sqlite"] = sqlite

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		pg, err := NewPostgresStore(ctx, url)
		if err != nil {
			t.Fatalf("NewPostgresStore: %v", err)
		}
		if _, err := pg.pool.Exec(ctx, "TRUNCATE timeline_events, timeline_snapshots, matches"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { pg.Close() })
		stores["postgres"] = pg
	}
	return stores
}

func normalized(t *testing.T, spec riottest.MatchSpec) *storage.NormalizedMatch {
	t.Helper()
	nm, err := normalize.Normalize(spec.PUUID, riottest.Match(spec), riottest.Timeline(spec))
	if err != nil {
		t.Fatalf("Normalize(%s): %v", spec.ID, err)
	}
	return nm
}

func spec(id string, playedAt time.Time) riottest.MatchSpec {
	return riottest.MatchSpec{
		ID: id, PUUID: "player-1", Champion: "Jinx", Role: "BOTTOM", Win: true,
		Kills: 8, Deaths: 3, Assists: 6, CS: 190, Gold: 12000, Vision: 15,
		Items:           []int{3031, 3006},
		DurationSeconds: 1500, CreatedAt: playedAt, DeathSeconds: []int64{300, 1000, 1400},
	}
}

func TestUpsertMatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			nm := normalized(t, spec("NA1_100", day))

			inserted, err := store.UpsertMatch(ctx, nm)
			if err != nil || !inserted {
				t.Fatalf("first upsert = %v, %v", inserted, err)
			}
			before, err := store.Counts(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if before.Matches != 1 || before.Snapshots != len(nm.Snapshots) || before.Events != len(nm.Events) {
				t.Fatalf("unexpected counts %+v", before)
			}

			again := normalized(t, spec("NA1_100", day.Add(48*time.Hour)))
			inserted, err = store.UpsertMatch(ctx, again)
			if err != nil || inserted {
				t.Fatalf("second upsert = %v, %v", inserted, err)
			}
			after, _ := store.Counts(ctx)
			if after != before {
				t.Errorf("counts changed on re-ingest: %+v -> %+v", before, after)
			}

			mt, err := store.MatchTimeline(ctx, "NA1_100")
			if err != nil {
				t.Fatal(err)
			}
			if !mt.Match.PlayedAt.Equal(day) {
				t.Errorf("played_at changed to %v", mt.Match.PlayedAt)
			}
		})
	}
}

func TestExistingMatchIDs(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for i, id := range []string{"NA1_1", "NA1_2"} {
				if _, err := store.UpsertMatch(ctx, normalized(t, spec(id, day.Add(time.Duration(i)*time.Hour)))); err != nil {
					t.Fatal(err)
				}
			}

			got, err := store.ExistingMatchIDs(ctx, []string{"NA1_1", "NA1_3", "NA1_2"})
			if err != nil {
				t.Fatal(err)
			}
			if !got["NA1_1"] || !got["NA1_2"] || got["NA1_3"] {
				t.Errorf("unexpected existing set %v", got)
			}

			empty, err := store.ExistingMatchIDs(ctx, nil)
			if err != nil || len(empty) != 0 {
				t.Errorf("empty lookup = %v, %v", empty, err)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				id := []string{"NA1_10", "NA1_11", "NA1_12", "NA1_13", "NA1_14"}[i]
				if _, err := store.UpsertMatch(ctx, normalized(t, spec(id, day.Add(time.Duration(i)*time.Hour)))); err != nil {
					t.Fatal(err)
				}
			}

			w, err := store.Window(ctx, storage.WindowOptions{
				Limit:      3,
				EventTypes: []storage.EventType{storage.EventDeath},
				Snapshots:  true,
			})
			if err != nil {
				t.Fatalf("Window: %v", err)
			}

			wantIDs := []string{"NA1_14", "NA1_13", "NA1_12"}
			if len(w.Matches) != 3 {
				t.Fatalf("expected 3 matches, got %d", len(w.Matches))
			}
			inWindow := map[string]bool{}
			for i, m := range w.Matches {
				if m.MatchID != wantIDs[i] {
					t.Errorf("match %d = %s, want %s", i, m.MatchID, wantIDs[i])
				}
				inWindow[m.MatchID] = true
			}

			if len(w.Events) != 9 {
				t.Errorf("expected 9 death events, got %d", len(w.Events))
			}
			for _, e := range w.Events {
				if e.Type != storage.EventDeath || !inWindow[e.MatchID] {
					t.Errorf("unexpected event %+v", e)
				}
				if e.LocationX == nil {
					t.Error("death events should keep their position")
				}
			}
			if len(w.Snapshots) != 3*26 {
				t.Errorf("expected %d snapshots, got %d", 3*26, len(w.Snapshots))
			}

			all, err := store.Window(ctx, storage.WindowOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if len(all.Matches) != 5 || len(all.Events) != 0 || len(all.Snapshots) != 0 {
				t.Errorf("unbounded window: %d matches, %d events, %d snapshots",
					len(all.Matches), len(all.Events), len(all.Snapshots))
			}
			if got := all.Matches[0].Items; len(got) != 2 || got[0] != 3031 {
				t.Errorf("items round trip = %v", got)
			}
		})
	}
}

func TestWindow_Empty(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.Window(context.Background(), storage.WindowOptions{Limit: 10, Snapshots: true})
			if err != nil {
				t.Fatal(err)
			}
			if len(w.Matches) != 0 {
				t.Errorf("expected empty window, got %d", len(w.Matches))
			}
		})
	}
}

func TestMatchTimeline(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.MatchTimeline(ctx, "NA1_404"); !fault.Is(err, fault.KindNotFound) {
				t.Fatalf("expected not_found, got %v", err)
			}

			nm := normalized(t, spec("NA1_200", day))
			if _, err := store.UpsertMatch(ctx, nm); err != nil {
				t.Fatal(err)
			}

			mt, err := store.MatchTimeline(ctx, "NA1_200")
			if err != nil {
				t.Fatalf("MatchTimeline: %v", err)
			}
			if mt.Match.Champion != "Jinx" || mt.Match.KDA() != nm.Match.KDA() {
				t.Errorf("unexpected match %+v", mt.Match)
			}
			if len(mt.Snapshots) != len(nm.Snapshots) || len(mt.Events) != len(nm.Events) {
				t.Fatalf("got %d snapshots and %d events", len(mt.Snapshots), len(mt.Events))
			}
			for i := 1; i < len(mt.Snapshots); i++ {
				if mt.Snapshots[i].Minute <= mt.Snapshots[i-1].Minute {
					t.Fatal("snapshots not ordered by minute")
				}
			}
			for i := 1; i < len(mt.Events); i++ {
				if mt.Events[i].TimestampSeconds < mt.Events[i-1].TimestampSeconds {
					t.Fatal("events not ordered by timestamp")
				}
			}
			for _, e := range mt.Events {
				if e.Type == storage.EventItemPurchase && e.Metadata["item_id"] != float64(1055) {
					t.Errorf("item metadata = %v", e.Metadata)
				}
			}
		})
	}
}

func TestDeleteMatch_Cascades(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.UpsertMatch(ctx, normalized(t, spec("NA1_300", day))); err != nil {
				t.Fatal(err)
			}
			if _, err := store.UpsertMatch(ctx, normalized(t, spec("NA1_301", day.Add(time.Hour)))); err != nil {
				t.Fatal(err)
			}
			before, _ := store.Counts(ctx)

			deleted, err := store.DeleteMatch(ctx, "NA1_300")
			if err != nil || !deleted {
				t.Fatalf("DeleteMatch = %v, %v", deleted, err)
			}
			after, _ := store.Counts(ctx)
			if after.Matches != 1 || after.Snapshots != before.Snapshots/2 || after.Events != before.Events/2 {
				t.Errorf("counts after delete %+v (before %+v)", after, before)
			}

			deleted, err = store.DeleteMatch(ctx, "NA1_300")
			if err != nil || deleted {
				t.Errorf("second delete = %v, %v", deleted, err)
			}
		})
	}
}

func TestScanEvent_UnknownTypeReadsAsOther(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "insights.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.UpsertMatch(ctx, normalized(t, spec("NA1_400", day))); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx, `INSERT INTO timeline_events (`+eventColumns+`)
		VALUES ('NA1_400', 999, 2000, 'feat_of_strength', NULL, NULL, '{}')`); err != nil {
		t.Fatal(err)
	}

	mt, err := store.MatchTimeline(ctx, "NA1_400")
	if err != nil {
		t.Fatal(err)
	}
	last := mt.Events[len(mt.Events)-1]
	if last.Type != storage.EventOther || last.Metadata["raw_type"] != "feat_of_strength" {
		t.Errorf("unexpected event %+v", last)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mongo"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
