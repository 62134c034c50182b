package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

// Package-level shared state — set by TestMain, used by all subtests.
var (
	testStore  *Store
	testLogger *zap.Logger
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	testLogger = zap.NewNop()

	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("firmament_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres container unavailable, skipping store tests: %v\n", err)
		os.Exit(0)
	}

	code := func() int {
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "pg connection string: %v\n", err)
			return 1
		}

		testStore, err = New(dsn, testLogger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "store: %v\n", err)
			return 1
		}
		defer testStore.Close()

		if err := testStore.Migrate(ctx, "../../migrations"); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			return 1
		}
		if err := testStore.Verify(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "verify: %v\n", err)
			return 1
		}

		return m.Run()
	}()

	if err := testcontainers.TerminateContainer(container); err != nil {
		fmt.Fprintf(os.Stderr, "terminate container: %v\n", err)
	}
	os.Exit(code)
}

func TestFirstContact(t *testing.T) {
	ctx := context.Background()

	prevSeen, err := testStore.UpdateRelationship(ctx, "u-first", "Wanderer")
	if err != nil {
		t.Fatalf("update relationship: %v", err)
	}
	if prevSeen != nil {
		t.Errorf("first contact should have no previous sighting, got %v", prevSeen)
	}

	stats, err := testStore.GetRelationshipStats(ctx, "u-first")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats == nil {
		t.Fatal("relationship row missing after first contact")
	}
	if stats.Row.InteractionCount != 1 {
		t.Errorf("interaction count = %d, want 1", stats.Row.InteractionCount)
	}
	// log1p(1)/5 with no facts
	if math.Abs(stats.Row.DepthScore-0.139) > 0.001 {
		t.Errorf("depth = %v, want ≈0.139", stats.Row.DepthScore)
	}

	prevSeen, err = testStore.UpdateRelationship(ctx, "u-first", "Wanderer")
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if prevSeen == nil {
		t.Error("second contact should return the previous last_seen")
	}
}

func TestAssembleContextOrdering(t *testing.T) {
	ctx := context.Background()
	const user = "u-assemble"

	facts := []struct {
		text string
		conf float64
	}{
		{"keeps a garden of black roses", 0.5},
		{"speaks four dead languages", 0.9},
		{"fears deep water", 0.9},
		{"collects meteor fragments", 0.7},
	}
	for _, f := range facts {
		if err := testStore.InsertFact(ctx, user, "Sel", f.text, f.conf, "fact"); err != nil {
			t.Fatalf("insert fact: %v", err)
		}
	}
	if err := testStore.InsertEpisode(ctx, user, "Discussed the nature of tides."); err != nil {
		t.Fatalf("insert episode: %v", err)
	}

	snap, err := testStore.AssembleContext(ctx, user, "Sel")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(snap.Facts) != 4 {
		t.Fatalf("facts = %d, want 4", len(snap.Facts))
	}
	for i := 1; i < len(snap.Facts); i++ {
		prev, cur := snap.Facts[i-1], snap.Facts[i]
		if cur.Confidence > prev.Confidence {
			t.Errorf("facts not ordered by confidence: %v before %v", prev.Confidence, cur.Confidence)
		}
		if cur.Confidence == prev.Confidence && cur.CreatedAt.After(prev.CreatedAt) {
			t.Errorf("equal-confidence facts not ordered newest first")
		}
	}
	if snap.Facts[len(snap.Facts)-1].Text != "keeps a garden of black roses" {
		t.Errorf("lowest-confidence fact should sort last, got %q", snap.Facts[len(snap.Facts)-1].Text)
	}
	if len(snap.Episodes) != 1 {
		t.Errorf("episodes = %d, want 1", len(snap.Episodes))
	}
	if snap.HasWorking {
		t.Error("no working context was stored")
	}

	// Assembly must bump access counters for every surfaced fact.
	var minAccess int
	err = testStore.db.QueryRow(ctx, `
		SELECT MIN(access_count) FROM ace_semantic WHERE user_id = $1`, user).Scan(&minAccess)
	if err != nil {
		t.Fatalf("read access counts: %v", err)
	}
	if minAccess < 1 {
		t.Errorf("surfaced facts should have access_count >= 1, min = %d", minAccess)
	}

	// A second assembly with no intervening writes must return the same
	// orderings; in particular the access bump from the first call must not
	// reshuffle anything.
	again, err := testStore.AssembleContext(ctx, user, "Sel")
	if err != nil {
		t.Fatalf("second assemble: %v", err)
	}
	if len(again.Facts) != len(snap.Facts) {
		t.Fatalf("fact count changed between assemblies: %d vs %d", len(snap.Facts), len(again.Facts))
	}
	for i := range snap.Facts {
		if again.Facts[i].ID != snap.Facts[i].ID {
			t.Errorf("fact order diverged at %d: id %d vs %d", i, snap.Facts[i].ID, again.Facts[i].ID)
		}
	}
	if len(again.Episodes) != len(snap.Episodes) {
		t.Fatalf("episode count changed between assemblies: %d vs %d", len(snap.Episodes), len(again.Episodes))
	}
	for i := range snap.Episodes {
		if again.Episodes[i].ID != snap.Episodes[i].ID {
			t.Errorf("episode order diverged at %d: id %d vs %d", i, snap.Episodes[i].ID, again.Episodes[i].ID)
		}
	}
}

func TestWorkingContextReplace(t *testing.T) {
	ctx := context.Background()
	const user = "u-working"

	if err := testStore.ReplaceWorkingContext(ctx, user, "talking about starlight"); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	if err := testStore.ReplaceWorkingContext(ctx, user, "talking about rust"); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	snap, err := testStore.AssembleContext(ctx, user, "x")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !snap.HasWorking || snap.Working != "talking about rust" {
		t.Errorf("working = %q (has=%v), want the replacement", snap.Working, snap.HasWorking)
	}
}

// backdateFact pushes a fact's created_at into the past so decay applies.
func backdateFact(t *testing.T, userID, fact string, age time.Duration) {
	t.Helper()
	_, err := testStore.db.Exec(context.Background(), `
		UPDATE ace_semantic SET created_at = now() - $3::interval
		WHERE user_id = $1 AND fact = $2`,
		userID, fact, fmt.Sprintf("%d seconds", int(age.Seconds())))
	if err != nil {
		t.Fatalf("backdate fact: %v", err)
	}
}

func factState(t *testing.T, userID, fact string) (float64, bool) {
	t.Helper()
	var conf float64
	var active bool
	err := testStore.db.QueryRow(context.Background(), `
		SELECT confidence, active FROM ace_semantic
		WHERE user_id = $1 AND fact = $2`, userID, fact).Scan(&conf, &active)
	if err != nil {
		t.Fatalf("read fact: %v", err)
	}
	return conf, active
}

func TestDecay(t *testing.T) {
	ctx := context.Background()
	const user = "u-decay"
	cfg := DefaultDecayConfig()

	// 100 days old at 0.9 → loses 0.5, stays active.
	if err := testStore.InsertFact(ctx, user, "x", "old but sturdy", 0.9, "fact"); err != nil {
		t.Fatal(err)
	}
	backdateFact(t, user, "old but sturdy", 100*24*time.Hour)

	// 100 days old at 0.6 → 0.1, below the floor, retired.
	if err := testStore.InsertFact(ctx, user, "x", "old and frail", 0.6, "fact"); err != nil {
		t.Fatal(err)
	}
	backdateFact(t, user, "old and frail", 100*24*time.Hour)

	// Old but frequently accessed → untouched.
	if err := testStore.InsertFact(ctx, user, "x", "old but beloved", 0.6, "fact"); err != nil {
		t.Fatal(err)
	}
	backdateFact(t, user, "old but beloved", 100*24*time.Hour)
	_, err := testStore.db.Exec(ctx, `
		UPDATE ace_semantic SET access_count = $3
		WHERE user_id = $1 AND fact = $2`, user, "old but beloved", cfg.ProtectedAccess)
	if err != nil {
		t.Fatal(err)
	}

	// Young fact → untouched regardless of confidence.
	if err := testStore.InsertFact(ctx, user, "x", "fresh", 0.2, "fact"); err != nil {
		t.Fatal(err)
	}

	stats, err := testStore.DecayFacts(ctx, cfg)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if stats.Decayed < 1 || stats.Retired < 1 {
		t.Errorf("stats = %+v, want at least one decayed and one retired", stats)
	}

	conf, active := factState(t, user, "old but sturdy")
	if !active || math.Abs(conf-0.4) > 0.01 {
		t.Errorf("sturdy fact: conf=%v active=%v, want ≈0.4 active", conf, active)
	}
	if _, active := factState(t, user, "old and frail"); active {
		t.Error("frail fact should be retired")
	}
	if conf, active := factState(t, user, "old but beloved"); !active || conf != 0.6 {
		t.Errorf("protected fact: conf=%v active=%v, want 0.6 active", conf, active)
	}
	if conf, active := factState(t, user, "fresh"); !active || conf != 0.2 {
		t.Errorf("young fact: conf=%v active=%v, want 0.2 active", conf, active)
	}

	// An immediate second pass charges no further decay.
	confBefore, _ := factState(t, user, "old but sturdy")
	if _, err := testStore.DecayFacts(ctx, cfg); err != nil {
		t.Fatalf("second decay: %v", err)
	}
	confAfter, _ := factState(t, user, "old but sturdy")
	if confBefore != confAfter {
		t.Errorf("rerun changed confidence %v → %v, want no-op", confBefore, confAfter)
	}
}

func TestCompactEpisodes(t *testing.T) {
	ctx := context.Background()
	const user = "u-compact"

	for i := 0; i < 30; i++ {
		if err := testStore.InsertEpisode(ctx, user, fmt.Sprintf("episode %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := testStore.CompactEpisodes(ctx, user, 25)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if n != 5 {
		t.Errorf("deactivated = %d, want 5", n)
	}

	var active int
	var oldestActive string
	if err := testStore.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM ace_episodic WHERE user_id = $1 AND active`, user).Scan(&active); err != nil {
		t.Fatal(err)
	}
	if active != 25 {
		t.Errorf("active episodes = %d, want 25", active)
	}
	err = testStore.db.QueryRow(ctx, `
		SELECT summary FROM ace_episodic WHERE user_id = $1 AND active
		ORDER BY id ASC LIMIT 1`, user).Scan(&oldestActive)
	if err != nil {
		t.Fatal(err)
	}
	if oldestActive != "episode 5" {
		t.Errorf("oldest surviving episode = %q, want the first five gone", oldestActive)
	}

	n, err = testStore.CompactEpisodes(ctx, user, 25)
	if err != nil {
		t.Fatalf("second compact: %v", err)
	}
	if n != 0 {
		t.Errorf("second pass deactivated %d, want 0", n)
	}
}

func TestEraseUser(t *testing.T) {
	ctx := context.Background()
	const user = "u-erase"

	if _, err := testStore.UpdateRelationship(ctx, user, "Ghost"); err != nil {
		t.Fatal(err)
	}
	if err := testStore.InsertFact(ctx, user, "Ghost", "likes silence", 0.9, "fact"); err != nil {
		t.Fatal(err)
	}
	if err := testStore.InsertEpisode(ctx, user, "a quiet exchange"); err != nil {
		t.Fatal(err)
	}
	if err := testStore.ReplaceWorkingContext(ctx, user, "still here"); err != nil {
		t.Fatal(err)
	}

	if err := testStore.EraseUser(ctx, user); err != nil {
		t.Fatalf("erase: %v", err)
	}

	stats, err := testStore.GetRelationshipStats(ctx, user)
	if err != nil {
		t.Fatalf("stats after erase: %v", err)
	}
	if stats != nil {
		t.Error("relationship row should be gone")
	}
	for _, table := range []string{"ace_semantic", "ace_episodic", "ace_working_context"} {
		var n int
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = $1", table)
		if err := testStore.db.QueryRow(ctx, q, user).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("%s still has %d rows after erase", table, n)
		}
	}
}

func TestAmbientLogPrune(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if err := testStore.LogAmbient(ctx, "chan-1", fmt.Sprintf("utterance %d", i), ""); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := testStore.RecentAmbients(ctx, 100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != ambientLogKeep {
		t.Errorf("ambient log holds %d entries, want %d", len(entries), ambientLogKeep)
	}
	if entries[0].Message != "utterance 59" {
		t.Errorf("newest first: got %q", entries[0].Message)
	}
}

func TestEntityState(t *testing.T) {
	ctx := context.Background()

	if err := testStore.IncrementInteractions(ctx); err != nil {
		t.Fatal(err)
	}
	if err := testStore.SetContemplation(ctx, "the weight of names"); err != nil {
		t.Fatal(err)
	}

	state, err := testStore.GetEntityState(ctx)
	if err != nil {
		t.Fatalf("entity state: %v", err)
	}
	if state.InteractionsToday < 1 {
		t.Errorf("interactions = %d, want >= 1", state.InteractionsToday)
	}
	if state.Contemplation != "the weight of names" {
		t.Errorf("contemplation = %q", state.Contemplation)
	}

	if err := testStore.ResetDailyInteractions(ctx); err != nil {
		t.Fatal(err)
	}
	state, err = testStore.GetEntityState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.InteractionsToday != 0 {
		t.Errorf("interactions after reset = %d, want 0", state.InteractionsToday)
	}
}
