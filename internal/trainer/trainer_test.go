// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package trainer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/itemforge/itemforge/internal/config"
	"github.com/itemforge/itemforge/internal/eventstore"
	"github.com/itemforge/itemforge/internal/index"
	"github.com/itemforge/itemforge/internal/logging"
	"github.com/itemforge/itemforge/internal/models"
	"github.com/itemforge/itemforge/internal/publish"
)

// fakeStore serves canned snapshots.
type fakeStore struct {
	events  []models.Event
	props   map[string]map[string]any
	findErr error
	started chan struct{}
	release chan struct{}
}

func (f *fakeStore) Find(ctx context.Context, actionNames []string, _ *eventstore.Window) ([]models.Event, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.findErr != nil {
		return nil, f.findErr
	}

	allowed := make(map[string]struct{}, len(actionNames))
	for _, name := range actionNames {
		allowed[name] = struct{}{}
	}
	var out []models.Event
	for _, ev := range f.events {
		if _, ok := allowed[ev.ActionName]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) AggregateProperties(context.Context) (map[string]map[string]any, error) {
	return f.props, nil
}

// fakePublisher captures the model instead of talking to a backend.
type fakePublisher struct {
	model *models.Model
}

func (f *fakePublisher) Publish(_ context.Context, model *models.Model) (*publish.Report, error) {
	f.model = model
	return &publish.Report{Index: "items-test", Records: len(model.Records())}, nil
}

func at(day int) time.Time {
	return time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC)
}

func testConfig() *config.Config {
	return &config.Config{
		Events: config.EventsConfig{
			Primary:   []string{"purchase"},
			Secondary: []string{"detailView"},
		},
		Model: config.ModelConfig{
			Mode:       config.ModeAll,
			DateFields: []string{"released"},
			MaxPerItem: 50,
			MinCooccur: 1,
			Rankings: []config.RankingConfig{
				{Name: "trendRank", Kind: "popular", Events: []string{"detailView"}, Window: 30 * 24 * time.Hour},
			},
		},
	}
}

func testEvents() []models.Event {
	return []models.Event{
		{ActorID: "u1", TargetID: "m-1", ActionName: "purchase", Timestamp: at(1)},
		{ActorID: "u1", TargetID: "m-2", ActionName: "purchase", Timestamp: at(2)},
		{ActorID: "u2", TargetID: "m-1", ActionName: "purchase", Timestamp: at(3)},
		{ActorID: "u2", TargetID: "m-2", ActionName: "purchase", Timestamp: at(4)},
		{ActorID: "u3", TargetID: "m-2", ActionName: "detailView", Timestamp: at(5)},
	}
}

func newTestTrainer(t *testing.T, cfg *config.Config, store eventstore.Store, pub Publisher) *Trainer {
	t.Helper()
	return New(cfg, store, pub, logging.NewTestLogger(io.Discard))
}

func recordByID(model *models.Model, id string) (models.FusedRecord, bool) {
	for _, rec := range model.Records() {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.FusedRecord{}, false
}

func TestTrainFusesAllSources(t *testing.T) {
	store := &fakeStore{
		events: testEvents(),
		props: map[string]map[string]any{
			"m-1": {"title": "First", "released": "2016-01-19T11:55:07Z"},
			"m-2": {"title": "Second"},
		},
	}
	pub := &fakePublisher{}
	tr := newTestTrainer(t, testConfig(), store, pub)

	run, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if run.Events != 5 {
		t.Errorf("run events = %d, want 5", run.Events)
	}
	if run.Records != 2 {
		t.Errorf("run records = %d, want 2", run.Records)
	}

	rec, ok := recordByID(pub.model, "m-1")
	if !ok {
		t.Fatal("m-1 missing from published model")
	}
	// Cooccurrence from the purchase action.
	related := rec.Fields["purchase"]
	if related.Kind() != models.KindTermList || len(related.Terms()) != 1 || related.Terms()[0] != "m-2" {
		t.Errorf("m-1 purchase field = %v", related)
	}
	// Coerced properties with the declared date field.
	if rec.Fields["title"].Text() != "First" {
		t.Errorf("m-1 title = %v", rec.Fields["title"])
	}
	if rec.Fields["released"].Kind() != models.KindDate {
		t.Errorf("m-1 released kind = %v, want date", rec.Fields["released"].Kind())
	}
	// Ranking over the detailView action only scores m-2.
	if _, ok := rec.Fields["trendRank"]; ok {
		t.Error("m-1 has a trendRank score despite no detailView events")
	}
	rec2, _ := recordByID(pub.model, "m-2")
	if rec2.Fields["trendRank"].Kind() != models.KindNumber {
		t.Errorf("m-2 trendRank = %v, want number", rec2.Fields["trendRank"])
	}
}

func TestTrainComputesCooccurrenceForSecondaryActions(t *testing.T) {
	// Every action dataset with events yields a related-items field, not
	// just the primary ones.
	store := &fakeStore{
		events: append(testEvents(),
			models.Event{ActorID: "u3", TargetID: "m-1", ActionName: "detailView", Timestamp: at(6)},
		),
	}
	pub := &fakePublisher{}
	tr := newTestTrainer(t, testConfig(), store, pub)

	if _, err := tr.Train(context.Background()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	rec, ok := recordByID(pub.model, "m-1")
	if !ok {
		t.Fatal("m-1 missing from published model")
	}
	viewed := rec.Fields["detailView"]
	if viewed.Kind() != models.KindTermList || len(viewed.Terms()) != 1 || viewed.Terms()[0] != "m-2" {
		t.Errorf("m-1 detailView field = %v, want [m-2]", viewed)
	}
	if purchased := rec.Fields["purchase"]; purchased.Kind() != models.KindTermList {
		t.Errorf("m-1 purchase field = %v, want term list", purchased)
	}
}

func TestTrainRankingReferencePinsWindow(t *testing.T) {
	// A configured reference date well before the events leaves every event
	// outside the window, so the ranking field never materializes.
	cfg := testConfig()
	cfg.Model.Rankings[0].Reference = at(1).AddDate(-1, 0, 0)
	store := &fakeStore{events: testEvents()}
	pub := &fakePublisher{}
	tr := newTestTrainer(t, cfg, store, pub)

	if _, err := tr.Train(context.Background()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	rec, ok := recordByID(pub.model, "m-2")
	if !ok {
		t.Fatal("m-2 missing from published model")
	}
	if _, has := rec.Fields["trendRank"]; has {
		t.Error("trendRank scored events outside the pinned window")
	}
}

func TestTrainModeCooccurrenceSkipsRankings(t *testing.T) {
	cfg := testConfig()
	cfg.Model.Mode = config.ModeCooccurrence
	store := &fakeStore{events: testEvents()}
	pub := &fakePublisher{}
	tr := newTestTrainer(t, cfg, store, pub)

	if _, err := tr.Train(context.Background()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	rec, ok := recordByID(pub.model, "m-2")
	if !ok {
		t.Fatal("m-2 missing from published model")
	}
	if _, has := rec.Fields["trendRank"]; has {
		t.Error("cooccurrence mode still computed rankings")
	}
	if _, has := rec.Fields["purchase"]; !has {
		t.Error("cooccurrence mode lost the related-items field")
	}
}

func TestTrainModeRankingsSkipsCooccurrence(t *testing.T) {
	cfg := testConfig()
	cfg.Model.Mode = config.ModeRankings
	store := &fakeStore{events: testEvents()}
	pub := &fakePublisher{}
	tr := newTestTrainer(t, cfg, store, pub)

	if _, err := tr.Train(context.Background()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	rec, ok := recordByID(pub.model, "m-2")
	if !ok {
		t.Fatal("m-2 missing from published model")
	}
	if _, has := rec.Fields["purchase"]; has {
		t.Error("rankings mode still computed cooccurrence")
	}
	if _, has := rec.Fields["trendRank"]; !has {
		t.Error("rankings mode lost the ranking field")
	}
}

func TestTrainCoercionFailureIsFatal(t *testing.T) {
	store := &fakeStore{
		events: testEvents(),
		props: map[string]map[string]any{
			"m-1": {"released": "not-a-date"},
		},
	}
	pub := &fakePublisher{}
	tr := newTestTrainer(t, testConfig(), store, pub)

	_, err := tr.Train(context.Background())
	if err == nil {
		t.Fatal("Train() error = nil, want coercion failure")
	}
	if pub.model != nil {
		t.Error("a model was published despite the failed run")
	}
	if _, lastErr := tr.LastRun(); lastErr == nil {
		t.Error("LastRun() error = nil after failed run")
	}
}

func TestTrainSnapshotFailure(t *testing.T) {
	store := &fakeStore{findErr: errors.New("store offline")}
	tr := newTestTrainer(t, testConfig(), store, &fakePublisher{})

	if _, err := tr.Train(context.Background()); err == nil {
		t.Error("Train() error = nil, want snapshot failure")
	}
}

func TestTrainSingleFlight(t *testing.T) {
	store := &fakeStore{
		events:  testEvents(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	tr := newTestTrainer(t, testConfig(), store, &fakePublisher{})

	done := make(chan error, 1)
	go func() {
		_, err := tr.Train(context.Background())
		done <- err
	}()

	<-store.started
	if !tr.Running() {
		t.Error("Running() = false during an active run")
	}
	if _, err := tr.Train(context.Background()); !errors.Is(err, ErrTrainInProgress) {
		t.Errorf("concurrent Train() error = %v, want ErrTrainInProgress", err)
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("first Train() error = %v", err)
	}
	if tr.Running() {
		t.Error("Running() = true after the run finished")
	}
}

func TestTrainPublishesThroughRealPublisher(t *testing.T) {
	db, err := index.OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	backend := index.NewBadgerBackend(db, logging.NewTestLogger(io.Discard))
	pub := publish.New(backend, "items", logging.NewTestLogger(io.Discard))

	store := &fakeStore{
		events: testEvents(),
		props: map[string]map[string]any{
			"m-1": {"title": "First", "genres": []string{"drama"}},
		},
	}
	tr := newTestTrainer(t, testConfig(), store, pub)

	run, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	doc, err := backend.Lookup(context.Background(), "items", "m-1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if doc["title"] != "First" {
		t.Errorf("indexed title = %v, want First", doc["title"])
	}
	if doc["id"] != "m-1" {
		t.Errorf("indexed id = %v, want m-1", doc["id"])
	}

	// A second run swaps to a fresh index and retires the first.
	run2, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("second Train() error = %v", err)
	}
	if run2.Index == run.Index {
		t.Error("second run reused the first run's index")
	}
	target, err := backend.AliasTarget(context.Background(), "items")
	if err != nil {
		t.Fatalf("AliasTarget() error = %v", err)
	}
	if target != run2.Index {
		t.Errorf("alias target = %q, want %q", target, run2.Index)
	}
}

func TestServiceRunsOnStartup(t *testing.T) {
	store := &fakeStore{events: testEvents()}
	pub := &fakePublisher{}
	tr := newTestTrainer(t, testConfig(), store, pub)
	svc := NewService(tr, time.Hour, true, logging.NewTestLogger(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		if run, _ := tr.LastRun(); run != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("startup run never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
}
