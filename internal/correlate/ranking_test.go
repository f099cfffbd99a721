// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/models"
)

var rankRef = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func rankEvent(target, action string, age time.Duration) models.Event {
	return models.Event{
		ActorID:    "u1",
		TargetID:   target,
		ActionName: action,
		Timestamp:  rankRef.Add(-age),
	}
}

func TestRankingPopularCountsWindow(t *testing.T) {
	events := []models.Event{
		rankEvent("item1", "view", time.Hour),
		rankEvent("item1", "view", 2*time.Hour),
		rankEvent("item2", "view", time.Hour),
		rankEvent("item3", "view", 30*24*time.Hour), // outside window
	}

	r := NewRanker(zerolog.Nop())
	got, err := r.Compute(context.Background(), RankingDef{
		Name:      "popRank",
		Kind:      RankingPopular,
		Window:    7 * 24 * time.Hour,
		Reference: rankRef,
	}, events)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	fields, _ := got.Get("item1")
	if want := models.Number(2); !fields["popRank"].Equal(want) {
		t.Errorf("item1 popRank = %v, want %v", fields["popRank"], want)
	}
	if _, ok := got.Get("item3"); ok {
		t.Error("item3 ranked despite being outside the window")
	}
}

func TestRankingTrendingVelocity(t *testing.T) {
	window := 4 * 24 * time.Hour
	events := []models.Event{
		// rising: both interactions in the recent half
		rankEvent("rising", "view", 12*time.Hour),
		rankEvent("rising", "view", 24*time.Hour),
		// fading: both in the earlier half
		rankEvent("fading", "view", 3*24*time.Hour),
		rankEvent("fading", "view", 3*24*time.Hour+time.Hour),
	}

	r := NewRanker(zerolog.Nop())
	got, err := r.Compute(context.Background(), RankingDef{
		Name:      "trendRank",
		Kind:      RankingTrending,
		Window:    window,
		Reference: rankRef,
	}, events)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	rising, _ := got.Get("rising")
	fading, _ := got.Get("fading")
	if rising["trendRank"].Number() <= 0 {
		t.Errorf("rising trendRank = %v, want positive", rising["trendRank"])
	}
	if fading["trendRank"].Number() >= 0 {
		t.Errorf("fading trendRank = %v, want negative", fading["trendRank"])
	}
}

func TestRankingHotDecays(t *testing.T) {
	events := []models.Event{
		rankEvent("fresh", "view", time.Hour),
		rankEvent("stale", "view", 6*24*time.Hour),
	}

	r := NewRanker(zerolog.Nop())
	got, err := r.Compute(context.Background(), RankingDef{
		Name:      "hotRank",
		Kind:      RankingHot,
		Window:    7 * 24 * time.Hour,
		Reference: rankRef,
	}, events)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	fresh, _ := got.Get("fresh")
	stale, _ := got.Get("stale")
	if fresh["hotRank"].Number() <= stale["hotRank"].Number() {
		t.Errorf("hotRank fresh=%v stale=%v, want fresh > stale",
			fresh["hotRank"], stale["hotRank"])
	}
}

func TestRankingEventSubset(t *testing.T) {
	events := []models.Event{
		rankEvent("item1", "purchase", time.Hour),
		rankEvent("item1", "view", time.Hour),
	}

	r := NewRanker(zerolog.Nop())
	got, err := r.Compute(context.Background(), RankingDef{
		Name:       "buyRank",
		Kind:       RankingPopular,
		EventNames: []string{"purchase"},
		Window:     24 * time.Hour,
		Reference:  rankRef,
	}, events)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	fields, _ := got.Get("item1")
	if want := models.Number(1); !fields["buyRank"].Equal(want) {
		t.Errorf("buyRank = %v, want %v (view events excluded)", fields["buyRank"], want)
	}
}

func TestRankingRejectsUnknownKind(t *testing.T) {
	r := NewRanker(zerolog.Nop())
	_, err := r.Compute(context.Background(), RankingDef{Name: "x", Kind: "bogus"}, nil)
	if err == nil {
		t.Fatal("Compute() accepted unsupported ranking kind")
	}
}

func TestRankingNoEventsYieldsEmpty(t *testing.T) {
	r := NewRanker(zerolog.Nop())
	got, err := r.Compute(context.Background(), RankingDef{
		Name: "popRank", Kind: RankingPopular, Reference: rankRef,
	}, nil)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if !got.Empty() {
		t.Error("ranking over zero events produced entries")
	}
}
