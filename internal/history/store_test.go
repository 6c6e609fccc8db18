// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, at time.Time) (Run, []Entry) {
	entries := []Entry{
		{Selector: "#vis1", Kind: "chart", Outcome: OutcomeRendered, Duration: 12 * time.Millisecond, StartedAt: at},
		{Selector: "#vis4", Kind: "chart", Outcome: OutcomeFailed, Failure: "load", Resource: "graphs/ethiopia_chart.json",
			Status: 404, Message: "HTTP 404", Duration: 3 * time.Millisecond, StartedAt: at},
		{Selector: "#vis6", Kind: "chart", Outcome: OutcomeSkipped, StartedAt: at},
	}
	return Run{ID: id, StartedAt: at, Duration: 40 * time.Millisecond, Slots: 3, Failed: 1}, entries
}

func TestRecordAndLatest(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	run1, e1 := sampleRun("run-1", base)
	run2, e2 := sampleRun("run-2", base.Add(time.Minute))
	require.NoError(t, s.RecordRun(ctx, run1, e1))
	require.NoError(t, s.RecordRun(ctx, run2, e2))

	latest, entries, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.ID)
	assert.Equal(t, 40*time.Millisecond, latest.Duration)
	assert.True(t, latest.StartedAt.Equal(base.Add(time.Minute)))
	require.Len(t, entries, 3)
	assert.Equal(t, "#vis1", entries[0].Selector)
	assert.Equal(t, "graphs/ethiopia_chart.json", entries[1].Resource)
	assert.Equal(t, 404, entries[1].Status)
}

func TestLatest_Empty(t *testing.T) {
	run, entries, err := openStore(t).Latest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, run.ID)
	assert.Empty(t, entries)
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run, entries := sampleRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.RecordRun(ctx, run, entries))
	}

	failures, err := s.List(ctx, Query{FailuresOnly: true})
	require.NoError(t, err)
	require.Len(t, failures, 3)
	assert.Equal(t, "run-2", failures[0].RunID, "newest first")
	for _, e := range failures {
		assert.Equal(t, OutcomeFailed, e.Outcome)
	}

	limited, err := s.List(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	bySelector, err := s.List(ctx, Query{Selector: "#vis1"})
	require.NoError(t, err)
	assert.Len(t, bySelector, 3)
}

func TestRecordRun_Atomic(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	run, entries := sampleRun("dup", time.Now())
	entries = append(entries, entries[0]) // primary key violation
	require.Error(t, s.RecordRun(ctx, run, entries))

	latest, _, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest.ID, "a failed insert must not leave a partial run")
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run, entries := sampleRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.RecordRun(ctx, run, entries))
	}

	n, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := s.List(ctx, Query{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, all, 6, "entries cascade with their runs")
}

func TestCheck(t *testing.T) {
	assert.NoError(t, openStore(t).Check(context.Background()))
}
