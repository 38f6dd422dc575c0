package contest

import (
	"testing"
	"time"

	"oj/internal/model"
)

func TestParseScoringRule(t *testing.T) {
	if ParseScoringRule("highest") != ScoringHighest {
		t.Fatalf("expected \"highest\" to parse as ScoringHighest")
	}
	if ParseScoringRule("latest") != ScoringLatest || ParseScoringRule("") != ScoringLatest {
		t.Fatalf("unrecognized values should default to ScoringLatest")
	}
}

func TestParseTieBreaker(t *testing.T) {
	cases := map[string]TieBreaker{
		"submission_time":  TieBreakerSubmissionTime,
		"submission_count": TieBreakerSubmissionCount,
		"user_id":          TieBreakerUserID,
		"garbage":          TieBreakerNone,
	}
	for in, want := range cases {
		if got := ParseTieBreaker(in); got != want {
			t.Errorf("ParseTieBreaker(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBetterHighestPrefersScoreThenEarlierSubmission(t *testing.T) {
	t1 := time.Unix(100, 0)
	t2 := time.Unix(200, 0)

	higher := model.Job{ID: 1, Score: 80, CreatedTime: t2}
	lower := model.Job{ID: 2, Score: 50, CreatedTime: t1}
	if !better(higher, lower, ScoringHighest) {
		t.Fatalf("expected the higher-scoring job to win under ScoringHighest")
	}

	earlier := model.Job{ID: 3, Score: 80, CreatedTime: t1}
	later := model.Job{ID: 4, Score: 80, CreatedTime: t2}
	if !better(earlier, later, ScoringHighest) {
		t.Fatalf("expected the earlier submission to win a score tie under ScoringHighest")
	}
}

func TestBetterLatestPrefersMostRecentSubmission(t *testing.T) {
	t1 := time.Unix(100, 0)
	t2 := time.Unix(200, 0)

	older := model.Job{ID: 1, Score: 90, CreatedTime: t1}
	newer := model.Job{ID: 2, Score: 10, CreatedTime: t2}
	if !better(newer, older, ScoringLatest) {
		t.Fatalf("expected the most recent submission to win under ScoringLatest regardless of score")
	}
}

func TestRepresentativeEmptyReturnsFalse(t *testing.T) {
	if _, ok := representative(nil, ScoringHighest); ok {
		t.Fatalf("expected ok=false for no finished jobs")
	}
}

func TestSortRowsOrdersByTotalDescending(t *testing.T) {
	rows := []Row{
		{UserID: 1, Total: 50},
		{UserID: 2, Total: 100},
		{UserID: 3, Total: 75},
	}
	sortRows(rows, TieBreakerNone)
	if rows[0].UserID != 2 || rows[1].UserID != 3 || rows[2].UserID != 1 {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestSortRowsTieBreakerUserID(t *testing.T) {
	rows := []Row{
		{UserID: 3, Total: 10},
		{UserID: 1, Total: 10},
		{UserID: 2, Total: 10},
	}
	sortRows(rows, TieBreakerUserID)
	if rows[0].UserID != 1 || rows[1].UserID != 2 || rows[2].UserID != 3 {
		t.Fatalf("expected ascending user_id order among ties, got %+v", rows)
	}
}

func TestAssignRanksSkipsAfterTies(t *testing.T) {
	rows := []Row{
		{UserID: 1, Total: 100},
		{UserID: 2, Total: 100},
		{UserID: 3, Total: 50},
	}
	assignRanks(rows, TieBreakerNone)
	if rows[0].Rank != 1 || rows[1].Rank != 1 || rows[2].Rank != 3 {
		t.Fatalf("expected ranks [1 1 3] for a 1-2-2-4 scheme, got [%d %d %d]", rows[0].Rank, rows[1].Rank, rows[2].Rank)
	}
}

func TestAssignRanksAllDistinct(t *testing.T) {
	rows := []Row{
		{UserID: 1, Total: 100},
		{UserID: 2, Total: 80},
		{UserID: 3, Total: 50},
	}
	assignRanks(rows, TieBreakerNone)
	if rows[0].Rank != 1 || rows[1].Rank != 2 || rows[2].Rank != 3 {
		t.Fatalf("expected ranks [1 2 3], got [%d %d %d]", rows[0].Rank, rows[1].Rank, rows[2].Rank)
	}
}
