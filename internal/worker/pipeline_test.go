package worker

import (
	"testing"

	"oj/internal/model"
)

func accepted(id int, score float64) model.CaseResult {
	return model.CaseResult{ID: id, Result: model.ResultAccepted, ScoreAwarded: score}
}

func TestAggregateResultAllAccepted(t *testing.T) {
	cases := []model.CaseResult{
		{ID: 0, Result: model.ResultCompilationSuccess},
		accepted(1, 50),
		accepted(2, 50),
	}
	if got := aggregateResult(cases); got != model.ResultAccepted {
		t.Fatalf("expected Accepted, got %v", got)
	}
	if got := totalScore(cases); got != 100 {
		t.Fatalf("expected total score 100, got %v", got)
	}
}

func TestAggregateResultEarliestFailureAtHighestPrecedenceWins(t *testing.T) {
	cases := []model.CaseResult{
		{ID: 0, Result: model.ResultCompilationSuccess},
		{ID: 1, Result: model.ResultWrongAnswer},
		{ID: 2, Result: model.ResultTimeLimitExceeded},
		{ID: 3, Result: model.ResultTimeLimitExceeded},
	}
	if got := aggregateResult(cases); got != model.ResultTimeLimitExceeded {
		t.Fatalf("Time Limit Exceeded should outrank Wrong Answer, got %v", got)
	}
}

func TestAggregateResultTiePrecedenceKeepsEarliestCase(t *testing.T) {
	cases := []model.CaseResult{
		{ID: 0, Result: model.ResultCompilationSuccess},
		{ID: 1, Result: model.ResultRuntimeError, Info: "first"},
		{ID: 2, Result: model.ResultRuntimeError, Info: "second"},
	}
	if got := aggregateResult(cases); got != model.ResultRuntimeError {
		t.Fatalf("expected Runtime Error, got %v", got)
	}
}

func TestTotalScoreExcludesCompilationCase(t *testing.T) {
	cases := []model.CaseResult{
		{ID: 0, Result: model.ResultCompilationSuccess, ScoreAwarded: 999},
		accepted(1, 30),
		{ID: 2, Result: model.ResultWrongAnswer, ScoreAwarded: 0},
	}
	if got := totalScore(cases); got != 30 {
		t.Fatalf("expected total score 30 (compile case excluded), got %v", got)
	}
}
