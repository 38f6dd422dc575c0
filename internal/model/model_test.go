package model

import (
	"testing"
	"time"
)

func TestNewJobCreatesWaitingCases(t *testing.T) {
	now := time.Now()
	job := NewJob(7, Submission{ProblemID: 1}, 2, now)

	if len(job.Cases) != 3 {
		t.Fatalf("expected 3 cases (1 compile + 2 testcases), got %d", len(job.Cases))
	}
	for i, c := range job.Cases {
		if c.ID != i || c.Result != ResultWaiting {
			t.Fatalf("case %d not initialized to Waiting: %+v", i, c)
		}
	}
	if job.State != JobQueueing || job.Result != ResultWaiting {
		t.Fatalf("new job should start Queueing/Waiting, got state=%v result=%v", job.State, job.Result)
	}
}

func TestJobFinished(t *testing.T) {
	cases := []struct {
		state JobState
		want  bool
	}{
		{JobQueueing, false},
		{JobRunning, false},
		{JobFinished, true},
		{JobCanceled, true},
	}
	for _, c := range cases {
		job := Job{State: c.state}
		if got := job.Finished(); got != c.want {
			t.Errorf("Finished() for state %v = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestResultKindPrecedenceOrdering(t *testing.T) {
	if ResultSystemError.Precedence() <= ResultMemoryLimitExceeded.Precedence() {
		t.Fatalf("System Error must outrank Memory Limit Exceeded")
	}
	if ResultMemoryLimitExceeded.Precedence() <= ResultTimeLimitExceeded.Precedence() {
		t.Fatalf("Memory Limit Exceeded must outrank Time Limit Exceeded")
	}
	if ResultTimeLimitExceeded.Precedence() <= ResultRuntimeError.Precedence() {
		t.Fatalf("Time Limit Exceeded must outrank Runtime Error")
	}
	if ResultRuntimeError.Precedence() <= ResultWrongAnswer.Precedence() {
		t.Fatalf("Runtime Error must outrank Wrong Answer")
	}
	if ResultWrongAnswer.Precedence() <= ResultCompilationError.Precedence() {
		t.Fatalf("Wrong Answer must outrank Compilation Error")
	}
	if ResultAccepted.Precedence() != 0 {
		t.Fatalf("Accepted must never contribute a failure precedence")
	}
}

func TestRoleOrderingIsNumeric(t *testing.T) {
	if !(RoleUser < RoleAuthor && RoleAuthor < RoleAdmin) {
		t.Fatalf("role ordering must be User < Author < Admin")
	}
}

func TestParseRoleDefaultsToUser(t *testing.T) {
	if ParseRole("admin") != RoleAdmin {
		t.Fatalf("expected admin to parse as RoleAdmin")
	}
	if ParseRole("author") != RoleAuthor {
		t.Fatalf("expected author to parse as RoleAuthor")
	}
	if ParseRole("garbage") != RoleUser {
		t.Fatalf("unknown role strings should default to RoleUser")
	}
}

func TestGlobalContestContainsEveryoneAlways(t *testing.T) {
	c := Contest{ID: GlobalContestID}
	if !c.HasUser(12345) || !c.HasProblem(999) {
		t.Fatalf("global contest must contain every user and problem")
	}
	if !c.Contains(time.Unix(0, 0)) || !c.Contains(time.Now().AddDate(100, 0, 0)) {
		t.Fatalf("global contest must have no time bound")
	}
}

func TestContestWindowIsInclusive(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	c := Contest{ID: 5, From: from, To: to}

	if !c.Contains(from) || !c.Contains(to) {
		t.Fatalf("contest window must include its endpoints")
	}
	if c.Contains(from.Add(-time.Second)) || c.Contains(to.Add(time.Second)) {
		t.Fatalf("contest window must exclude times outside [from, to]")
	}
}
