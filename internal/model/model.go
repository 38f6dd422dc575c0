// Package model defines the data shared by every component of the judge:
// accounts, problems, contests, and the jobs that tie a submission to its
// per-case results.
package model

import "time"

// Role is the privilege level of a User account.
type Role int

const (
	RoleUser Role = iota
	RoleAuthor
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAuthor:
		return "author"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole maps a wire string back to a Role. Unknown strings default to RoleUser.
func ParseRole(s string) Role {
	switch s {
	case "author":
		return RoleAuthor
	case "admin":
		return RoleAdmin
	default:
		return RoleUser
	}
}

// RootUserID is reserved for the bootstrap admin account created on first run.
const RootUserID = 0

// User is an account holder.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// CheckerKind selects the comparison semantics applied to a case's output.
type CheckerKind int

const (
	// CheckerStandard normalizes trailing line/file whitespace before comparing.
	CheckerStandard CheckerKind = iota
	// CheckerStrict compares bytes exactly.
	CheckerStrict
	// CheckerSpecial hands the comparison to a problem-supplied Lua script.
	CheckerSpecial
)

func (k CheckerKind) String() string {
	switch k {
	case CheckerStrict:
		return "strict"
	case CheckerSpecial:
		return "special"
	default:
		return "standard"
	}
}

// ParseCheckerKind maps a wire string to a CheckerKind, defaulting to Standard.
func ParseCheckerKind(s string) CheckerKind {
	switch s {
	case "strict":
		return CheckerStrict
	case "special":
		return CheckerSpecial
	default:
		return CheckerStandard
	}
}

// ProblemCase is one (input, answer, limits) tuple of a problem.
type ProblemCase struct {
	Score            float64 `json:"score"`
	InputPath        string  `json:"input_path"`
	AnswerPath       string  `json:"answer_path"`
	TimeLimitUs      uint64  `json:"time_limit_us"`
	MemoryLimitBytes uint64  `json:"memory_limit_bytes"`
}

// Problem is static, loaded once from configuration (or an imported package).
type Problem struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Kind  CheckerKind   `json:"kind"`
	Cases []ProblemCase `json:"cases"`
	// SpecialJudgePath names a Lua script evaluated per case when Kind == CheckerSpecial.
	SpecialJudgePath string `json:"special_judge_path,omitempty"`
}

// Language is static, loaded once from configuration.
type Language struct {
	Name           string `json:"name"`
	SourceFileName string `json:"source_file_name"`
	// CompileArgv holds %INPUT% and %OUTPUT% placeholders substituted at compile time.
	CompileArgv []string `json:"compile_argv"`
}

// Contest groups a set of problems and users over a time window.
type Contest struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	ProblemIDs      []int64   `json:"problem_ids"`
	UserIDs         []int64   `json:"user_ids"`
	SubmissionLimit uint32    `json:"submission_limit"`
}

// GlobalContestID is the implicit contest containing every user and problem.
const GlobalContestID = int64(0)

// IsGlobal reports whether id refers to the implicit global contest.
func IsGlobal(id int64) bool {
	return id == GlobalContestID
}

// Contains reports whether the contest's open interval [From, To] includes t.
// The global contest has no time bound.
func (c Contest) Contains(t time.Time) bool {
	if IsGlobal(c.ID) {
		return true
	}
	return !t.Before(c.From) && !t.After(c.To)
}

// HasUser reports membership. The global contest contains every user.
func (c Contest) HasUser(userID int64) bool {
	if IsGlobal(c.ID) {
		return true
	}
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasProblem reports whether problemID is part of this contest.
func (c Contest) HasProblem(problemID int64) bool {
	if IsGlobal(c.ID) {
		return true
	}
	for _, id := range c.ProblemIDs {
		if id == problemID {
			return true
		}
	}
	return false
}

// Submission is the immutable request a Job was created from.
type Submission struct {
	SourceCode string `json:"source_code"`
	Language   string `json:"language"`
	UserID     int64  `json:"user_id"`
	ContestID  int64  `json:"contest_id"`
	ProblemID  int64  `json:"problem_id"`
}

// JobState is the coarse lifecycle stage of a Job.
type JobState int

const (
	JobQueueing JobState = iota
	JobRunning
	JobFinished
	JobCanceled
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobFinished:
		return "finished"
	case JobCanceled:
		return "canceled"
	default:
		return "queueing"
	}
}

// ResultKind is the outcome recorded for a Job or a single CaseResult.
//
// Precedence among non-Accepted case outcomes is given by resultPrecedence
// below (System Error highest, then Memory Limit Exceeded, Time Limit
// Exceeded, Runtime Error, Wrong Answer, Compilation Error), not by the
// declaration order of the constants; aggregateResult (internal/worker) walks
// cases in index order and keeps the first result at the highest precedence
// it has seen, so "earliest case wins" ties are resolved deterministically.
type ResultKind int

const (
	ResultWaiting ResultKind = iota
	ResultRunning
	ResultAccepted
	ResultCompilationError
	ResultCompilationSuccess
	ResultWrongAnswer
	ResultRuntimeError
	ResultTimeLimitExceeded
	ResultMemoryLimitExceeded
	ResultSystemError
)

func (r ResultKind) String() string {
	switch r {
	case ResultWaiting:
		return "Waiting"
	case ResultRunning:
		return "Running"
	case ResultAccepted:
		return "Accepted"
	case ResultCompilationError:
		return "Compilation Error"
	case ResultCompilationSuccess:
		return "Compilation Success"
	case ResultWrongAnswer:
		return "Wrong Answer"
	case ResultRuntimeError:
		return "Runtime Error"
	case ResultTimeLimitExceeded:
		return "Time Limit Exceeded"
	case ResultMemoryLimitExceeded:
		return "Memory Limit Exceeded"
	case ResultSystemError:
		return "System Error"
	default:
		return "Unknown"
	}
}

// resultPrecedence ranks non-Accepted case outcomes for job-level aggregation;
// a higher number wins when two different cases fail in different ways.
var resultPrecedence = map[ResultKind]int{
	ResultSystemError:         6,
	ResultMemoryLimitExceeded: 5,
	ResultTimeLimitExceeded:   4,
	ResultRuntimeError:        3,
	ResultWrongAnswer:         2,
	ResultCompilationError:    1,
}

// Precedence returns the aggregation rank of r; zero for outcomes that never
// contribute a job-level failure reason (Accepted, Waiting, Running,
// Compilation Success).
func (r ResultKind) Precedence() int {
	return resultPrecedence[r]
}

// CaseResult is the outcome of judging one case; id 0 is the compilation case.
type CaseResult struct {
	ID           int        `json:"id"`
	Result       ResultKind `json:"result"`
	TimeUs       uint64     `json:"time_us"`
	MemoryBytes  uint64     `json:"memory_bytes"`
	Info         string     `json:"info"`
	ScoreAwarded float64    `json:"score_awarded"`
}

// Job is one submission's end-to-end evaluation record.
type Job struct {
	ID          int64        `json:"id"`
	CreatedTime time.Time    `json:"created_time"`
	UpdatedTime time.Time    `json:"updated_time"`
	Submission  Submission   `json:"submission"`
	State       JobState     `json:"state"`
	Result      ResultKind   `json:"result"`
	Score       float64      `json:"score"`
	Cases       []CaseResult `json:"cases"`
}

// NewJob builds a freshly queued job with N+1 waiting cases (0 = compilation).
func NewJob(id int64, sub Submission, numCases int, now time.Time) Job {
	cases := make([]CaseResult, numCases+1)
	for i := range cases {
		cases[i] = CaseResult{ID: i, Result: ResultWaiting}
	}
	return Job{
		ID:          id,
		CreatedTime: now,
		UpdatedTime: now,
		Submission:  sub,
		State:       JobQueueing,
		Result:      ResultWaiting,
		Cases:       cases,
	}
}

// Finished reports whether the job has left the Queueing/Running lifecycle.
func (j Job) Finished() bool {
	return j.State == JobFinished || j.State == JobCanceled
}
