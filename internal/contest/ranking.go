// Package contest implements the Contest Engine: representative-submission
// selection under a scoring rule, and rank-list ordering under one of four
// tie-breakers using standard competition ranking.
package contest

import (
	"context"
	"sort"

	"oj/internal/model"
	"oj/internal/store"
)

// ScoringRule selects how a user's representative submission for a problem
// is chosen among their Finished jobs.
type ScoringRule int

const (
	ScoringLatest ScoringRule = iota
	ScoringHighest
)

func ParseScoringRule(s string) ScoringRule {
	if s == "highest" {
		return ScoringHighest
	}
	return ScoringLatest
}

// TieBreaker selects how users tied on total score are ordered relative to
// each other.
type TieBreaker int

const (
	TieBreakerNone TieBreaker = iota
	TieBreakerSubmissionTime
	TieBreakerSubmissionCount
	TieBreakerUserID
)

func ParseTieBreaker(s string) TieBreaker {
	switch s {
	case "submission_time":
		return TieBreakerSubmissionTime
	case "submission_count":
		return TieBreakerSubmissionCount
	case "user_id":
		return TieBreakerUserID
	default:
		return TieBreakerNone
	}
}

// Row is one user's entry in a rank list.
type Row struct {
	UserID int64
	Name   string
	Rank   int
	Scores []float64 // per contest.ProblemIDs order
	Total  float64

	latestTime       int64 // unix nanos of the latest representative submission; -1 if none (sorted last under submission_time)
	submissionCount  int
}

// Engine computes rank lists against the Job Store and User Store.
type Engine struct {
	jobs  *store.JobStore
	users *store.UserStore
}

func NewEngine(jobs *store.JobStore, users *store.UserStore) *Engine {
	return &Engine{jobs: jobs, users: users}
}

// Rank computes the ordered rank list for c under the given rule/breaker.
func (e *Engine) Rank(ctx context.Context, c model.Contest, rule ScoringRule, breaker TieBreaker) ([]Row, error) {
	userIDs := c.UserIDs
	rows := make([]Row, 0, len(userIDs))

	for _, uid := range userIDs {
		user, err := e.users.FindByID(ctx, uid)
		if err != nil {
			continue
		}
		row := Row{UserID: uid, Name: user.Name, Scores: make([]float64, len(c.ProblemIDs)), latestTime: -1}

		for pi, pid := range c.ProblemIDs {
			jobs, err := e.jobs.Query(ctx, finishedFilter(uid, c.ID, pid))
			if err != nil {
				return nil, err
			}
			rep, ok := representative(jobs, rule)
			if ok {
				row.Scores[pi] = rep.Score
				row.Total += rep.Score
				if rep.CreatedTime.UnixNano() > row.latestTime {
					row.latestTime = rep.CreatedTime.UnixNano()
				}
			}

			count, err := e.jobs.CountAllByUserProblem(ctx, uid, c.ID, pid)
			if err != nil {
				return nil, err
			}
			row.submissionCount += count
		}
		rows = append(rows, row)
	}

	sortRows(rows, breaker)
	assignRanks(rows, breaker)
	return rows, nil
}

func finishedFilter(userID, contestID, problemID int64) store.JobFilter {
	state := model.JobFinished
	return store.JobFilter{UserID: &userID, ContestID: &contestID, ProblemID: &problemID, State: &state}
}

// representative picks the job that determines a user's score on one
// problem, per SPEC_FULL.md §4.4.
func representative(jobs []model.Job, rule ScoringRule) (model.Job, bool) {
	if len(jobs) == 0 {
		return model.Job{}, false
	}
	best := jobs[0]
	for _, j := range jobs[1:] {
		if better(j, best, rule) {
			best = j
		}
	}
	return best, true
}

func better(candidate, current model.Job, rule ScoringRule) bool {
	switch rule {
	case ScoringHighest:
		if candidate.Score != current.Score {
			return candidate.Score > current.Score
		}
		if !candidate.CreatedTime.Equal(current.CreatedTime) {
			return candidate.CreatedTime.Before(current.CreatedTime)
		}
		return candidate.ID < current.ID
	default: // ScoringLatest
		if !candidate.CreatedTime.Equal(current.CreatedTime) {
			return candidate.CreatedTime.After(current.CreatedTime)
		}
		return candidate.ID > current.ID
	}
}

func sortRows(rows []Row, breaker TieBreaker) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		switch breaker {
		case TieBreakerSubmissionTime:
			ti, tj := rows[i].latestTime, rows[j].latestTime
			if ti == -1 {
				ti = int64(1) << 62
			}
			if tj == -1 {
				tj = int64(1) << 62
			}
			return ti < tj
		case TieBreakerSubmissionCount:
			return rows[i].submissionCount < rows[j].submissionCount
		case TieBreakerUserID:
			return rows[i].UserID < rows[j].UserID
		default:
			return false
		}
	})
}

// assignRanks applies standard competition ranking (1-2-2-4): entries that
// compare equal under the active ordering key share a rank, and the next
// distinct entry's rank skips by the number of entries tied ahead of it.
func assignRanks(rows []Row, breaker TieBreaker) {
	for i := range rows {
		if i == 0 {
			rows[i].Rank = 1
			continue
		}
		if tiedWith(rows[i], rows[i-1], breaker) {
			rows[i].Rank = rows[i-1].Rank
		} else {
			rows[i].Rank = i + 1
		}
	}
}

func tiedWith(a, b Row, breaker TieBreaker) bool {
	if a.Total != b.Total {
		return false
	}
	switch breaker {
	case TieBreakerSubmissionTime:
		return a.latestTime == b.latestTime
	case TieBreakerSubmissionCount:
		return a.submissionCount == b.submissionCount
	case TieBreakerUserID:
		return a.UserID == b.UserID
	default:
		return true
	}
}
