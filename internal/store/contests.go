package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"oj/internal/model"
)

var ErrContestNotFound = errors.New("store: contest not found")

// ErrInvalidContest is returned by Create when c violates an invariant of
// the contest data model (time window order, duplicate problem ids).
var ErrInvalidContest = errors.New("store: invalid contest")

// ContestStore is the contest half of the User/Contest Store. Contest id 0
// (the global contest) is never persisted here; callers synthesize it.
type ContestStore struct {
	db *pgxpool.Pool
}

func NewContestStore(db *pgxpool.Pool) *ContestStore {
	return &ContestStore{db: db}
}

func (s *ContestStore) Create(ctx context.Context, c model.Contest) (model.Contest, error) {
	if model.IsGlobal(c.ID) {
		return model.Contest{}, errors.New("store: contest id 0 is reserved for the global contest")
	}
	if c.To.Before(c.From) {
		return model.Contest{}, ErrInvalidContest
	}
	if hasDuplicateID(c.ProblemIDs) {
		return model.Contest{}, ErrInvalidContest
	}
	row := s.db.QueryRow(ctx, `
INSERT INTO contests (name, from_time, to_time, problem_ids, user_ids, submission_limit)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		c.Name, c.From, c.To, encodeIDs(c.ProblemIDs), encodeIDs(c.UserIDs), c.SubmissionLimit)
	if err := row.Scan(&c.ID); err != nil {
		return model.Contest{}, err
	}
	return c, nil
}

func hasDuplicateID(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

func (s *ContestStore) Get(ctx context.Context, id int64) (model.Contest, error) {
	if model.IsGlobal(id) {
		return model.Contest{}, errors.New("store: use GlobalContest() for id 0")
	}
	row := s.db.QueryRow(ctx, `
SELECT id, name, from_time, to_time, problem_ids, user_ids, submission_limit FROM contests WHERE id=$1`, id)
	return scanContest(row)
}

func (s *ContestStore) List(ctx context.Context) ([]model.Contest, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, name, from_time, to_time, problem_ids, user_ids, submission_limit FROM contests ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScan interface {
	Scan(dest ...interface{}) error
}

func scanContest(row rowScan) (model.Contest, error) {
	var c model.Contest
	var problemIDs, userIDs string
	err := row.Scan(&c.ID, &c.Name, &c.From, &c.To, &problemIDs, &userIDs, &c.SubmissionLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Contest{}, ErrContestNotFound
		}
		return model.Contest{}, err
	}
	c.ProblemIDs = decodeIDs(problemIDs)
	c.UserIDs = decodeIDs(userIDs)
	return c, nil
}

func encodeIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func decodeIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// GlobalContest synthesizes the implicit id=0 contest: every problem id
// named in problemIDs, every user id in userIDs, no time bound, no limit.
func GlobalContest(problemIDs, userIDs []int64) model.Contest {
	return model.Contest{
		ID:              model.GlobalContestID,
		Name:            "global",
		ProblemIDs:      problemIDs,
		UserIDs:         userIDs,
		SubmissionLimit: 0,
	}
}
