package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"oj/internal/model"
	"oj/internal/ojerr"
)

// ErrJobNotFound is returned by Get/Update when no row matches the id.
var ErrJobNotFound = errors.New("store: job not found")

// ErrSubmissionLimitReached is returned by InsertWithLimit when the
// contest's per-problem submission limit has already been hit.
var ErrSubmissionLimitReached = errors.New("store: submission limit reached")

// JobFilter narrows a Query call; zero values are "don't filter on this field".
type JobFilter struct {
	UserID    *int64
	UserName  string
	ContestID *int64
	ProblemID *int64
	Language  string
	From      *time.Time
	To        *time.Time
	State     *model.JobState
	Result    *model.ResultKind
}

// JobStore is the durable Job Store described by the judging pipeline.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

// InsertWithLimit inserts job after checking the (user, contest, problem)
// active-job count against limit, both inside one transaction serialized by
// a Postgres advisory lock keyed on that triple. limit <= 0 means unlimited.
// Guarding the count-then-insert with the advisory lock (rather than a plain
// SELECT then INSERT) closes the race where two concurrent submissions both
// observe count < limit and both insert, matching the way updateOnce guards
// read-then-write with SELECT ... FOR UPDATE.
func (s *JobStore) InsertWithLimit(ctx context.Context, job model.Job, limit int) (model.Job, error) {
	casesJSON, err := json.Marshal(job.Cases)
	if err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "marshal cases", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	lockKey := submissionLockKey(job.Submission.UserID, job.Submission.ContestID, job.Submission.ProblemID)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "acquire submission lock", err)
	}

	if limit > 0 {
		row := tx.QueryRow(ctx, `
SELECT count(*) FROM jobs WHERE user_id=$1 AND contest_id=$2 AND problem_id=$3 AND state != $4`,
			job.Submission.UserID, job.Submission.ContestID, job.Submission.ProblemID, model.JobCanceled)
		var n int
		if err := row.Scan(&n); err != nil {
			return model.Job{}, ojerr.Wrap(ojerr.Internal, "count active jobs", err)
		}
		if n >= limit {
			return model.Job{}, ErrSubmissionLimitReached
		}
	}

	row := tx.QueryRow(ctx, `
INSERT INTO jobs (created_time, updated_time, user_id, contest_id, problem_id, language, source_code, state, result, score, cases)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id`,
		job.CreatedTime, job.UpdatedTime, job.Submission.UserID, job.Submission.ContestID, job.Submission.ProblemID,
		job.Submission.Language, job.Submission.SourceCode, job.State, job.Result, job.Score, casesJSON)
	if err := row.Scan(&job.ID); err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "insert job", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "commit tx", err)
	}
	return job, nil
}

// submissionLockKey derives a stable advisory-lock key from the triple that
// the rate limit is scoped to.
func submissionLockKey(userID, contestID, problemID int64) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d:%d", userID, contestID, problemID)
	return int64(h.Sum64())
}

// Get fetches a job by id without locking.
func (s *JobStore) Get(ctx context.Context, id int64) (model.Job, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, created_time, updated_time, user_id, contest_id, problem_id, language, source_code, state, result, score, cases
FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// Mutator transforms a job in place; returning an error aborts the
// transaction and Update returns that error unchanged.
type Mutator func(job *model.Job) error

// maxContentionRetries bounds the bounded-retry policy on serialization
// failures, per the store's tolerance requirement even though contention is
// rare under row-level locking.
const maxContentionRetries = 5

// Update loads the row under SELECT ... FOR UPDATE, applies mutator, and
// writes the result back in the same transaction. Retries a bounded number
// of times with jittered backoff on serialization/deadlock failures.
func (s *JobStore) Update(ctx context.Context, id int64, mutator Mutator) (model.Job, error) {
	var result model.Job
	var err error
	for attempt := 0; attempt < maxContentionRetries; attempt++ {
		result, err = s.updateOnce(ctx, id, mutator)
		if err == nil || !isContentionError(err) {
			return result, err
		}
		backoff := time.Duration(5+rand.Intn(20)) * time.Millisecond * time.Duration(attempt+1)
		time.Sleep(backoff)
	}
	return model.Job{}, ojerr.Wrap(ojerr.Internal, "job update exhausted retries", err)
}

func (s *JobStore) updateOnce(ctx context.Context, id int64, mutator Mutator) (model.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
SELECT id, created_time, updated_time, user_id, contest_id, problem_id, language, source_code, state, result, score, cases
FROM jobs WHERE id = $1 FOR UPDATE`, id)
	job, err := scanJob(row)
	if err != nil {
		return model.Job{}, err
	}

	if err := mutator(&job); err != nil {
		return model.Job{}, err
	}

	casesJSON, err := json.Marshal(job.Cases)
	if err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "marshal cases", err)
	}
	_, err = tx.Exec(ctx, `
UPDATE jobs SET updated_time=$1, state=$2, result=$3, score=$4, cases=$5 WHERE id=$6`,
		job.UpdatedTime, job.State, job.Result, job.Score, casesJSON, id)
	if err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "update job", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "commit tx", err)
	}
	return job, nil
}

func isContentionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// Query lists jobs matching filter, ordered by created_time ascending.
func (s *JobStore) Query(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	var clauses []string
	var args []interface{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.UserName != "" {
		add("user_id IN (SELECT id FROM users WHERE name = $%d)", filter.UserName)
	}
	if filter.ContestID != nil {
		add("contest_id = $%d", *filter.ContestID)
	}
	if filter.ProblemID != nil {
		add("problem_id = $%d", *filter.ProblemID)
	}
	if filter.Language != "" {
		add("language = $%d", filter.Language)
	}
	if filter.From != nil {
		add("created_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_time <= $%d", *filter.To)
	}
	if filter.State != nil {
		add("state = $%d", *filter.State)
	}
	if filter.Result != nil {
		add("result = $%d", *filter.Result)
	}

	query := `SELECT id, created_time, updated_time, user_id, contest_id, problem_id, language, source_code, state, result, score, cases FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_time ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, ojerr.Wrap(ojerr.Internal, "query jobs", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (model.Job, error) {
	var job model.Job
	var casesJSON []byte
	err := row.Scan(&job.ID, &job.CreatedTime, &job.UpdatedTime, &job.Submission.UserID, &job.Submission.ContestID,
		&job.Submission.ProblemID, &job.Submission.Language, &job.Submission.SourceCode, &job.State, &job.Result,
		&job.Score, &casesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Job{}, ErrJobNotFound
		}
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "scan job", err)
	}
	if err := json.Unmarshal(casesJSON, &job.Cases); err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.Internal, "unmarshal cases", err)
	}
	return job, nil
}

// CountAllByUserProblem counts every non-Canceled job, in any other state,
// for (user, contest, problem), used by the contest engine's
// submission_count tie-breaker.
func (s *JobStore) CountAllByUserProblem(ctx context.Context, userID, contestID, problemID int64) (int, error) {
	row := s.pool.QueryRow(ctx, `
SELECT count(*) FROM jobs WHERE user_id=$1 AND contest_id=$2 AND problem_id=$3 AND state != $4`,
		userID, contestID, problemID, model.JobCanceled)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, ojerr.Wrap(ojerr.Internal, "count jobs", err)
	}
	return n, nil
}
