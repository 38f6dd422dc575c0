package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"oj/internal/model"
	"oj/internal/ojerr"
)

// ErrProblemNotFound is returned by Get when no row matches the id.
var ErrProblemNotFound = errors.New("store: problem not found")

// ProblemStore persists problems imported at runtime (§ admin problem-import
// endpoint), supplementing the problems a config file declares at load time.
type ProblemStore struct {
	pool *pgxpool.Pool
}

func NewProblemStore(pool *pgxpool.Pool) *ProblemStore {
	return &ProblemStore{pool: pool}
}

// Insert persists p and returns it with its assigned id.
func (s *ProblemStore) Insert(ctx context.Context, p model.Problem) (model.Problem, error) {
	casesJSON, err := json.Marshal(p.Cases)
	if err != nil {
		return model.Problem{}, ojerr.Wrap(ojerr.Internal, "marshal cases", err)
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO problems (name, kind, special_judge_path, cases)
VALUES ($1,$2,$3,$4) RETURNING id`,
		p.Name, p.Kind, p.SpecialJudgePath, casesJSON)
	if err := row.Scan(&p.ID); err != nil {
		return model.Problem{}, ojerr.Wrap(ojerr.Internal, "inserting problem", err)
	}
	return p, nil
}

func (s *ProblemStore) Get(ctx context.Context, id int64) (model.Problem, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, kind, special_judge_path, cases FROM problems WHERE id=$1`, id)
	return scanProblem(row)
}

func (s *ProblemStore) List(ctx context.Context) ([]model.Problem, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, kind, special_judge_path, cases FROM problems ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProblem(row rowScan) (model.Problem, error) {
	var p model.Problem
	var casesJSON []byte
	err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.SpecialJudgePath, &casesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Problem{}, ErrProblemNotFound
		}
		return model.Problem{}, err
	}
	if err := json.Unmarshal(casesJSON, &p.Cases); err != nil {
		return model.Problem{}, ojerr.Wrap(ojerr.Internal, "unmarshal cases", err)
	}
	return p, nil
}
