// Package intake implements Job Intake: validating a submission against
// problem/contest/user/rate-limit rules, then atomically inserting and
// publishing it.
package intake

import (
	"context"
	"errors"
	"strconv"
	"time"

	"oj/internal/model"
	"oj/internal/ojerr"
	"oj/internal/queue"
	"oj/internal/store"
)

// Catalog is the read-through problem/language lookup Submit needs. Satisfied
// by *catalog.Catalog; narrowed to an interface here so intake's validation
// ordering can be unit tested against a fake.
type Catalog interface {
	LanguageByName(name string) (model.Language, bool)
	ProblemByID(id int64) (model.Problem, bool)
	AllProblemIDs() []int64
}

// JobInserter is the subset of *store.JobStore intake depends on.
type JobInserter interface {
	InsertWithLimit(ctx context.Context, job model.Job, limit int) (model.Job, error)
	Update(ctx context.Context, id int64, mutator store.Mutator) (model.Job, error)
}

// UserLookup is the subset of *store.UserStore intake depends on.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// ContestLookup is the subset of *store.ContestStore intake depends on.
type ContestLookup interface {
	Get(ctx context.Context, id int64) (model.Contest, error)
}

// Service validates and admits new submissions.
type Service struct {
	catalog  Catalog
	jobs     JobInserter
	users    UserLookup
	contests ContestLookup
	bus      queue.Bus
}

func NewService(cat Catalog, jobs JobInserter, users UserLookup, contests ContestLookup, bus queue.Bus) *Service {
	return &Service{catalog: cat, jobs: jobs, users: users, contests: contests, bus: bus}
}

// ResolveContest returns the global contest (id 0) or looks the contest up
// in the store. Shared by job intake and the HTTP layer's contest/ranklist
// endpoints, since both need the same id-0-synthesizes-the-global-contest
// behavior.
func (s *Service) ResolveContest(ctx context.Context, contestID int64) (model.Contest, error) {
	if model.IsGlobal(contestID) {
		userIDs, err := s.allUserIDs(ctx)
		if err != nil {
			return model.Contest{}, err
		}
		return store.GlobalContest(s.catalog.AllProblemIDs(), userIDs), nil
	}
	c, err := s.contests.Get(ctx, contestID)
	if err != nil {
		return model.Contest{}, ojerr.Wrap(ojerr.NotFound, "contest not found", err)
	}
	return c, nil
}

func (s *Service) allUserIDs(ctx context.Context) ([]int64, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, ojerr.Wrap(ojerr.Internal, "listing users", err)
	}
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids, nil
}

// Submit validates sub and, if accepted, persists and publishes a new job.
// requesterID is the authenticated caller; in authorization mode, a
// submission on behalf of another user is rejected.
func (s *Service) Submit(ctx context.Context, sub model.Submission, requesterID int64, authorizationMode bool) (model.Job, error) {
	if authorizationMode && requesterID != sub.UserID {
		return model.Job{}, ojerr.New(ojerr.Forbidden, "cannot submit on behalf of another user")
	}

	lang, ok := s.catalog.LanguageByName(sub.Language)
	if !ok {
		return model.Job{}, ojerr.New(ojerr.NotFound, "unknown language")
	}
	problem, ok := s.catalog.ProblemByID(sub.ProblemID)
	if !ok {
		return model.Job{}, ojerr.New(ojerr.NotFound, "unknown problem")
	}
	if _, err := s.users.FindByID(ctx, sub.UserID); err != nil {
		return model.Job{}, ojerr.New(ojerr.NotFound, "unknown user")
	}

	contest, err := s.ResolveContest(ctx, sub.ContestID)
	if err != nil {
		return model.Job{}, err
	}
	if !contest.HasUser(sub.UserID) || !contest.HasProblem(sub.ProblemID) {
		return model.Job{}, ojerr.New(ojerr.InvalidArgument, "user or problem is not part of this contest")
	}
	if !contest.Contains(time.Now()) {
		// Kept as ERR_NOT_FOUND for compatibility; see open question in DESIGN.md.
		return model.Job{}, ojerr.New(ojerr.NotFound, "contest is not currently open")
	}

	_ = lang // validated above; used implicitly by the worker at judge time

	now := time.Now()
	job := model.NewJob(0, sub, len(problem.Cases), now)
	job, err = s.jobs.InsertWithLimit(ctx, job, int(contest.SubmissionLimit))
	if err != nil {
		if errors.Is(err, store.ErrSubmissionLimitReached) {
			return model.Job{}, ojerr.New(ojerr.RateLimit, "submission limit reached for this problem")
		}
		return model.Job{}, err
	}

	if err := s.bus.Publish(ctx, queue.JobQueueName, strconv.FormatInt(job.ID, 10)); err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.External, "publishing job", err)
	}
	return job, nil
}

// Rejudge resets a Finished job to Queueing and republishes it.
func (s *Service) Rejudge(ctx context.Context, jobID int64) (model.Job, error) {
	job, err := s.jobs.Update(ctx, jobID, func(j *model.Job) error {
		if j.State != model.JobFinished {
			return ojerr.New(ojerr.InvalidState, "job must be finished to rejudge")
		}
		for i := range j.Cases {
			j.Cases[i] = model.CaseResult{ID: i, Result: model.ResultWaiting}
		}
		j.Result = model.ResultWaiting
		j.Score = 0
		j.State = model.JobQueueing
		j.UpdatedTime = time.Now()
		return nil
	})
	if err != nil {
		return model.Job{}, err
	}
	if err := s.bus.Publish(ctx, queue.JobQueueName, strconv.FormatInt(job.ID, 10)); err != nil {
		return model.Job{}, ojerr.Wrap(ojerr.External, "publishing rejudge", err)
	}
	return job, nil
}

// Cancel transitions a Queueing job to Canceled. It cannot interrupt a
// running job.
func (s *Service) Cancel(ctx context.Context, jobID int64) (model.Job, error) {
	return s.jobs.Update(ctx, jobID, func(j *model.Job) error {
		if j.State != model.JobQueueing {
			return ojerr.New(ojerr.InvalidState, "job must be queueing to cancel")
		}
		j.State = model.JobCanceled
		j.UpdatedTime = time.Now()
		return nil
	})
}
