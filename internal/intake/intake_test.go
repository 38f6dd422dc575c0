package intake

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"oj/internal/model"
	"oj/internal/queue"
	"oj/internal/store"
)

type fakeCatalog struct {
	languages map[string]model.Language
	problems  map[int64]model.Problem
}

func (f *fakeCatalog) LanguageByName(name string) (model.Language, bool) {
	l, ok := f.languages[name]
	return l, ok
}

func (f *fakeCatalog) ProblemByID(id int64) (model.Problem, bool) {
	p, ok := f.problems[id]
	return p, ok
}

func (f *fakeCatalog) AllProblemIDs() []int64 {
	ids := make([]int64, 0, len(f.problems))
	for id := range f.problems {
		ids = append(ids, id)
	}
	return ids
}

type fakeUsers struct {
	byID map[int64]model.User
}

func (f *fakeUsers) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, store.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

type fakeContests struct {
	byID map[int64]model.Contest
}

func (f *fakeContests) Get(ctx context.Context, id int64) (model.Contest, error) {
	c, ok := f.byID[id]
	if !ok {
		return model.Contest{}, store.ErrContestNotFound
	}
	return c, nil
}

type fakeBus struct{}

func (fakeBus) Publish(ctx context.Context, queueName, payload string) error { return nil }
func (fakeBus) Consume(ctx context.Context, queueName string) (queue.Delivery, error) {
	return queue.Delivery{}, queue.ErrEmpty
}
func (fakeBus) Ack(ctx context.Context, queueName string, d queue.Delivery) error  { return nil }
func (fakeBus) Nack(ctx context.Context, queueName string, d queue.Delivery) error { return nil }
func (fakeBus) RequeueExpired(ctx context.Context, queueName string) (int, error)  { return 0, nil }
func (fakeBus) Depth(ctx context.Context, queueName string) (int64, int64, error) {
	return 0, 0, nil
}

// fakeJobs mimics JobStore.InsertWithLimit's atomicity: a single mutex
// guards the count-then-insert critical section, the same invariant the
// real store enforces with a Postgres advisory lock.
type fakeJobs struct {
	mu      sync.Mutex
	nextID  int64
	byKey   map[[3]int64]int
	inserts int32
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{byKey: make(map[[3]int64]int)}
}

func (f *fakeJobs) InsertWithLimit(ctx context.Context, job model.Job, limit int) (model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := [3]int64{job.Submission.UserID, job.Submission.ContestID, job.Submission.ProblemID}
	if limit > 0 && f.byKey[key] >= limit {
		return model.Job{}, store.ErrSubmissionLimitReached
	}
	f.byKey[key]++
	f.nextID++
	job.ID = f.nextID
	atomic.AddInt32(&f.inserts, 1)
	return job, nil
}

func (f *fakeJobs) Update(ctx context.Context, id int64, mutator store.Mutator) (model.Job, error) {
	return model.Job{}, nil
}

func baseService(jobs JobInserter) *Service {
	cat := &fakeCatalog{
		languages: map[string]model.Language{"c": {Name: "c"}},
		problems:  map[int64]model.Problem{1: {Name: "aplusb", Cases: []model.ProblemCase{{Score: 100}}}},
	}
	users := &fakeUsers{byID: map[int64]model.User{1: {ID: 1, Name: "alice"}}}
	contests := &fakeContests{byID: map[int64]model.Contest{
		5: {ID: 5, ProblemIDs: []int64{1}, UserIDs: []int64{1}, SubmissionLimit: 2,
			From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour)},
	}}
	return NewService(cat, jobs, users, contests, fakeBus{})
}

func validSubmission() model.Submission {
	return model.Submission{Language: "c", UserID: 1, ContestID: 5, ProblemID: 1}
}

func TestSubmitRejectsUnknownLanguage(t *testing.T) {
	s := baseService(newFakeJobs())
	sub := validSubmission()
	sub.Language = "cobol"
	if _, err := s.Submit(context.Background(), sub, 1, false); err == nil {
		t.Fatalf("expected an error for an unknown language")
	}
}

func TestSubmitRejectsUnknownProblem(t *testing.T) {
	s := baseService(newFakeJobs())
	sub := validSubmission()
	sub.ProblemID = 999
	if _, err := s.Submit(context.Background(), sub, 1, false); err == nil {
		t.Fatalf("expected an error for an unknown problem")
	}
}

func TestSubmitRejectsUnknownUser(t *testing.T) {
	s := baseService(newFakeJobs())
	sub := validSubmission()
	sub.UserID = 999
	if _, err := s.Submit(context.Background(), sub, 999, false); err == nil {
		t.Fatalf("expected an error for an unknown user")
	}
}

func TestSubmitRejectsForeignUserIDUnderAuthorizationMode(t *testing.T) {
	s := baseService(newFakeJobs())
	sub := validSubmission()
	if _, err := s.Submit(context.Background(), sub, 2, true); err == nil {
		t.Fatalf("expected submitting on behalf of another user to be rejected")
	}
}

func TestSubmitRejectsProblemNotInContest(t *testing.T) {
	s := baseService(newFakeJobs())
	sub := validSubmission()
	sub.ProblemID = 1
	sub.ContestID = 5
	// Remove the problem from the contest's membership list.
	s.contests.(*fakeContests).byID[5] = model.Contest{ID: 5, ProblemIDs: []int64{42}, UserIDs: []int64{1}, SubmissionLimit: 2,
		From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour)}
	if _, err := s.Submit(context.Background(), sub, 1, false); err == nil {
		t.Fatalf("expected an error when the problem is not part of the contest")
	}
}

func TestSubmitRejectsOutsideContestWindow(t *testing.T) {
	s := baseService(newFakeJobs())
	s.contests.(*fakeContests).byID[5] = model.Contest{ID: 5, ProblemIDs: []int64{1}, UserIDs: []int64{1}, SubmissionLimit: 2,
		From: time.Now().Add(-2 * time.Hour), To: time.Now().Add(-time.Hour)}
	if _, err := s.Submit(context.Background(), validSubmission(), 1, false); err == nil {
		t.Fatalf("expected an error when the contest window has already closed")
	}
}

func TestSubmitSucceedsAndPublishes(t *testing.T) {
	s := baseService(newFakeJobs())
	job, err := s.Submit(context.Background(), validSubmission(), 1, false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.ID == 0 {
		t.Fatalf("expected an assigned job id")
	}
}

func TestSubmitEnforcesSubmissionLimitSequentially(t *testing.T) {
	s := baseService(newFakeJobs())
	for i := 0; i < 2; i++ {
		if _, err := s.Submit(context.Background(), validSubmission(), 1, false); err != nil {
			t.Fatalf("submission %d should succeed under the limit: %v", i, err)
		}
	}
	if _, err := s.Submit(context.Background(), validSubmission(), 1, false); err == nil {
		t.Fatalf("expected the third submission to exceed the limit of 2")
	}
}

// TestSubmitSubmissionLimitIsAtomicUnderConcurrency fires far more concurrent
// Submit calls than the contest's submission_limit allows and asserts that
// no more than the limit ever succeed, guarding against the count-then-insert
// race InsertWithLimit closes with its advisory-lock-guarded transaction.
func TestSubmitSubmissionLimitIsAtomicUnderConcurrency(t *testing.T) {
	jobs := newFakeJobs()
	s := baseService(jobs)

	const attempts = 50
	const limit = 2
	var wg sync.WaitGroup
	var accepted int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Submit(context.Background(), validSubmission(), 1, false); err == nil {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	if accepted != limit {
		t.Fatalf("expected exactly %d accepted submissions under concurrency, got %d", limit, accepted)
	}
	if jobs.inserts != limit {
		t.Fatalf("expected exactly %d inserted jobs, got %d", limit, jobs.inserts)
	}
}
