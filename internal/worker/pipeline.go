// Package worker implements the Judge Worker: the per-job pipeline state
// machine that drives compilation, per-case execution, and result
// aggregation, plus the bus consumer loop and redelivery reclaimer that
// surround it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"oj/internal/catalog"
	"oj/internal/config"
	"oj/internal/metrics"
	"oj/internal/model"
	"oj/internal/ojerr"
	"oj/internal/sandbox"
	"oj/internal/store"
)

// ErrNotQueueing names the condition of a job that is no longer in the
// Queueing state (already handled by another delivery, or canceled).
// Process does not return it: it returns nil for such jobs so the delivery
// is acknowledged.
var ErrNotQueueing = errors.New("worker: job is not queueing")

// Pipeline drives one job through compile -> per-case run -> aggregate.
type Pipeline struct {
	jobs    *store.JobStore
	cfg     config.Config
	catalog *catalog.Catalog
	runner  *sandbox.Runner
}

func NewPipeline(jobs *store.JobStore, cfg config.Config, cat *catalog.Catalog, runner *sandbox.Runner) *Pipeline {
	return &Pipeline{jobs: jobs, cfg: cfg, catalog: cat, runner: runner}
}

// Process runs the full pipeline for jobID. It is idempotent against
// redelivery: a job found Finished or Canceled is skipped and Process
// returns nil, so the caller acknowledges the delivery. A job found Running
// (left so by a crash mid-pipeline) is compiled and judged again from
// scratch, overwriting its earlier case results.
func (p *Pipeline) Process(ctx context.Context, jobID string) error {
	id, err := strconv.ParseInt(jobID, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing job id %q: %w", jobID, err)
	}

	job, err := p.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.State == model.JobCanceled {
		return nil
	}
	if job.State == model.JobFinished {
		return nil
	}

	lang, ok := p.catalog.LanguageByName(job.Submission.Language)
	if !ok {
		return ojerr.New(ojerr.Internal, "unknown language referenced by job: "+job.Submission.Language)
	}
	problem, ok := p.catalog.ProblemByID(job.Submission.ProblemID)
	if !ok {
		return ojerr.New(ojerr.Internal, "unknown problem referenced by job")
	}

	if _, err := p.jobs.Update(ctx, id, func(j *model.Job) error {
		j.State = model.JobRunning
		j.Cases[0].Result = model.ResultRunning
		j.UpdatedTime = time.Now()
		return nil
	}); err != nil {
		return err
	}

	start := time.Now()
	compileTimeout := time.Duration(p.cfg.CompileTimeLimitUs) * time.Microsecond
	compileOutcome, workDir, err := p.runner.Compile(ctx, lang, job.Submission.SourceCode, compileTimeout)
	if err != nil {
		return ojerr.Wrap(ojerr.External, "compile invocation failed", err)
	}
	defer p.runner.Cleanup(workDir)

	if !compileOutcome.Success {
		finished, err := p.jobs.Update(ctx, id, func(j *model.Job) error {
			j.Cases[0].Result = model.ResultCompilationError
			j.Cases[0].Info = compileOutcome.CompilerLog
			j.Result = model.ResultCompilationError
			j.Score = 0
			j.State = model.JobFinished
			j.UpdatedTime = time.Now()
			return nil
		})
		if err != nil {
			return err
		}
		metrics.RecordJudging(lang.Name, finished.Result.String(), time.Since(start))
		return nil
	}

	if _, err := p.jobs.Update(ctx, id, func(j *model.Job) error {
		j.Cases[0].Result = model.ResultCompilationSuccess
		j.UpdatedTime = time.Now()
		return nil
	}); err != nil {
		return err
	}

	for i, pc := range problem.Cases {
		caseIdx := i + 1
		if _, err := p.jobs.Update(ctx, id, func(j *model.Job) error {
			j.Cases[caseIdx].Result = model.ResultRunning
			j.UpdatedTime = time.Now()
			return nil
		}); err != nil {
			return err
		}

		cr, err := p.runCase(ctx, workDir, compileOutcome.ExecPath, pc, problem, caseIdx)
		if err != nil {
			cr = model.CaseResult{ID: caseIdx, Result: model.ResultSystemError, Info: err.Error()}
		}
		if cr.Result == model.ResultAccepted {
			cr.ScoreAwarded = pc.Score
		}
		metrics.RecordCaseMemory(lang.Name, cr.MemoryBytes)

		if _, err := p.jobs.Update(ctx, id, func(j *model.Job) error {
			j.Cases[caseIdx] = cr
			j.UpdatedTime = time.Now()
			return nil
		}); err != nil {
			return err
		}
	}

	finished, err := p.jobs.Update(ctx, id, func(j *model.Job) error {
		j.Result = aggregateResult(j.Cases)
		j.Score = totalScore(j.Cases)
		j.State = model.JobFinished
		j.UpdatedTime = time.Now()
		return nil
	})
	if err != nil {
		return err
	}
	metrics.RecordJudging(lang.Name, finished.Result.String(), time.Since(start))
	return nil
}

// MarkSystemError gives up on a job after repeated processing failures,
// recording ResultSystemError as its terminal outcome instead of leaving it
// stuck Running forever.
func (p *Pipeline) MarkSystemError(ctx context.Context, jobID string, cause error) error {
	id, err := strconv.ParseInt(jobID, 10, 64)
	if err != nil {
		return err
	}
	_, err = p.jobs.Update(ctx, id, func(j *model.Job) error {
		j.Result = model.ResultSystemError
		j.State = model.JobFinished
		if len(j.Cases) > 0 {
			j.Cases[0].Result = model.ResultSystemError
			j.Cases[0].Info = cause.Error()
		}
		j.UpdatedTime = time.Now()
		return nil
	})
	return err
}

func (p *Pipeline) runCase(ctx context.Context, workDir, execPath string, pc model.ProblemCase, problem model.Problem, caseIdx int) (model.CaseResult, error) {
	timeLimit := time.Duration(pc.TimeLimitUs) * time.Microsecond
	run, err := p.runner.Run(ctx, workDir, execPath, pc.InputPath, timeLimit, pc.MemoryLimitBytes)
	if err != nil {
		return model.CaseResult{}, err
	}

	cr := model.CaseResult{ID: caseIdx, TimeUs: run.WallTimeUs, MemoryBytes: run.PeakMemoryBytes}

	switch {
	case run.Exit == sandbox.ExitTimeout:
		cr.Result = model.ResultTimeLimitExceeded
		cr.TimeUs = pc.TimeLimitUs
		return cr, nil
	case pc.MemoryLimitBytes > 0 && run.PeakMemoryBytes > pc.MemoryLimitBytes:
		cr.Result = model.ResultMemoryLimitExceeded
		return cr, nil
	case run.Exit == sandbox.ExitSignal:
		cr.Result = model.ResultRuntimeError
		cr.Info = "terminated by signal " + run.Signal
		return cr, nil
	case run.Exit == sandbox.ExitNonzero:
		cr.Result = model.ResultRuntimeError
		cr.Info = fmt.Sprintf("exit code %d", run.ExitCode)
		return cr, nil
	}

	cmp, err := sandbox.Compare(problem.Kind, pc.AnswerPath, run.StdoutPath, pc.InputPath, problem.SpecialJudgePath)
	if err != nil {
		return model.CaseResult{}, err
	}
	if cmp.Accepted {
		cr.Result = model.ResultAccepted
	} else {
		cr.Result = model.ResultWrongAnswer
		cr.Info = cmp.Info
	}
	return cr, nil
}

// aggregateResult scans cases 1..N in order and keeps the first result seen
// at the highest precedence encountered so far, so that when two cases fail
// differently, the earliest case at the winning precedence determines the
// job's result ("earliest failing case wins" among ties).
func aggregateResult(cases []model.CaseResult) model.ResultKind {
	best := model.ResultAccepted
	bestPrec := -1
	for _, c := range cases[1:] {
		if c.Result == model.ResultAccepted {
			continue
		}
		prec := c.Result.Precedence()
		if prec > bestPrec {
			bestPrec = prec
			best = c.Result
		}
	}
	return best
}

func totalScore(cases []model.CaseResult) float64 {
	var total float64
	for _, c := range cases[1:] {
		total += c.ScoreAwarded
	}
	return total
}

// logf is an alias of log.Printf. Nothing in this package calls it: the
// consumer logs through log.Printf directly, so reassigning logf does not
// change worker logging.
var logf = log.Printf
