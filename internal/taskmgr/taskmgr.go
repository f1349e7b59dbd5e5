// Package taskmgr implements the build's execution engine: a dependency
// graph of BuildTasks run by a fixed worker pool (ThreadRunner) under a
// single control goroutine that owns all task state, mirroring the
// original's BuildTask/ThreadRunner/TaskManager split (build_task.cpp,
// thread_runner.cpp, task_manager.cpp) — workers only ever execute a task's
// run function and post the result back through a continuation channel;
// they never touch task or graph state directly.
package taskmgr

import (
	"context"
	"runtime"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/bec-ca/mellow/internal/mellowerr"
)

// Status is a task's position in its lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusCached
	StatusDone
	StatusError
	StatusSkipped
)

// RunFunc performs a task's actual build action. It reports cached=true
// when the action determined its outputs were already up to date and did
// no real work, which TaskManager surfaces in its final Summary.
type RunFunc func(ctx context.Context) (cached bool, err error)

// Task is one node in the build graph.
type Task struct {
	Name string
	Deps []string
	Run  RunFunc

	status    Status
	err       error
	remaining int
	consumers []*Task
}

func (t *Task) isRunnable() bool {
	return t.status == StatusPending && t.remaining == 0
}

// clear drops this task's edges once it (or the overall build) is done,
// the Go equivalent of build_task.cpp's clear(), which breaks the
// producer/consumer reference cycles that would otherwise keep the whole
// graph alive past a single build.
func (t *Task) clear() {
	t.consumers = nil
	t.Deps = nil
}

// ThreadRunner is a fixed-size worker pool draining a job queue and posting
// each result to a single continuation channel, the Go analog of
// thread_runner.cpp's job_queue/on_done_queue pair.
type ThreadRunner struct {
	jobs    chan func() taskResult
	results chan taskResult
	wg      sync.WaitGroup
}

type taskResult struct {
	task   *Task
	cached bool
	err    error
}

// NumCPU returns the default worker count, the Go equivalent of
// thread_runner.cpp's num_cpus().
func NumCPU() int {
	return runtime.NumCPU()
}

// NewThreadRunner starts numWorkers goroutines pulling jobs off an internal
// queue until Close is called.
func NewThreadRunner(numWorkers int) *ThreadRunner {
	if numWorkers <= 0 {
		numWorkers = NumCPU()
	}
	tr := &ThreadRunner{
		jobs:    make(chan func() taskResult, 256),
		results: make(chan taskResult, 256),
	}
	tr.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go tr.worker()
	}
	return tr
}

func (tr *ThreadRunner) worker() {
	defer tr.wg.Done()
	for job := range tr.jobs {
		tr.results <- job()
	}
}

func (tr *ThreadRunner) enqueue(job func() taskResult) {
	tr.jobs <- job
}

// closeJoin closes the job queue and waits for every worker to finish
// draining it, then closes results. Equivalent to close_join()'s close()
// half; the wait_all_done() half lives in TaskManager.Run, which only calls
// this once it has already seen every task reach a terminal state.
func (tr *ThreadRunner) closeJoin() {
	close(tr.jobs)
	tr.wg.Wait()
	close(tr.results)
}

// Summary reports how a build run concluded.
type Summary struct {
	Total   int
	Ran     int
	Cached  int
	Skipped int
	Errors  error // an aggregated *multierror.Error, or nil
}

// Manager owns the task graph and drives it to completion via a
// ThreadRunner. All of its methods other than Run are meant to be called
// before Run, to build up the graph; Run itself is the single control loop
// and must not be called concurrently with graph mutation.
type Manager struct {
	logger    hclog.Logger
	tasks     map[string]*Task
	order     []string
	producers map[string]string // output path -> name of the task producing it
}

// New creates an empty Manager.
func New(logger hclog.Logger) *Manager {
	return &Manager{logger: logger, tasks: map[string]*Task{}, producers: map[string]string{}}
}

// AddTask registers a task. deps must name tasks that are (or will be)
// added to this same Manager before Run is called. outputs are the
// filesystem paths this task produces; spec.md §3's Artifact invariant —
// "no path may be declared as output by two tasks" — is enforced here, at
// construction time, as a GraphError rather than letting two producers
// silently clobber each other's output during Run.
func (m *Manager) AddTask(name string, deps, outputs []string, run RunFunc) error {
	if _, exists := m.tasks[name]; exists {
		return &mellowerr.GraphError{Message: "duplicate task name '" + name + "'"}
	}
	for _, out := range outputs {
		if prev, ok := m.producers[out]; ok && prev != name {
			return &mellowerr.GraphError{Message: "duplicate producer for '" + out + "': '" + prev + "' and '" + name + "'"}
		}
		m.producers[out] = name
	}

	t := &Task{Name: name, Deps: deps, Run: run}
	m.tasks[name] = t
	m.order = append(m.order, name)
	return nil
}

// Run wires dependency edges, then drives every task to completion across
// numWorkers goroutines, returning a Summary once the graph is exhausted or
// ctx is canceled.
func (m *Manager) Run(ctx context.Context, numWorkers int) (*Summary, error) {
	for _, name := range m.order {
		t := m.tasks[name]
		for _, dep := range t.Deps {
			depTask, ok := m.tasks[dep]
			if !ok {
				return nil, &mellowerr.GraphError{Message: "task '" + name + "' depends on unknown task '" + dep + "'"}
			}
			depTask.consumers = append(depTask.consumers, t)
			t.remaining++
		}
	}

	runner := NewThreadRunner(numWorkers)

	pending := len(m.order)
	summary := &Summary{Total: len(m.order)}
	var errs *multierror.Error

	enqueueRunnable := func(t *Task) {
		if !t.isRunnable() {
			return
		}
		t.status = StatusStarted
		task := t
		runner.enqueue(func() taskResult {
			select {
			case <-ctx.Done():
				return taskResult{task: task, err: ctx.Err()}
			default:
			}
			cached, err := task.Run(ctx)
			return taskResult{task: task, cached: cached, err: err}
		})
	}

	for _, name := range m.order {
		enqueueRunnable(m.tasks[name])
	}

	// skipDependents marks every transitive consumer of a failed task as
	// skipped, matching the original's is_runnable(), which requires every
	// dependency to be both done AND unerrored: a failed task's dependents
	// are never poked again and so never run.
	var skipDependents func(t *Task)
	skipDependents = func(t *Task) {
		for _, consumer := range t.consumers {
			if consumer.status != StatusPending {
				continue
			}
			consumer.status = StatusSkipped
			pending--
			summary.Skipped++
			skipDependents(consumer)
		}
	}

	for pending > 0 {
		res, ok := <-runner.results
		if !ok {
			break
		}
		pending--

		res.task.err = res.err
		if res.err != nil {
			res.task.status = StatusError
			errs = multierror.Append(errs, errWithContext(res.task.Name, res.err))
			skipDependents(res.task)
		} else {
			if res.cached {
				res.task.status = StatusCached
				summary.Cached++
			} else {
				res.task.status = StatusDone
				summary.Ran++
			}
			for _, consumer := range res.task.consumers {
				consumer.remaining--
				enqueueRunnable(consumer)
			}
		}
	}

	runner.closeJoin()

	for _, name := range m.order {
		m.tasks[name].clear()
	}

	if errs != nil {
		summary.Errors = errs
	}
	return summary, nil
}

func errWithContext(name string, err error) error {
	return &taskError{name: name, err: err}
}

type taskError struct {
	name string
	err  error
}

func (e *taskError) Error() string { return e.name + ": " + e.err.Error() }
func (e *taskError) Unwrap() error { return e.err }
