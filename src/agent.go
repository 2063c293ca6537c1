package src

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AgentStatus is the lifecycle of an autonomous run.
type AgentStatus string

const (
	AgentIdle     AgentStatus = "idle"
	AgentRunning  AgentStatus = "running"
	AgentPaused   AgentStatus = "paused"
	AgentFinished AgentStatus = "finished"
	AgentError    AgentStatus = "error"
)

// maxTaskAttempts bounds self-correction per task. Three strikes and the
// whole run aborts with nothing committed.
const maxTaskAttempts = 3

// AgentState is a point-in-time snapshot of a run, safe to render.
type AgentState struct {
	Status    AgentStatus
	Objective string
	Plan      []string
	TaskIndex int
	Logs      []string
	LastError string
}

// AgentEvent is emitted after every state change. Files is non-nil only
// on the final event of a successful run.
type AgentEvent struct {
	State AgentState
	Files []*FileNode
	Err   error
}

// Agent drives an objective to completion without per-step approval.
// All intermediate trees stay private; the store sees either the full
// result or nothing.
type Agent struct {
	eng  *Engine
	base CallRequest

	mu     sync.Mutex
	state  AgentState
	resume chan struct{}
}

func NewAgent(e *Engine, base CallRequest) *Agent {
	return &Agent{
		eng:   e,
		base:  base,
		state: AgentState{Status: AgentIdle},
	}
}

// State returns a copy of the current run state.
func (a *Agent) State() AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.state
	st.Plan = append([]string(nil), a.state.Plan...)
	st.Logs = append([]string(nil), a.state.Logs...)
	return st
}

// Pause stops the run before its next step. In-flight model calls finish.
func (a *Agent) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Status == AgentRunning {
		a.state.Status = AgentPaused
		a.resume = make(chan struct{})
	}
}

// Resume continues a paused run.
func (a *Agent) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Status == AgentPaused {
		a.state.Status = AgentRunning
		close(a.resume)
		a.resume = nil
	}
}

// Run starts the loop and returns its event stream. The channel closes
// when the run ends, one way or the other.
func (a *Agent) Run(ctx context.Context, objective string, files []*FileNode) <-chan AgentEvent {
	events := make(chan AgentEvent, 16)

	a.mu.Lock()
	a.state = AgentState{Status: AgentRunning, Objective: objective}
	a.mu.Unlock()

	go func() {
		defer close(events)
		final, err := a.run(ctx, objective, files, events)
		a.mu.Lock()
		if err != nil {
			a.state.Status = AgentError
			a.state.LastError = err.Error()
		} else {
			a.state.Status = AgentFinished
		}
		st := a.state
		a.mu.Unlock()
		events <- AgentEvent{State: st, Files: final, Err: err}
	}()
	return events
}

func (a *Agent) emit(events chan<- AgentEvent, format string, args ...any) {
	a.mu.Lock()
	a.state.Logs = append(a.state.Logs, fmt.Sprintf(format, args...))
	st := a.state
	a.mu.Unlock()
	select {
	case events <- AgentEvent{State: st}:
	default:
	}
}

// checkpoint blocks while paused and surfaces cancellation between steps.
func (a *Agent) checkpoint(ctx context.Context) error {
	a.mu.Lock()
	resume := a.resume
	a.mu.Unlock()
	if resume != nil {
		select {
		case <-resume:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

type analysisPayload struct {
	TaskCompleted bool   `json:"taskCompleted"`
	Analysis      string `json:"analysis"`
}

func (a *Agent) run(ctx context.Context, objective string, files []*FileNode, events chan<- AgentEvent) ([]*FileNode, error) {
	e := a.eng
	working := Clone(files)
	var pending []StoreOp

	base := a.base
	base.Prompt = agentPlanPrompt(objective, working, MemoryTail(working))
	var tasks []string
	if err := e.callAndParse(ctx, base, &tasks); err != nil {
		return nil, fmt.Errorf("decompose objective: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("decompose objective: empty task list")
	}

	a.mu.Lock()
	a.state.Plan = tasks
	a.mu.Unlock()
	a.emit(events, "planned %d tasks", len(tasks))

	for i, task := range tasks {
		a.mu.Lock()
		a.state.TaskIndex = i
		a.mu.Unlock()
		a.emit(events, "task %d/%d: %s", i+1, len(tasks), task)

		rejection := ""
		done := false
		for attempt := 1; attempt <= maxTaskAttempts; attempt++ {
			if err := a.checkpoint(ctx); err != nil {
				return nil, err
			}

			req := a.base
			req.Prompt = agentExecutePrompt(task, working, rejection)
			var cs ChangeSet
			if err := e.callAndParse(ctx, req, &cs); err != nil {
				rejection = err.Error()
				a.emit(events, "attempt %d failed: %v", attempt, err)
				continue
			}

			next, ops, err := ApplyChangeSet(working, cs)
			if err != nil {
				rejection = err.Error()
				a.emit(events, "attempt %d produced an invalid change-set: %v", attempt, err)
				continue
			}

			if err := a.checkpoint(ctx); err != nil {
				return nil, err
			}

			req = a.base
			req.Prompt = agentAnalyzePrompt(task, cs, next)
			var verdict analysisPayload
			if err := e.callAndParse(ctx, req, &verdict); err != nil {
				rejection = err.Error()
				a.emit(events, "attempt %d: reviewer unavailable: %v", attempt, err)
				continue
			}
			if !verdict.TaskCompleted {
				rejection = verdict.Analysis
				a.emit(events, "attempt %d rejected: %s", attempt, verdict.Analysis)
				continue
			}

			working = next
			pending = append(pending, ops...)
			done = true
			a.emit(events, "task %d done: %s", i+1, cs.Summary())
			break
		}
		if !done {
			return nil, fmt.Errorf("%w: %q after %d attempts: %s",
				ErrTaskExhausted, task, maxTaskAttempts, rejection)
		}
	}

	entry := e.summarizeWork(ctx, a.base, objective+"\n\n"+fmt.Sprintf("completed %d tasks", len(tasks)))
	memCS := AppendMemory(working, entry, time.Now())
	next, memOps, err := ApplyChangeSet(working, memCS)
	if err != nil {
		return nil, err
	}
	working = next
	pending = append(pending, memOps...)

	if err := e.store.ApplyBatch(a.base.Project, pending); err != nil {
		return nil, fmt.Errorf("persist agent run: %w", err)
	}
	a.emit(events, "persisted %d operations", len(pending))
	return working, nil
}
