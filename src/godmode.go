package src

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// GodModeActionType enumerates the steps the pipeline can take.
type GodModeActionType string

const (
	ActionClick  GodModeActionType = "CLICK_ELEMENT"
	ActionType   GodModeActionType = "TYPE_IN_INPUT"
	ActionSelect GodModeActionType = "SELECT_OPTION"
	ActionModify GodModeActionType = "MODIFY_FILES"
	ActionAsk    GodModeActionType = "ASK_USER"
	ActionFinish GodModeActionType = "FINISH"
)

// GodModeAction is one step of the pipeline. For MODIFY_FILES the payload
// is a serialized change-set, baked in before execution starts.
type GodModeAction struct {
	Type      GodModeActionType `json:"type"`
	Selector  string            `json:"selector,omitempty"`
	Payload   string            `json:"payload,omitempty"`
	Reasoning string            `json:"reasoning,omitempty"`
}

// GodEventKind tags progress events from a pipeline run.
type GodEventKind string

const (
	GodStarted  GodEventKind = "started"
	GodStep     GodEventKind = "step"
	GodQuestion GodEventKind = "question"
	GodFinished GodEventKind = "finished"
	GodFailed   GodEventKind = "failed"
	GodStopped  GodEventKind = "stopped"
)

// GodEvent is one progress report. Index is the position in the queue.
type GodEvent struct {
	Kind   GodEventKind
	Index  int
	Action GodModeAction
	Err    error
}

// PlanActions builds the full queue for an objective: one planner call,
// then per action a reviewer call for the reasoning and, for MODIFY_FILES,
// a coder call that turns the planner's intent into a concrete change-set.
func (e *Engine) PlanActions(ctx context.Context, base CallRequest, objective string, files []*FileNode, reg AffordanceRegistry) ([]GodModeAction, error) {
	affordances, err := reg.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list affordances: %w", err)
	}

	req := base
	req.Prompt = godPlanPrompt(objective, files, affordances)
	var actions []GodModeAction
	if err := e.callAndParse(ctx, req, &actions); err != nil {
		return nil, fmt.Errorf("plan actions: %w", err)
	}
	if len(actions) == 0 || actions[len(actions)-1].Type != ActionFinish {
		actions = append(actions, GodModeAction{Type: ActionFinish})
	}

	working := files
	for i := range actions {
		a := &actions[i]
		if a.Type == ActionFinish {
			a.Reasoning = "objective complete"
			continue
		}

		req = base
		req.Prompt = godReviewPrompt(*a, objective)
		reason, err := e.CallModel(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("review action %d: %w", i, err)
		}
		a.Reasoning = strings.TrimSpace(reason)

		if a.Type != ActionModify {
			continue
		}
		req = base
		req.Prompt = godCoderPrompt(a.Payload, working)
		var cs ChangeSet
		if err := e.callAndParse(ctx, req, &cs); err != nil {
			return nil, fmt.Errorf("code action %d: %w", i, err)
		}
		// Bake the change-set in and keep a projected tree so later
		// MODIFY_FILES steps see earlier ones.
		raw, err := json.Marshal(cs)
		if err != nil {
			return nil, err
		}
		a.Payload = string(raw)
		if working, _, err = ApplyChangeSet(working, cs); err != nil {
			return nil, fmt.Errorf("code action %d: %w", i, err)
		}
	}
	return actions, nil
}

// GodRun executes a pre-planned queue strictly in order. Exactly one
// action is current at a time; a failure halts the queue in place, and
// Stop clears whatever remains without undoing completed actions.
type GodRun struct {
	eng   *Engine
	base  CallRequest
	reg   AffordanceRegistry
	files []*FileNode

	mu      sync.Mutex
	queue   []GodModeAction
	stopped bool
	answer  chan string
}

func NewGodRun(e *Engine, base CallRequest, reg AffordanceRegistry, files []*FileNode, queue []GodModeAction) *GodRun {
	return &GodRun{
		eng:    e,
		base:   base,
		reg:    reg,
		files:  Clone(files),
		queue:  queue,
		answer: make(chan string, 1),
	}
}

// Stop clears the remaining queue. Completed actions stay applied.
func (r *GodRun) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.queue = nil
	r.mu.Unlock()
}

// Answer unblocks a pending ASK_USER action.
func (r *GodRun) Answer(text string) {
	select {
	case r.answer <- text:
	default:
	}
}

// Files returns the tree as of the last completed MODIFY_FILES action.
func (r *GodRun) Files() []*FileNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Clone(r.files)
}

// Run consumes the queue and returns its event stream. The channel closes
// after the terminal event (finished, failed or stopped).
func (r *GodRun) Run(ctx context.Context) <-chan GodEvent {
	events := make(chan GodEvent, 16)
	go func() {
		defer close(events)
		events <- GodEvent{Kind: GodStarted}

		for i := 0; ; i++ {
			r.mu.Lock()
			if r.stopped || len(r.queue) == 0 {
				stopped := r.stopped
				r.mu.Unlock()
				if stopped {
					events <- GodEvent{Kind: GodStopped, Index: i}
				} else {
					events <- GodEvent{Kind: GodFailed, Index: i,
						Err: fmt.Errorf("%w: queue ended without FINISH", ErrActionFailed)}
				}
				return
			}
			action := r.queue[0]
			r.queue = r.queue[1:]
			r.mu.Unlock()

			if err := ctx.Err(); err != nil {
				events <- GodEvent{Kind: GodStopped, Index: i, Err: err}
				return
			}

			if action.Type == ActionFinish {
				events <- GodEvent{Kind: GodFinished, Index: i, Action: action}
				return
			}

			if err := r.execute(ctx, i, action, events); err != nil {
				r.Stop()
				events <- GodEvent{Kind: GodFailed, Index: i, Action: action,
					Err: fmt.Errorf("%w: %s: %v", ErrActionFailed, action.Type, err)}
				return
			}
			events <- GodEvent{Kind: GodStep, Index: i, Action: action}
		}
	}()
	return events
}

func (r *GodRun) execute(ctx context.Context, idx int, action GodModeAction, events chan<- GodEvent) error {
	switch action.Type {
	case ActionClick, ActionType, ActionSelect:
		if _, ok, err := r.reg.Resolve(ctx, action.Selector); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("no element for selector %q", action.Selector)
		}
	}
	switch action.Type {
	case ActionClick:
		return r.reg.Click(ctx, action.Selector)
	case ActionType:
		return r.reg.SetValue(ctx, action.Selector, action.Payload)
	case ActionSelect:
		return r.reg.SelectOption(ctx, action.Selector, action.Payload)
	case ActionModify:
		var cs ChangeSet
		if err := json.Unmarshal([]byte(action.Payload), &cs); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		r.mu.Lock()
		next, ops, err := ApplyChangeSet(r.files, cs)
		if err == nil {
			r.files = next
		}
		r.mu.Unlock()
		if err != nil {
			return err
		}
		return r.eng.store.ApplyBatch(r.base.Project, ops)
	case ActionAsk:
		events <- GodEvent{Kind: GodQuestion, Index: idx, Action: action}
		select {
		case <-r.answer:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}
