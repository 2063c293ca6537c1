package src

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlanStatus tracks a plan through the two-phase protocol.
type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanExecuting PlanStatus = "executing"
	PlanApproved  PlanStatus = "approved"
	PlanRejected  PlanStatus = "rejected"
)

// PlanOps lists the paths a plan intends to touch, without content.
type PlanOps struct {
	Create []string   `json:"create,omitempty"`
	Update []string   `json:"update,omitempty"`
	Delete []string   `json:"delete,omitempty"`
	Move   []PathMove `json:"move,omitempty"`
	Copy   []PathMove `json:"copy,omitempty"`
}

// SpecialAction is a project-level request that bypasses the file tree.
// It always carries a confirmation question; nothing runs until the user
// answers it.
type SpecialAction struct {
	Kind    string `json:"kind"` // delete-project, copy-project, rename-project, clear-history
	Payload string `json:"payload,omitempty"`
	Confirm string `json:"confirm"`
}

// Plan is the first phase of the two-phase protocol: what the model
// intends to do, shown to the user before any content is generated.
type Plan struct {
	ID        string
	Request   string
	Thoughts  string
	Reasoning string
	Ops       PlanOps
	Special   *SpecialAction
	Status    PlanStatus
}

type planPayload struct {
	Thoughts  string         `json:"thoughts"`
	Reasoning string         `json:"reasoning"`
	Plan      PlanOps        `json:"plan"`
	Special   *SpecialAction `json:"special_action,omitempty"`
}

// allowedPaths returns the set of paths the plan authorises, cleaned.
func (p *Plan) allowedPaths() map[string]bool {
	out := map[string]bool{}
	for _, s := range p.Ops.Create {
		out[CleanPath(s)] = true
	}
	for _, s := range p.Ops.Update {
		out[CleanPath(s)] = true
	}
	for _, s := range p.Ops.Delete {
		out[CleanPath(s)] = true
	}
	for _, mv := range p.Ops.Move {
		out[CleanPath(mv.From)] = true
		out[CleanPath(mv.To)] = true
	}
	for _, cp := range p.Ops.Copy {
		out[CleanPath(cp.From)] = true
		out[CleanPath(cp.To)] = true
	}
	return out
}

// ProposePlan runs phase one: the model reads the project and states its
// intent as a list of paths, with no file content yet.
func (e *Engine) ProposePlan(ctx context.Context, base CallRequest, request string, files []*FileNode) (*Plan, error) {
	base.Prompt = planPrompt(request, files, MemoryTail(files))

	var payload planPayload
	if err := e.callAndParse(ctx, base, &payload); err != nil {
		return nil, err
	}
	return &Plan{
		ID:        uuid.NewString(),
		Request:   request,
		Thoughts:  payload.Thoughts,
		Reasoning: payload.Reasoning,
		Ops:       payload.Plan,
		Special:   payload.Special,
		Status:    PlanPending,
	}, nil
}

// ApprovePlan runs phase two: generate the actual change-set, restricted
// to the paths the approved plan named. Entries outside the plan are
// dropped rather than failing the whole run. Any error reverts the plan
// to pending so the user can retry or reject it.
func (e *Engine) ApprovePlan(ctx context.Context, base CallRequest, plan *Plan, files []*FileNode) (ChangeSet, error) {
	if plan.Status != PlanPending {
		return ChangeSet{}, fmt.Errorf("plan %s is %s, not pending", plan.ID, plan.Status)
	}
	plan.Status = PlanExecuting

	base.Prompt = executePlanPrompt(plan, files)
	var cs ChangeSet
	if err := e.callAndParse(ctx, base, &cs); err != nil {
		plan.Status = PlanPending
		return ChangeSet{}, err
	}

	allowed := plan.allowedPaths()
	cs = e.restrictChangeSet(cs, allowed)
	plan.Status = PlanApproved
	return cs, nil
}

// Reject marks a pending plan as refused by the user.
func (p *Plan) Reject() {
	if p.Status == PlanPending {
		p.Status = PlanRejected
	}
}

func (e *Engine) restrictChangeSet(cs ChangeSet, allowed map[string]bool) ChangeSet {
	out := ChangeSet{}
	for p, c := range cs.Create {
		if allowed[CleanPath(p)] {
			if out.Create == nil {
				out.Create = map[string]string{}
			}
			out.Create[CleanPath(p)] = c
		} else {
			e.log.Warn("dropping out-of-plan create", "path", p)
		}
	}
	for p, c := range cs.Update {
		if allowed[CleanPath(p)] {
			if out.Update == nil {
				out.Update = map[string]string{}
			}
			out.Update[CleanPath(p)] = c
		} else {
			e.log.Warn("dropping out-of-plan update", "path", p)
		}
	}
	for _, p := range cs.Delete {
		if allowed[CleanPath(p)] {
			out.Delete = append(out.Delete, CleanPath(p))
		} else {
			e.log.Warn("dropping out-of-plan delete", "path", p)
		}
	}
	for _, mv := range cs.Move {
		if allowed[CleanPath(mv.From)] && allowed[CleanPath(mv.To)] {
			out.Move = append(out.Move, PathMove{From: CleanPath(mv.From), To: CleanPath(mv.To)})
		} else {
			e.log.Warn("dropping out-of-plan move", "from", mv.From, "to", mv.To)
		}
	}
	for _, cp := range cs.Copy {
		if allowed[CleanPath(cp.From)] && allowed[CleanPath(cp.To)] {
			out.Copy = append(out.Copy, PathMove{From: CleanPath(cp.From), To: CleanPath(cp.To)})
		} else {
			e.log.Warn("dropping out-of-plan copy", "from", cp.From, "to", cp.To)
		}
	}
	return out
}

// ExecutePlan approves the plan, applies the resulting change-set, appends
// a journal entry and persists everything as one batch. The journal entry
// is model-written when possible, mechanical otherwise.
func (e *Engine) ExecutePlan(ctx context.Context, base CallRequest, plan *Plan, files []*FileNode) ([]*FileNode, error) {
	cs, err := e.ApprovePlan(ctx, base, plan, files)
	if err != nil {
		return nil, err
	}

	next, ops, err := ApplyChangeSet(files, cs)
	if err != nil {
		plan.Status = PlanPending
		return nil, err
	}

	entry := e.summarizeWork(ctx, base, plan.Request+"\n\n"+cs.Summary())
	memCS := AppendMemory(next, entry, time.Now())
	next, memOps, err := ApplyChangeSet(next, memCS)
	if err != nil {
		plan.Status = PlanPending
		return nil, err
	}
	ops = append(ops, memOps...)

	// Nothing was persisted, so the user may approve again.
	if err := e.store.ApplyBatch(base.Project, ops); err != nil {
		plan.Status = PlanPending
		return nil, err
	}
	return next, nil
}

// summarizeWork asks the model for a short journal entry; if that call
// fails the mechanical summary is used so the log never goes silent.
func (e *Engine) summarizeWork(ctx context.Context, base CallRequest, what string) string {
	base.Prompt = memorySummaryPrompt(what)
	entry, err := e.CallModel(ctx, base)
	if err != nil {
		e.log.Warn("memory summary call failed, using mechanical summary", "error", err)
		return what
	}
	return entry
}
