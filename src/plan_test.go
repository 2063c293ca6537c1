package src

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProposePlanParsesPayload(t *testing.T) {
	rig := newTestRig(t, 10)
	rig.stub.queue(stubReply{text: `{
		"thoughts": "private",
		"reasoning": "add a greeting",
		"plan": {"create": ["hello.txt"], "update": ["main.go"]}
	}`})

	files := FromMap(map[string]string{"main.go": "package main"})
	plan, err := rig.eng.ProposePlan(context.Background(), baseReq(), "add greeting", files)
	if err != nil {
		t.Fatalf("ProposePlan: %v", err)
	}
	if plan.Status != PlanPending {
		t.Fatalf("new plan must be pending, got %s", plan.Status)
	}
	if plan.Reasoning != "add a greeting" {
		t.Fatalf("unexpected reasoning %q", plan.Reasoning)
	}
	if len(plan.Ops.Create) != 1 || plan.Ops.Create[0] != "hello.txt" {
		t.Fatalf("unexpected ops: %+v", plan.Ops)
	}
}

func TestProposePlanCarriesSpecialAction(t *testing.T) {
	rig := newTestRig(t, 10)
	rig.stub.queue(stubReply{text: `{
		"reasoning": "this deletes everything",
		"plan": {},
		"special_action": {"kind": "delete-project", "confirm": "Really delete the project?"}
	}`})

	plan, err := rig.eng.ProposePlan(context.Background(), baseReq(), "delete it all", nil)
	if err != nil {
		t.Fatalf("ProposePlan: %v", err)
	}
	if plan.Special == nil || plan.Special.Kind != "delete-project" {
		t.Fatalf("special action missing: %+v", plan.Special)
	}
	if plan.Special.Confirm == "" {
		t.Fatal("special action must carry a confirmation question")
	}
}

func TestApprovePlanDropsOutOfPlanPaths(t *testing.T) {
	rig := newTestRig(t, 10)
	rig.stub.queue(stubReply{text: `{
		"create": {"hello.txt": "hi", "sneaky.txt": "nope"},
		"update": {"main.go": "package main // v2"}
	}`})

	files := FromMap(map[string]string{"main.go": "package main"})
	plan := &Plan{
		ID:     "p",
		Ops:    PlanOps{Create: []string{"hello.txt"}, Update: []string{"main.go"}},
		Status: PlanPending,
	}

	cs, err := rig.eng.ApprovePlan(context.Background(), baseReq(), plan, files)
	if err != nil {
		t.Fatalf("ApprovePlan: %v", err)
	}
	if plan.Status != PlanApproved {
		t.Fatalf("expected approved, got %s", plan.Status)
	}
	if _, ok := cs.Create["sneaky.txt"]; ok {
		t.Fatal("out-of-plan create must be dropped")
	}
	if cs.Create["hello.txt"] != "hi" {
		t.Fatalf("in-plan create missing: %+v", cs.Create)
	}
	if cs.Update["main.go"] == "" {
		t.Fatal("in-plan update missing")
	}
}

func TestApprovePlanRevertsToPendingOnFailure(t *testing.T) {
	rig := newTestRig(t, 10)
	// Execution output is garbage and so is the self-correction reply.
	rig.stub.queue(
		stubReply{text: "not json at all"},
		stubReply{text: "still not json"},
	)

	plan := &Plan{ID: "p", Ops: PlanOps{Create: []string{"a.txt"}}, Status: PlanPending}
	_, err := rig.eng.ApprovePlan(context.Background(), baseReq(), plan, nil)
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	if plan.Status != PlanPending {
		t.Fatalf("failed execution must revert to pending, got %s", plan.Status)
	}
}

func TestApprovePlanRejectsNonPending(t *testing.T) {
	rig := newTestRig(t, 10)
	plan := &Plan{ID: "p", Status: PlanRejected}
	if _, err := rig.eng.ApprovePlan(context.Background(), baseReq(), plan, nil); err == nil {
		t.Fatal("expected error approving a non-pending plan")
	}
}

func TestExecutePlanPersistsAndJournals(t *testing.T) {
	rig := newTestRig(t, 10)
	rig.stub.queue(
		stubReply{text: `{"create": {"hello.txt": "hi"}}`}, // execution
		stubReply{text: "- added a greeting file"},         // journal entry
	)

	files := FromMap(map[string]string{"main.go": "package main"})
	rig.store.Seed("p1", files)

	plan := &Plan{
		ID:      "p",
		Request: "add greeting",
		Ops:     PlanOps{Create: []string{"hello.txt"}},
		Status:  PlanPending,
	}
	next, err := rig.eng.ExecutePlan(context.Background(), baseReq(), plan, files)
	if err != nil {
		t.Fatalf("ExecutePlan: %v", err)
	}
	if FindByPath(next, "hello.txt") == nil {
		t.Fatal("created file missing from result")
	}

	mem := ReadMemory(next)
	if !strings.Contains(mem, "added a greeting file") {
		t.Fatalf("journal entry missing:\n%s", mem)
	}

	stored, _ := rig.store.Get("p1")
	if FindByPath(stored, "hello.txt") == nil {
		t.Fatal("change not persisted to store")
	}
	if FindByPath(stored, MemoryLogPath) == nil {
		t.Fatal("journal not persisted to store")
	}
}

// brokenStore fails every batch write.
type brokenStore struct {
	*MemoryStore
}

func (s *brokenStore) ApplyBatch(projectID string, ops []StoreOp) error {
	return errors.New("disk full")
}

func TestExecutePlanRevertsToPendingWhenPersistFails(t *testing.T) {
	rig := newTestRig(t, 10)
	store := &brokenStore{MemoryStore: NewMemoryStore()}
	eng := NewEngine(DefaultConfig(), store, rig.wallet, &captureAudit{})
	eng.retryDelay = time.Millisecond
	eng.UseTransport(ProviderGemini, rig.stub)
	rig.stub.queue(
		stubReply{text: `{"create": {"hello.txt": "hi"}}`},
		stubReply{text: "- added a greeting file"},
	)

	plan := &Plan{
		ID:      "p",
		Request: "add greeting",
		Ops:     PlanOps{Create: []string{"hello.txt"}},
		Status:  PlanPending,
	}
	_, err := eng.ExecutePlan(context.Background(), baseReq(), plan, nil)
	if err == nil {
		t.Fatal("expected store failure to surface")
	}
	if plan.Status != PlanPending {
		t.Fatalf("plan must revert to pending for retry, got %s", plan.Status)
	}
}

func TestRejectOnlyAffectsPendingPlans(t *testing.T) {
	p := &Plan{Status: PlanApproved}
	p.Reject()
	if p.Status != PlanApproved {
		t.Fatal("rejecting an approved plan must be a no-op")
	}
	p2 := &Plan{Status: PlanPending}
	p2.Reject()
	if p2.Status != PlanRejected {
		t.Fatal("pending plan should become rejected")
	}
}
