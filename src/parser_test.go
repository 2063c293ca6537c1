package src

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeModelJSONFenced(t *testing.T) {
	input := "Sure thing!\n```json\n{\"a\": 1}\n```\nLet me know if you need more."
	var got map[string]int
	if err := DecodeModelJSON(input, &got); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]int{"a": 1}) {
		t.Fatalf("unexpected map: %v", got)
	}
}

func TestDecodeModelJSONSpan(t *testing.T) {
	input := "the answer is {\"path\": \"main.go\"} which should work"
	var got map[string]string
	if err := DecodeModelJSON(input, &got); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if got["path"] != "main.go" {
		t.Fatalf("unexpected map: %v", got)
	}
}

func TestDecodeModelJSONBackticksAndTrailingComma(t *testing.T) {
	input := "[{`from`: `a.go`, `to`: `b.go`,},]"
	var got []PathMove
	if err := DecodeModelJSON(input, &got); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	want := []PathMove{{From: "a.go", To: "b.go"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected moves: got %#v want %#v", got, want)
	}
}

func TestDecodeModelJSONNoJSON(t *testing.T) {
	var got map[string]any
	if err := DecodeModelJSON("no structured data here", &got); err == nil {
		t.Fatal("expected error when no JSON present")
	}
}

func TestParseResponseSkipsRepairWhenLocalStrategyWorks(t *testing.T) {
	rig := newTestRig(t, 5)

	var got map[string]int
	err := rig.eng.ParseResponse(context.Background(), "```json\n{\"a\": 1}\n```", baseReq(), &got)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if rig.stub.calls != 0 {
		t.Fatalf("no self-correction call expected, transport saw %d", rig.stub.calls)
	}
}

func TestParseResponseSelfCorrects(t *testing.T) {
	rig := newTestRig(t, 5)
	rig.stub.queue(stubReply{text: "{\"a\": 2}"})

	var got map[string]int
	err := rig.eng.ParseResponse(context.Background(), "totally not json", baseReq(), &got)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if got["a"] != 2 {
		t.Fatalf("unexpected value: %v", got)
	}
	if rig.stub.calls != 1 {
		t.Fatalf("expected exactly one self-correction call, got %d", rig.stub.calls)
	}
}

func TestParseResponseRepairedOutputParsedRawOnly(t *testing.T) {
	rig := newTestRig(t, 5)
	// Repaired output still wrapped in a fence must NOT be re-extracted.
	rig.stub.queue(stubReply{text: "```json\n{\"a\": 3}\n```"})

	var got map[string]int
	err := rig.eng.ParseResponse(context.Background(), "garbage", baseReq(), &got)
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
}

func TestParseResponseFailureAfterRepair(t *testing.T) {
	rig := newTestRig(t, 5)
	rig.stub.queue(stubReply{text: "still not json"})

	var got map[string]int
	err := rig.eng.ParseResponse(context.Background(), "garbage", baseReq(), &got)
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
}
