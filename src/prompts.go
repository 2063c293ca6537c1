package src

import (
	"fmt"
	"strings"
)

// changeSetContract is appended to every prompt that must yield a
// change-set. Models drift; the parser forgives fences and trailing
// commas, but the key names here are load-bearing.
const changeSetContract = "Respond with STRICT JSON only: a single object with optional keys " +
	"\"create\" (object path→full file content), \"update\" (object path→full file content), " +
	"\"delete\" (array of paths), \"move\" (array of {\"from\",\"to\"}), \"copy\" (array of {\"from\",\"to\"}).\n" +
	"Paths are project-relative with forward slashes. Always output COMPLETE file contents, " +
	"never snippets, diffs or placeholders. No prose, comments, markdown fences or extra keys.\n"

const planContract = "Respond with STRICT JSON only: an object with keys " +
	"\"thoughts\" (string, your private reasoning), \"reasoning\" (string, a short explanation for the user), " +
	"\"plan\" (object with optional keys \"create\", \"update\", \"delete\" as arrays of paths, " +
	"\"move\" and \"copy\" as arrays of {\"from\",\"to\"}), and optionally \"special_action\" " +
	"(object with \"kind\" one of delete-project|copy-project|rename-project|clear-history, " +
	"\"payload\" string, \"confirm\" string question for the user).\n" +
	"Do NOT include file contents in the plan. Use special_action ONLY when the request is about " +
	"the whole project or its history rather than its files.\n"

func planPrompt(request string, files []*FileNode, memory string) string {
	var b strings.Builder
	b.WriteString("You are Vibe, an expert software engineer planning changes to a user's project.\n")
	b.WriteString(planContract)
	b.WriteString("\n")
	b.WriteString(BuildFileContext(files))
	if memory != "" {
		b.WriteString("\n## PRIOR WORK LOG\n")
		b.WriteString(memory)
		b.WriteString("\n")
	}
	b.WriteString("\n---\nUSER REQUEST:\n")
	b.WriteString(request)
	return b.String()
}

func executePlanPrompt(plan *Plan, files []*FileNode) string {
	var b strings.Builder
	b.WriteString("You are Vibe, an expert software engineer executing an approved plan.\n")
	b.WriteString(changeSetContract)
	b.WriteString("Touch ONLY the paths listed in the plan below. Any other path will be discarded.\n\n")
	b.WriteString(BuildFileContext(files))
	b.WriteString("\n---\nAPPROVED PLAN:\n")
	b.WriteString(plan.Reasoning)
	b.WriteString("\n")
	writePaths := func(label string, paths []string) {
		if len(paths) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(paths, ", "))
	}
	writePaths("create", plan.Ops.Create)
	writePaths("update", plan.Ops.Update)
	writePaths("delete", plan.Ops.Delete)
	for _, mv := range plan.Ops.Move {
		fmt.Fprintf(&b, "move: %s -> %s\n", mv.From, mv.To)
	}
	for _, cp := range plan.Ops.Copy {
		fmt.Fprintf(&b, "copy: %s -> %s\n", cp.From, cp.To)
	}
	return b.String()
}

func memorySummaryPrompt(what string) string {
	return "Summarize the following completed work as a short markdown journal entry " +
		"(2-4 bullet points, past tense, no heading). Return the entry text only, no fences.\n\n" + what
}

func agentPlanPrompt(objective string, files []*FileNode, memory string) string {
	var b strings.Builder
	b.WriteString("You are an autonomous software agent. Decompose the objective into 2-6 ordered, ")
	b.WriteString("independently verifiable tasks.\n")
	b.WriteString("Respond with STRICT JSON only: an array of short task strings.\n")
	b.WriteString("Example: [\"add the storage layer\", \"wire handlers to storage\", \"write tests\"].\n\n")
	b.WriteString(BuildFileContext(files))
	if memory != "" {
		b.WriteString("\n## PRIOR WORK LOG\n")
		b.WriteString(memory)
		b.WriteString("\n")
	}
	b.WriteString("\n---\nOBJECTIVE:\n")
	b.WriteString(objective)
	return b.String()
}

func agentExecutePrompt(task string, files []*FileNode, rejection string) string {
	var b strings.Builder
	b.WriteString("You are an autonomous software agent executing ONE task of a larger plan.\n")
	b.WriteString(changeSetContract)
	b.WriteString("\n")
	b.WriteString(BuildFileContext(files))
	b.WriteString("\n---\nTASK:\n")
	b.WriteString(task)
	if rejection != "" {
		b.WriteString("\n\nYour previous attempt was rejected for this reason. Fix it:\n")
		b.WriteString(rejection)
	}
	return b.String()
}

func agentAnalyzePrompt(task string, cs ChangeSet, after []*FileNode) string {
	var b strings.Builder
	b.WriteString("You are a strict reviewer. Given a task, the proposed change-set summary and the ")
	b.WriteString("resulting project, decide whether the task is fully completed.\n")
	b.WriteString("Be conservative: when uncertain, answer false.\n")
	b.WriteString("Respond with STRICT JSON only: {\"taskCompleted\": bool, \"analysis\": \"one or two sentences\"}.\n\n")
	fmt.Fprintf(&b, "TASK:\n%s\n\nCHANGES:\n%s\n\n", task, cs.Summary())
	b.WriteString(BuildFileContext(after))
	return b.String()
}

func godPlanPrompt(objective string, files []*FileNode, affordances []AffordanceDesc) string {
	var b strings.Builder
	b.WriteString("You are the planner of a multi-agent pipeline that operates an application on the ")
	b.WriteString("user's behalf. Produce the FULL ordered sequence of actions needed for the objective.\n")
	b.WriteString("Respond with STRICT JSON only: an array of objects with keys \"type\" ")
	b.WriteString("(CLICK_ELEMENT|TYPE_IN_INPUT|SELECT_OPTION|MODIFY_FILES|ASK_USER|FINISH), ")
	b.WriteString("\"selector\" (an affordance id, for the three UI action types), ")
	b.WriteString("\"payload\" (string: text to type, option to select, question to ask, or for ")
	b.WriteString("MODIFY_FILES a natural-language description of the file changes).\n")
	b.WriteString("The LAST action MUST be {\"type\":\"FINISH\"}.\n\n")
	b.WriteString("## AVAILABLE AFFORDANCES\n")
	for _, a := range affordances {
		fmt.Fprintf(&b, "- %s: %s\n", a.Selector, a.Description)
	}
	b.WriteString("\n")
	b.WriteString(BuildFileContext(files))
	b.WriteString("\n---\nOBJECTIVE:\n")
	b.WriteString(objective)
	return b.String()
}

func godReviewPrompt(action GodModeAction, objective string) string {
	return fmt.Sprintf("In one sentence, justify why the following step serves the objective. "+
		"Return the sentence only, no fences.\n\nOBJECTIVE: %s\nSTEP: %s %s %s\n",
		objective, action.Type, action.Selector, truncate(action.Payload, 200))
}

func godCoderPrompt(intent string, files []*FileNode) string {
	var b strings.Builder
	b.WriteString("You are the coder of a multi-agent pipeline. Turn the intent below into concrete ")
	b.WriteString("file changes.\n")
	b.WriteString(changeSetContract)
	b.WriteString("\n")
	b.WriteString(BuildFileContext(files))
	b.WriteString("\n---\nINTENT:\n")
	b.WriteString(intent)
	return b.String()
}

func repairPrompt(raw string) string {
	return "The following text was supposed to be valid JSON but is not. " +
		"Return ONLY the corrected JSON, with no fences, prose or comments:\n\n" + raw
}
