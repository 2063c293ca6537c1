package src

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonFenceRe         = regexp.MustCompile("(?is)```(?:json[c5]?|json5)?\\s*([{\\[].*?[}\\]])\\s*```")
	trailingArrayComma  = regexp.MustCompile(`,\s*\]`)
	trailingObjectComma = regexp.MustCompile(`,\s*\}`)
	backtickStringRe    = regexp.MustCompile("`([^`\\\\]*(?:\\\\.[^`\\\\]*)*)`")
)

// sanitizeJSON removes the damage providers most often do to JSON:
// trailing commas and backticks in place of double quotes.
func sanitizeJSON(s string) string {
	s = trailingArrayComma.ReplaceAllString(s, "]")
	s = trailingObjectComma.ReplaceAllString(s, "}")
	if strings.Contains(s, "`") {
		s = backtickStringRe.ReplaceAllString(s, "\"$1\"")
	}
	return s
}

// DecodeModelJSON extracts structured data from free-form model output.
// Strategies, in order: a fenced ```json block, the outermost {...} or
// [...] span, then the trimmed raw text. The first strategy whose payload
// unmarshals wins.
func DecodeModelJSON(raw string, v any) error {
	var candidates []string

	if m := jsonFenceRe.FindStringSubmatch(raw); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	if start := strings.IndexAny(raw, "[{"); start != -1 {
		if end := strings.LastIndexAny(raw, "}]"); end > start {
			candidates = append(candidates, raw[start:end+1])
		}
	}
	candidates = append(candidates, strings.TrimSpace(raw))

	var lastErr error
	for _, c := range candidates {
		c = sanitizeJSON(strings.TrimSpace(c))
		if c == "" || (c[0] != '{' && c[0] != '[') {
			lastErr = errors.New("no JSON object or array found")
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// ParseResponse decodes model output into v. When every local strategy
// fails, one self-correction round trip asks a fixed reliable model to
// repair its peer's output; the repaired text is parsed directly, with no
// further extraction or retries. The repair call bills the same caller.
func (e *Engine) ParseResponse(ctx context.Context, raw string, req CallRequest, v any) error {
	if err := DecodeModelJSON(raw, v); err == nil {
		return nil
	}

	repaired, err := e.CallModel(ctx, CallRequest{
		Prompt:   repairPrompt(raw),
		Provider: e.cfg.RepairProvider,
		Model:    e.cfg.RepairModel,
		UserID:   req.UserID,
		UserKeys: req.UserKeys,
		Project:  req.Project,
	})
	if err != nil {
		return fmt.Errorf("%w: self-correction call: %v", ErrParseFailure, err)
	}
	if uerr := json.Unmarshal([]byte(strings.TrimSpace(repaired)), v); uerr != nil {
		return fmt.Errorf("%w: after self-correction: %v", ErrParseFailure, uerr)
	}
	return nil
}

// callAndParse is the everyday pairing: one completion, one parse.
func (e *Engine) callAndParse(ctx context.Context, req CallRequest, v any) error {
	raw, err := e.CallModel(ctx, req)
	if err != nil {
		return err
	}
	return e.ParseResponse(ctx, raw, req, v)
}
