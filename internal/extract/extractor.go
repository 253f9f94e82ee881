// Package extract recovers structured session lists from the generative
// service's free-form replies. The service is prompted to emit a fenced
// JSON array, but formatting drifts: the fence tag goes missing, prose
// leaks inside the fence, or the array appears bare in the middle of the
// message. A fixed sequence of strategies is tried in order; the first one
// producing a valid session list wins.
//
// Extraction is deterministic and side-effect free: identical input text
// always yields identical output. Malformed JSON never raises an error, it
// degrades to "no sessions extracted" with the reply text untouched.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nbouchiba/allure/internal/plan"
)

var (
	// Strategy 1: a fenced block explicitly tagged as structured data.
	taggedFenceRegex = regexp.MustCompile("(?s)```(?:json|sessions)[ \t]*\n(.*?)```")
	// Strategy 2: any fenced block, as long as its body holds an array of objects.
	anyFenceRegex = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \t]*\n(.*?)```")
	// Strategy 3 anchor: an array-of-objects shape anywhere in the text.
	arrayStartRegex = regexp.MustCompile(`\[\s*{`)

	multiNewlineRegex = regexp.MustCompile(`\n{3,}`)
)

// The reply payload must be a non-empty array whose first record carries a
// date field. Later records are normalized leniently by the reconciler.
var sessionListSchema = gojsonschema.NewStringLoader(`{
	"type": "array",
	"minItems": 1,
	"items": [
		{"type": "object", "required": ["date"]}
	]
}`)

// Extract parses the free-form reply text into a cleaned human-readable
// message and zero or more proposed sessions.
func Extract(text string) (string, []plan.ProposedSession) {
	type strategy func(string) (span [2]int, sessions []plan.ProposedSession, ok bool)

	strategies := []strategy{matchTaggedFence, matchAnyFence, matchBareArray}
	for _, try := range strategies {
		span, sessions, ok := try(text)
		if !ok {
			continue
		}
		cleaned := text[:span[0]] + text[span[1]:]
		cleaned = multiNewlineRegex.ReplaceAllString(cleaned, "\n\n")
		return strings.TrimSpace(cleaned), sessions
	}

	return text, nil
}

// ConfirmationMessage is the canned reply the caller may substitute for the
// cleaned message once sessions have been applied. Policy, not correctness.
func ConfirmationMessage(count int) string {
	if count == 1 {
		return "I've added 1 session to your plan. Tell me if you'd like to adjust it."
	}
	return fmt.Sprintf("I've added %d sessions to your plan. Tell me if you'd like to adjust them.", count)
}

func matchTaggedFence(text string) ([2]int, []plan.ProposedSession, bool) {
	return matchFence(taggedFenceRegex, text)
}

func matchAnyFence(text string) ([2]int, []plan.ProposedSession, bool) {
	return matchFence(anyFenceRegex, text)
}

// matchFence walks every fenced block the pattern matches. A fence whose
// payload isn't a valid session list doesn't end the scan; the list may sit
// in a later fence of the same reply.
func matchFence(re *regexp.Regexp, text string) ([2]int, []plan.ProposedSession, bool) {
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		span, payload, ok := fencePayload(text, loc)
		if !ok {
			continue
		}
		if sessions, ok := decodeSessions(payload); ok {
			return span, sessions, true
		}
	}
	return [2]int{}, nil, false
}

// fencePayload trims the captured fence body and, when the body doesn't
// itself start with the array opener, digs out the first [{...}] span from
// inside it. The removed span is always the whole fenced block.
func fencePayload(text string, loc []int) ([2]int, string, bool) {
	span := [2]int{loc[0], loc[1]}
	body := strings.TrimSpace(text[loc[2]:loc[3]])
	if body == "" {
		return span, "", false
	}
	if !strings.HasPrefix(body, "[") {
		inner, ok := firstArraySpan(body)
		if !ok {
			return span, "", false
		}
		body = inner
	}
	return span, body, true
}

// matchBareArray looks for an array-of-objects shape anywhere in the raw
// text, anchored on the first array whose leading record carries a date
// field. Arrays without one (week summaries, zone tables) are stepped over.
func matchBareArray(text string) ([2]int, []plan.ProposedSession, bool) {
	for _, start := range arrayStartRegex.FindAllStringIndex(text, -1) {
		raw, end, ok := decodeRawArray(text[start[0]:])
		if !ok {
			continue
		}
		sessions, ok := decodeSessions(raw)
		if !ok {
			continue
		}
		return [2]int{start[0], start[0] + end}, sessions, true
	}
	return [2]int{}, nil, false
}

// firstArraySpan finds the first session-shaped JSON array inside free text.
func firstArraySpan(text string) (string, bool) {
	for _, start := range arrayStartRegex.FindAllStringIndex(text, -1) {
		raw, _, ok := decodeRawArray(text[start[0]:])
		if !ok {
			continue
		}
		if _, ok := decodeSessions(raw); ok {
			return raw, true
		}
	}
	return "", false
}

// decodeRawArray decodes a single JSON value starting at the beginning of
// text, returning its verbatim bytes and the offset past its end.
func decodeRawArray(text string) (string, int, bool) {
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return "", 0, false
	}

	return string(raw), int(decoder.InputOffset()), true
}

// decodeSessions validates the payload against the session-list schema and
// deserializes it. Any failure means the strategy did not match.
func decodeSessions(payload string) ([]plan.ProposedSession, bool) {
	if payload == "" {
		return nil, false
	}

	result, err := gojsonschema.Validate(sessionListSchema, gojsonschema.NewStringLoader(payload))
	if err != nil || !result.Valid() {
		return nil, false
	}

	var sessions []plan.ProposedSession
	if err := json.Unmarshal([]byte(payload), &sessions); err != nil {
		return nil, false
	}
	if len(sessions) == 0 || sessions[0].Date == "" {
		return nil, false
	}

	return sessions, true
}
