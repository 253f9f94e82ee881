package extract

import (
	"strings"
	"testing"
)

func TestExtract_TaggedFence(t *testing.T) {
	text := "Here is your week:\n```json\n[{\"date\":\"2024-06-03\",\"type\":\"Endurance\",\"sport\":\"Running\",\"dureeMinutes\":45,\"description\":\"Easy run\",\"intensite\":\"Modéré\"}]\n```\nEnjoy!"

	msg, sessions := Extract(text)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.Date != "2024-06-03" || s.Type != "Endurance" || s.DurationMin != 45 {
		t.Errorf("unexpected session: %+v", s)
	}
	if strings.Contains(msg, "```") {
		t.Errorf("cleaned message still contains fence markers: %q", msg)
	}
	if !strings.Contains(msg, "Here is your week:") || !strings.Contains(msg, "Enjoy!") {
		t.Errorf("cleaned message lost surrounding prose: %q", msg)
	}
}

func TestExtract_UntaggedFence(t *testing.T) {
	text := "Plan below.\n```\n[{\"date\":\"2024-06-03\",\"sport\":\"Running\",\"dureeMinutes\":30}]\n```"

	_, sessions := Extract(text)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].DurationMin != 30 {
		t.Errorf("expected duration 30, got %v", sessions[0].DurationMin)
	}
}

func TestExtract_ProseInsideFence(t *testing.T) {
	// Some replies put a label before the array inside the fence.
	text := "```json\nsessions:\n[{\"date\":\"2024-06-04\",\"dureeMinutes\":40}]\n```"

	_, sessions := Extract(text)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Date != "2024-06-04" {
		t.Errorf("unexpected date %q", sessions[0].Date)
	}
}

func TestExtract_BareArray(t *testing.T) {
	text := "Your sessions: [{\"date\":\"2024-06-05\",\"type\":\"Seuil\",\"dureeMinutes\":50}] — tell me what you think."

	msg, sessions := Extract(text)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if strings.Contains(msg, "2024-06-05") {
		t.Errorf("cleaned message still contains the array: %q", msg)
	}
}

func TestExtract_BareArraySkipsUndatedArrays(t *testing.T) {
	text := "Week overview: [{\"weekNumber\":1,\"totalMinutes\":180}] " +
		"and here is the session: [{\"date\":\"2024-06-05\",\"type\":\"Seuil\",\"dureeMinutes\":50}] done."

	msg, sessions := Extract(text)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session from the dated array, got %d", len(sessions))
	}
	if sessions[0].Date != "2024-06-05" {
		t.Errorf("unexpected session: %+v", sessions[0])
	}
	if !strings.Contains(msg, "weekNumber") {
		t.Errorf("undated array should stay in the message, got %q", msg)
	}
	if strings.Contains(msg, "2024-06-05") {
		t.Errorf("cleaned message still contains the session array: %q", msg)
	}
}

func TestExtract_LaterFenceHoldsTheSessions(t *testing.T) {
	text := "```json\n[{\"weekNumber\":1}]\n```\nAnd the plan:\n" +
		"```json\n[{\"date\":\"2024-06-03\",\"type\":\"Endurance\",\"dureeMinutes\":45}]\n```"

	_, sessions := Extract(text)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session from the second fence, got %d", len(sessions))
	}
	if sessions[0].Date != "2024-06-03" {
		t.Errorf("unexpected session: %+v", sessions[0])
	}
}

func TestExtract_MultipleSessions(t *testing.T) {
	text := "```json\n[" +
		"{\"date\":\"2024-06-03\",\"type\":\"Endurance\",\"dureeMinutes\":45}," +
		"{\"date\":\"2024-06-05\",\"type\":\"VMA\",\"dureeMinutes\":40}," +
		"{\"date\":\"2024-06-08\",\"type\":\"Sortie longue\",\"dureeMinutes\":90}" +
		"]\n```"

	_, sessions := Extract(text)
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
}

func TestExtract_TruncatedJSON(t *testing.T) {
	text := "```json\n[{\"date\":\"2024-06-03\",\"dureeMinutes\":45\n```"

	msg, sessions := Extract(text)
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions from truncated JSON, got %d", len(sessions))
	}
	if msg != text {
		t.Errorf("expected original text unchanged, got %q", msg)
	}
}

func TestExtract_MissingDateField(t *testing.T) {
	text := "```json\n[{\"type\":\"Endurance\",\"dureeMinutes\":45}]\n```"

	msg, sessions := Extract(text)
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions without a date field, got %d", len(sessions))
	}
	if msg != text {
		t.Errorf("expected original text unchanged, got %q", msg)
	}
}

func TestExtract_NoStructuredContent(t *testing.T) {
	text := "Rest today, you earned it. We'll plan the next block tomorrow."

	msg, sessions := Extract(text)
	if sessions != nil {
		t.Fatalf("expected nil sessions, got %v", sessions)
	}
	if msg != text {
		t.Errorf("expected original text, got %q", msg)
	}
}

func TestExtract_EmptyArray(t *testing.T) {
	text := "```json\n[]\n```"

	_, sessions := Extract(text)
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions from empty array, got %d", len(sessions))
	}
}

func TestExtract_CollapsesNewlines(t *testing.T) {
	text := "Intro.\n\n\n```json\n[{\"date\":\"2024-06-03\",\"dureeMinutes\":45}]\n```\n\n\n\nOutro."

	msg, _ := Extract(text)
	if strings.Contains(msg, "\n\n\n") {
		t.Errorf("expected collapsed newlines, got %q", msg)
	}
	if !strings.Contains(msg, "Intro.") || !strings.Contains(msg, "Outro.") {
		t.Errorf("lost prose: %q", msg)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	text := "Mixed reply\n```json\n[{\"date\":\"2024-06-03\",\"dureeMinutes\":45}]\n```\ndone"

	msg1, sessions1 := Extract(text)
	msg2, sessions2 := Extract(text)
	if msg1 != msg2 || len(sessions1) != len(sessions2) {
		t.Error("expected identical output on identical input")
	}
}

func TestConfirmationMessage(t *testing.T) {
	if got := ConfirmationMessage(1); !strings.Contains(got, "1 session ") {
		t.Errorf("unexpected singular message: %q", got)
	}
	if got := ConfirmationMessage(14); !strings.Contains(got, "14 sessions") {
		t.Errorf("unexpected plural message: %q", got)
	}
}
