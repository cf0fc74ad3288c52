package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/demosglok/symptomsbot/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 7 {
		t.Fatalf("expected 7 built-in questions, got %d", c.Len())
	}

	first := c.QuestionAt(0)
	if first == nil || first.FieldName != "fever" {
		t.Errorf("expected first question to be fever, got %+v", first)
	}
	if first.Kind != models.AnswerKindTriState {
		t.Errorf("expected fever to be tri-state, got %q", first.Kind)
	}

	last := c.QuestionAt(c.Len() - 1)
	if last == nil || last.FieldName != "city" {
		t.Errorf("expected last question to be city, got %+v", last)
	}
	if last.Kind != models.AnswerKindFreeText {
		t.Errorf("expected city to be free-text, got %q", last.Kind)
	}
}

func TestQuestionAtOutOfRange(t *testing.T) {
	c := Default()
	if q := c.QuestionAt(-1); q != nil {
		t.Errorf("expected nil for negative index, got %+v", q)
	}
	if q := c.QuestionAt(c.Len()); q != nil {
		t.Errorf("expected nil past the end, got %+v", q)
	}
}

func TestFieldNamesOrder(t *testing.T) {
	c := New([]models.Question{
		{FieldName: "a", Text: "A?", Kind: models.AnswerKindTriState},
		{FieldName: "b", Text: "B?", Kind: models.AnswerKindFreeText},
	})
	names := c.FieldNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected field names: %v", names)
	}
}

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeCatalogFile(t, `[
		{"fieldname": "headache", "text": "Do you have a headache?"},
		{"fieldname": "city", "text": "What city do you live in?", "kind": "freetext"}
	]`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 questions, got %d", c.Len())
	}
	if q := c.QuestionAt(0); q.Kind != models.AnswerKindTriState {
		t.Errorf("expected missing kind to default to tri-state, got %q", q.Kind)
	}
	if q := c.QuestionAt(1); q.Kind != models.AnswerKindFreeText {
		t.Errorf("expected second question to be free-text, got %q", q.Kind)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != Default().Len() {
		t.Errorf("expected default catalog, got %d questions", c.Len())
	}
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	path := writeCatalogFile(t, `[]`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for empty catalog")
	}
}

func TestLoadRejectsDuplicateFieldNames(t *testing.T) {
	path := writeCatalogFile(t, `[
		{"fieldname": "fever", "text": "A?"},
		{"fieldname": "fever", "text": "B?"}
	]`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for duplicate fieldname")
	}
}

func TestLoadRejectsMissingFieldName(t *testing.T) {
	path := writeCatalogFile(t, `[{"text": "A?"}]`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for empty fieldname")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
