// Package catalog provides the fixed, ordered list of survey questions.
//
// The catalog is loaded once at process start and never mutated; question
// order defines survey progression.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/demosglok/symptomsbot/internal/models"
)

// Catalog is an ordered, immutable sequence of survey questions.
type Catalog struct {
	questions []models.Question
}

// defaultQuestions is the built-in daily symptom questionnaire. All
// questions are tri-state except the final free-text city question.
var defaultQuestions = []models.Question{
	{FieldName: "fever", Text: "Do you have a fever, chills, sweating in latest 48 hours", Kind: models.AnswerKindTriState},
	{FieldName: "temperature", Text: "Do you have temperature above 37 degrees Celsius?", Kind: models.AnswerKindTriState},
	{FieldName: "cough", Text: "Do you have a cough or increase in your usual cough?", Kind: models.AnswerKindTriState},
	{FieldName: "smell", Text: "Have you noticed a sharp decrease or loss in your taste or smell?", Kind: models.AnswerKindTriState},
	{FieldName: "tired", Text: "Have you been unusually tired?\nDoes this fatigue force you to rest for more than half the day?", Kind: models.AnswerKindTriState},
	{FieldName: "breath", Text: "Have you noticed an UNUSUAL shortness of breath when speaking or making a small effort?", Kind: models.AnswerKindTriState},
	{FieldName: "city", Text: "What city do you live in?", Kind: models.AnswerKindFreeText},
}

// New builds a catalog from an explicit question list.
func New(questions []models.Question) *Catalog {
	return &Catalog{questions: questions}
}

// Default returns the built-in question catalog.
func Default() *Catalog {
	return New(defaultQuestions)
}

// Load reads a question catalog from a JSON file. An empty path returns
// the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		slog.Debug("catalog.Load: no catalog path provided, using default questions", "count", len(defaultQuestions))
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("catalog.Load: failed to read catalog file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var questions []models.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		slog.Error("catalog.Load: failed to parse catalog file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no questions", path)
	}

	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if q.FieldName == "" {
			return nil, fmt.Errorf("catalog question %d has empty fieldname", i)
		}
		if seen[q.FieldName] {
			return nil, fmt.Errorf("catalog question %d duplicates fieldname %q", i, q.FieldName)
		}
		seen[q.FieldName] = true
		if q.Kind == "" {
			questions[i].Kind = models.AnswerKindTriState
		}
	}

	slog.Info("catalog.Load: loaded question catalog", "path", path, "count", len(questions))
	return &Catalog{questions: questions}, nil
}

// QuestionAt returns the question at the given index, or nil if the index
// is out of range.
func (c *Catalog) QuestionAt(index int) *models.Question {
	if index < 0 || index >= len(c.questions) {
		return nil
	}
	q := c.questions[index]
	return &q
}

// Len returns the number of questions in the catalog.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// FieldNames returns the ordered field names of all questions.
func (c *Catalog) FieldNames() []string {
	names := make([]string, len(c.questions))
	for i, q := range c.questions {
		names[i] = q.FieldName
	}
	return names
}
