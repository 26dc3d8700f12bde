package conversation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/GTDGit/smsinterview/internal/models"
)

// answerError names the first question whose answer failed validation.
type answerError struct {
	index    int
	question models.Question
}

func (e *answerError) Error() string {
	return fmt.Sprintf("invalid answer for %q", e.question.SummaryText)
}

func (e *answerError) Unwrap() error { return ErrAnswerType }

// splitAnswers splits a comma-separated payload into trimmed tokens. A
// single-question survey takes the whole payload as its one answer.
func splitAnswers(payload string, questions int) []string {
	if questions == 1 {
		return []string{strings.TrimSpace(payload)}
	}
	parts := strings.Split(payload, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseAnswers validates tokens positionally against the questions and stops
// at the first failure.
func parseAnswers(questions []models.Question, tokens []string) ([]models.Answer, error) {
	if len(tokens) != len(questions) {
		return nil, ErrAnswerCountMismatch
	}

	answers := make([]models.Answer, len(questions))
	for i, q := range questions {
		a, ok := parseAnswer(q, tokens[i])
		if !ok {
			return nil, &answerError{index: i, question: q}
		}
		answers[i] = a
	}
	return answers, nil
}

func parseAnswer(q models.Question, token string) (models.Answer, bool) {
	switch q.ResponseType {
	case models.ResponseNumber:
		if strings.EqualFold(token, "u") {
			return models.Answer{Kind: models.AnswerUnknown}, true
		}
		n, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return models.Answer{}, false
		}
		return models.Answer{Kind: models.AnswerNumber, Number: n}, true
	default:
		if token == "" {
			return models.Answer{}, false
		}
		return models.Answer{Kind: models.AnswerText, Text: token}, true
	}
}
