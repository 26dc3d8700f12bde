package models

import (
	"strconv"
	"time"

	"github.com/GTDGit/smsinterview/internal/period"
)

// SessionState is the conversation state of one (phone, survey) pair.
type SessionState string

const (
	StateIdle              SessionState = "IDLE"
	StateSelectingLocation SessionState = "SELECTING_LOCATION"
	StateCollectingAnswers SessionState = "COLLECTING_ANSWERS"
	StateConfirming        SessionState = "CONFIRMING"
	StateCollectingComment SessionState = "COLLECTING_COMMENT"
)

// AnswerKind tells which field of an Answer is meaningful.
type AnswerKind string

const (
	AnswerUnset   AnswerKind = ""
	AnswerNumber  AnswerKind = "number"
	AnswerUnknown AnswerKind = "unknown"
	AnswerText    AnswerKind = "text"
)

// Answer is a single validated response.
type Answer struct {
	Kind   AnswerKind `json:"kind,omitempty"`
	Number float64    `json:"number,omitempty"`
	Text   string     `json:"text,omitempty"`
}

// Display renders the answer for confirmation summaries.
func (a Answer) Display() string {
	switch a.Kind {
	case AnswerNumber:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case AnswerUnknown:
		return "unknown"
	case AnswerText:
		return a.Text
	default:
		return ""
	}
}

// Value is the answer as submitted downstream: a number, the text, or nil
// for unknown/unset.
func (a Answer) Value() any {
	switch a.Kind {
	case AnswerNumber:
		return a.Number
	case AnswerText:
		return a.Text
	default:
		return nil
	}
}

// ReportDraft is an in-progress report for one location and period.
type ReportDraft struct {
	LocationCode string        `json:"locationCode"`
	LocationName string        `json:"locationName"`
	Period       period.Period `json:"period"`
	Answers      []Answer      `json:"answers"`
	Comment      *string       `json:"comment,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
}

// NewReportDraft creates a draft with one unset answer per question.
func NewReportDraft(loc *Location, p period.Period, questions int, now time.Time) *ReportDraft {
	return &ReportDraft{
		LocationCode: loc.Code,
		LocationName: loc.Name,
		Period:       p,
		Answers:      make([]Answer, questions),
		StartedAt:    now,
	}
}

// ClearAnswers resets every answer to unset, keeping location and period.
func (d *ReportDraft) ClearAnswers() {
	for i := range d.Answers {
		d.Answers[i] = Answer{}
	}
	d.Comment = nil
}

// Session is the persisted conversation state for a (phone, survey) pair.
type Session struct {
	Phone           string       `json:"phone"`
	SurveyID        string       `json:"surveyId"`
	State           SessionState `json:"state"`
	Draft           *ReportDraft `json:"draft,omitempty"`
	LockedForReport bool         `json:"lockedForReport"`

	// Choices is the location list last enumerated while selecting.
	Choices []string `json:"choices,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession returns an idle session.
func NewSession(phone, surveyID string) *Session {
	return &Session{Phone: phone, SurveyID: surveyID, State: StateIdle}
}

// Reset returns the session to IDLE and drops any draft and selection.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Draft = nil
	s.Choices = nil
	s.LockedForReport = false
}
