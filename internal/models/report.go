package models

import (
	"encoding/json"
	"time"
)

// Report is a submitted survey report.
type Report struct {
	ID           string          `db:"id" json:"id"`
	SurveyID     string          `db:"survey_id" json:"surveyId"`
	Phone        string          `db:"phone" json:"phone"`
	LocationCode string          `db:"location_code" json:"locationCode"`
	PeriodYear   int             `db:"period_year" json:"periodYear"`
	PeriodWeek   int             `db:"period_week" json:"periodWeek"`
	Answers      json.RawMessage `db:"answers" json:"answers"`
	Comment      string          `db:"comment" json:"comment"`
	SubmittedAt  time.Time       `db:"submitted_at" json:"submittedAt"`
}

// ReportDelivery stores outgoing push attempts of a report to a downstream
// system such as Crisis Map.
type ReportDelivery struct {
	ID           int             `db:"id"`
	ReportID     string          `db:"report_id"`
	Target       string          `db:"target"`
	Payload      json.RawMessage `db:"payload"`
	SurveyID     string          `db:"survey_id"`
	Attempt      int             `db:"attempt"`
	HTTPStatus   *int            `db:"http_status"`
	ResponseBody *string         `db:"response_body"`
	IsDelivered  bool            `db:"is_delivered"`
	CreatedAt    time.Time       `db:"created_at"`
	NextRetryAt  *time.Time      `db:"next_retry_at"`
}

// DeliveryTargetCrisisMap identifies Crisis Map deliveries.
const DeliveryTargetCrisisMap = "crisismap"
