package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/pkg/crisismap"
)

// ReportStore persists a report with its delivery outbox rows; see
// repository.ReportRepository.
type ReportStore interface {
	Create(ctx context.Context, report *models.Report, deliveries []models.ReportDelivery) error
}

// ReportAnswer is one stored answer of a report.
type ReportAnswer struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// ReportService is the conversation.ReportSink backed by PostgreSQL. Reports
// of surveys linked to Crisis Map also get a delivery queued for the
// delivery worker.
type ReportService struct {
	reports   ReportStore
	surveys   conversation.SurveySource
	places    conversation.Resolver
	sourceURL string
	now       func() time.Time
}

// NewReportService creates a ReportService. sourceURL identifies this
// deployment in pushed reports.
func NewReportService(reports ReportStore, surveys conversation.SurveySource, places conversation.Resolver, sourceURL string) *ReportService {
	return &ReportService{
		reports:   reports,
		surveys:   surveys,
		places:    places,
		sourceURL: strings.TrimRight(sourceURL, "/"),
		now:       time.Now,
	}
}

// Submit stores the report. A nil return is the acknowledgement the
// conversation waits for.
func (s *ReportService) Submit(ctx context.Context, sub conversation.Submission) error {
	survey, err := s.surveys.GetSurvey(ctx, sub.SurveyID)
	if err != nil {
		return fmt.Errorf("load survey: %w", err)
	}

	answers, err := json.Marshal(reportAnswers(survey, sub.Answers))
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	report := &models.Report{
		ID:           uuid.NewString(),
		SurveyID:     sub.SurveyID,
		Phone:        sub.Phone,
		LocationCode: sub.LocationCode,
		PeriodYear:   sub.Period.Year,
		PeriodWeek:   sub.Period.Week,
		Answers:      answers,
		Comment:      sub.Comment,
		SubmittedAt:  sub.SubmittedAt,
	}

	var deliveries []models.ReportDelivery
	if survey.HasCrisisMap() {
		payload, err := crisismap.EncodeReports(s.crisisMapReport(survey, report, sub))
		if err != nil {
			return err
		}
		due := s.now()
		deliveries = append(deliveries, models.ReportDelivery{
			Target:      models.DeliveryTargetCrisisMap,
			Payload:     payload,
			SurveyID:    survey.ID,
			NextRetryAt: &due,
		})
	}

	if err := s.reports.Create(ctx, report, deliveries); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	log.Info().
		Str("report_id", report.ID).
		Str("survey_id", report.SurveyID).
		Str("phone", report.Phone).
		Str("location", report.LocationCode).
		Str("period", sub.Period.String()).
		Int("deliveries", len(deliveries)).
		Msg("Report submitted")
	return nil
}

func questionKey(q models.Question, i int) string {
	if q.ExternalKey != "" {
		return q.ExternalKey
	}
	return "q" + strconv.Itoa(i+1)
}

func reportAnswers(survey *models.Survey, answers []models.Answer) []ReportAnswer {
	out := make([]ReportAnswer, 0, len(answers))
	for i, a := range answers {
		ra := ReportAnswer{Kind: string(a.Kind), Value: a.Value()}
		if i < len(survey.Questions) {
			ra.Key = questionKey(survey.Questions[i], i)
			ra.Label = survey.Questions[i].SummaryText
		}
		out = append(out, ra)
	}
	return out
}

// crisisMapReport maps a report onto the Crisis Map reports API. The
// effective time is the start of the reported epi week.
func (s *ReportService) crisisMapReport(survey *models.Survey, report *models.Report, sub conversation.Submission) crisismap.Report {
	mapID, topicID := *survey.MapID, *survey.TopicID

	cm := crisismap.Report{
		Source:    s.sourceURL,
		Author:    "tel:" + sub.Phone,
		ID:        s.sourceURL + "/reports/" + report.ID,
		MapID:     mapID,
		TopicIDs:  []string{crisismap.TopicID(mapID, topicID)},
		Submitted: unixSeconds(sub.SubmittedAt),
		Effective: unixSeconds(sub.Period.Start(sub.SubmittedAt.Location())),
		PlaceID:   sub.LocationCode,
		Answers:   make(map[string]any, len(sub.Answers)),
	}

	if loc, err := s.places.Resolve(sub.LocationCode); err == nil && loc.Lat != nil && loc.Lng != nil {
		cm.Location = []float64{*loc.Lat, *loc.Lng}
	}

	for i, a := range sub.Answers {
		if i >= len(survey.Questions) {
			break
		}
		cm.Answers[crisismap.AnswerKey(mapID, topicID, questionKey(survey.Questions[i], i))] = a.Value()
	}
	return cm
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
