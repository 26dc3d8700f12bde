// Package conversation drives the per-phone SMS survey dialogue. Each inbound
// message is one turn: the (phone, survey) session is locked, loaded, advanced
// through the state machine, saved, and a single reply is returned.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/smsinterview/internal/formatter"
	"github.com/GTDGit/smsinterview/internal/gazetteer"
	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/internal/period"
)

// Clock supplies the current time and reporting period.
type Clock interface {
	Now() time.Time
	Current() period.Period
}

// Deps are the collaborators of an Engine. Locker, Formatter and Clock
// default to an in-process KeyedMutex, the built-in message sets and the
// wall clock in UTC.
type Deps struct {
	Sessions      SessionStore
	Registrations RegistrationStore
	Surveys       SurveySource
	Places        Resolver
	Sink          ReportSink
	Locker        Locker
	Formatter     *formatter.Formatter
	Clock         Clock
}

// Engine handles inbound messages for any number of surveys.
type Engine struct {
	sessions      SessionStore
	registrations RegistrationStore
	surveys       SurveySource
	places        Resolver
	sink          ReportSink
	locker        Locker
	format        *formatter.Formatter
	clock         Clock
}

// NewEngine creates an Engine.
func NewEngine(d Deps) *Engine {
	if d.Locker == nil {
		d.Locker = NewKeyedMutex()
	}
	if d.Formatter == nil {
		d.Formatter = formatter.New()
	}
	if d.Clock == nil {
		d.Clock = period.UTCClock()
	}
	return &Engine{
		sessions:      d.Sessions,
		registrations: d.Registrations,
		surveys:       d.Surveys,
		places:        d.Places,
		sink:          d.Sink,
		locker:        d.Locker,
		format:        d.Formatter,
		clock:         d.Clock,
	}
}

// turn carries the state of one message through the handlers.
type turn struct {
	msg     Message
	survey  *models.Survey
	session *models.Session

	// rejected is set when the input was answered with a re-prompt.
	rejected error
}

// Handle processes one message and returns the reply text. Internal failures
// are logged and answered with the survey's general error message; the
// session is then left as it was before the message. The returned error is
// non-nil only when no reply at all could be produced.
func (e *Engine) Handle(ctx context.Context, msg Message) (string, error) {
	msg.Text = strings.TrimSpace(msg.Text)

	survey, err := e.surveys.GetSurvey(ctx, msg.SurveyID)
	if err != nil {
		if errors.Is(err, ErrSurveyNotFound) {
			return e.format.Render(nil, formatter.SurveyNotFound, formatter.Data{})
		}
		log.Error().Err(err).Str("survey_id", msg.SurveyID).Msg("Failed to load survey")
		return e.format.Render(nil, formatter.GeneralError, formatter.Data{})
	}

	unlock, err := e.locker.Lock(ctx, SessionKey(msg.Phone, msg.SurveyID))
	if err != nil {
		log.Error().
			Err(err).
			Str("survey_id", msg.SurveyID).
			Str("phone", msg.Phone).
			Msg("Failed to lock session")
		return e.format.Render(survey, formatter.GeneralError, formatter.Data{})
	}
	defer unlock()

	reply, err := e.step(ctx, msg, survey)
	if err != nil {
		log.Error().
			Err(err).
			Str("survey_id", msg.SurveyID).
			Str("phone", msg.Phone).
			Msg("Failed to handle message")
		return e.format.Render(survey, formatter.GeneralError, formatter.Data{})
	}
	return reply, nil
}

func (e *Engine) step(ctx context.Context, msg Message, survey *models.Survey) (string, error) {
	session, err := e.sessions.Get(ctx, msg.Phone, msg.SurveyID)
	if errors.Is(err, ErrSessionNotFound) {
		session = models.NewSession(msg.Phone, msg.SurveyID)
	} else if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	t := &turn{msg: msg, survey: survey, session: session}
	from := session.State

	reply, err := e.dispatch(ctx, t)
	if err != nil {
		return "", err
	}

	session.UpdatedAt = e.clock.Now()
	if err := e.sessions.Put(ctx, session); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	ev := log.Debug().
		Str("survey_id", msg.SurveyID).
		Str("phone", msg.Phone).
		Str("from", string(from)).
		Str("to", string(session.State))
	if t.rejected != nil {
		ev = ev.Str("rejected", t.rejected.Error())
	}
	ev.Msg("Message handled")

	return reply, nil
}

// dispatch routes by state. While a report is in progress every message is
// report input, including text that looks like a command.
func (e *Engine) dispatch(ctx context.Context, t *turn) (string, error) {
	switch t.session.State {
	case models.StateCollectingAnswers:
		return e.onAnswers(ctx, t, stripReportKeyword(t.msg.Text))
	case models.StateConfirming:
		return e.onConfirm(ctx, t)
	case models.StateCollectingComment:
		return e.onComment(ctx, t)
	}

	cmd := parseCommand(t.msg.Text)
	if t.session.State == models.StateSelectingLocation {
		if cmd.kind == cmdRegister {
			return e.onRegister(ctx, t, cmd)
		}
		return e.onSelect(ctx, t)
	}

	switch cmd.kind {
	case cmdRegister:
		return e.onRegister(ctx, t, cmd)
	case cmdReport:
		return e.onReport(ctx, t, cmd)
	default:
		return e.render(t, formatter.Help, formatter.Data{})
	}
}

func (e *Engine) render(t *turn, name string, d formatter.Data) (string, error) {
	return e.format.Render(t.survey, name, d)
}

// onRegister replaces the phone's registrations with the codes given, clears
// them with "register clear", or reports the current ones when none of the
// arguments resolves.
func (e *Engine) onRegister(ctx context.Context, t *turn, cmd command) (string, error) {
	if len(cmd.args) == 1 && strings.EqualFold(cmd.args[0], "clear") {
		if err := e.registrations.Put(ctx, t.msg.Phone, nil); err != nil {
			return "", fmt.Errorf("clear registrations: %w", err)
		}
		if err := e.resetSession(ctx, t); err != nil {
			return "", err
		}
		return e.render(t, formatter.Registered, formatter.Data{})
	}

	var (
		codes []string
		names []string
		seen  = make(map[string]bool)
	)
	for _, arg := range cmd.args {
		loc, err := e.places.Resolve(arg)
		if errors.Is(err, gazetteer.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", arg, err)
		}
		if !t.survey.AllowsLevel(loc.Level) || seen[loc.Code] {
			continue
		}
		seen[loc.Code] = true
		codes = append(codes, loc.Code)
		names = append(names, loc.DisplayName())
	}

	if len(codes) == 0 {
		return e.registrationStatus(ctx, t)
	}

	if err := e.registrations.Put(ctx, t.msg.Phone, codes); err != nil {
		return "", fmt.Errorf("save registrations: %w", err)
	}
	if err := e.resetSession(ctx, t); err != nil {
		return "", err
	}
	return e.render(t, formatter.Registered, formatter.Data{Count: len(codes), Locations: names})
}

func (e *Engine) registrationStatus(ctx context.Context, t *turn) (string, error) {
	codes, err := e.registrations.Get(ctx, t.msg.Phone)
	if err != nil {
		return "", fmt.Errorf("load registrations: %w", err)
	}
	names := make([]string, 0, len(codes))
	for _, code := range codes {
		loc, err := e.places.Resolve(code)
		if err != nil {
			names = append(names, code)
			continue
		}
		names = append(names, loc.DisplayName())
	}
	return e.render(t, formatter.RegistrationStatus, formatter.Data{Count: len(codes), Locations: names})
}

func (e *Engine) resetSession(ctx context.Context, t *turn) error {
	if t.session.State == models.StateIdle {
		return nil
	}
	return fire(ctx, t.session, evReset)
}

// reportLocations resolves the phone's registrations usable for this survey,
// in registration order.
func (e *Engine) reportLocations(ctx context.Context, t *turn) ([]*models.Location, error) {
	codes, err := e.registrations.Get(ctx, t.msg.Phone)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	locs := make([]*models.Location, 0, len(codes))
	for _, code := range codes {
		loc, err := e.places.Resolve(code)
		if errors.Is(err, gazetteer.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", code, err)
		}
		if t.survey.AllowsLevel(loc.Level) {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

func (e *Engine) onReport(ctx context.Context, t *turn, cmd command) (string, error) {
	locs, err := e.reportLocations(ctx, t)
	if err != nil {
		return "", err
	}
	if len(locs) == 0 {
		t.rejected = ErrUnregisteredPhone
		return e.render(t, formatter.NotRegistered, formatter.Data{})
	}
	if len(t.survey.Questions) == 0 {
		return e.render(t, formatter.NoQuestions, formatter.Data{})
	}

	if len(locs) == 1 {
		t.session.Draft = models.NewReportDraft(locs[0], e.clock.Current(), len(t.survey.Questions), e.clock.Now())
		if err := fire(ctx, t.session, evStartReport); err != nil {
			return "", err
		}
		if cmd.rest != "" {
			return e.onAnswers(ctx, t, cmd.rest)
		}
		return e.render(t, formatter.AnswerPrompt, e.promptData(t))
	}

	t.session.Choices = locationCodes(locs)
	if err := fire(ctx, t.session, evStartSelection); err != nil {
		return "", err
	}
	return e.render(t, formatter.SelectLocation, formatter.Data{Choices: choices(locs)})
}

// onSelect handles a reply to the numbered location list. If the phone's
// registrations changed since the list was sent, the new list is sent
// instead of acting on a stale number.
func (e *Engine) onSelect(ctx context.Context, t *turn) (string, error) {
	locs, err := e.reportLocations(ctx, t)
	if err != nil {
		return "", err
	}
	if len(locs) == 0 {
		if err := fire(ctx, t.session, evReset); err != nil {
			return "", err
		}
		t.rejected = ErrUnregisteredPhone
		return e.render(t, formatter.NotRegistered, formatter.Data{})
	}

	if !equalCodes(t.session.Choices, locationCodes(locs)) {
		t.session.Choices = locationCodes(locs)
		return e.render(t, formatter.SelectLocation, formatter.Data{Choices: choices(locs)})
	}

	n, ok := parseSelection(t.msg.Text)
	if !ok {
		return e.render(t, formatter.SelectLocation, formatter.Data{Choices: choices(locs)})
	}
	if n < 1 || n > len(locs) {
		t.rejected = ErrSelectionOutOfRange
		return e.render(t, formatter.SelectOutOfRange, formatter.Data{Choices: choices(locs)})
	}

	t.session.Draft = models.NewReportDraft(locs[n-1], e.clock.Current(), len(t.survey.Questions), e.clock.Now())
	if err := fire(ctx, t.session, evSelectLocation); err != nil {
		return "", err
	}
	return e.render(t, formatter.AnswerPrompt, e.promptData(t))
}

func (e *Engine) onAnswers(ctx context.Context, t *turn, payload string) (string, error) {
	questions := t.survey.Questions
	answers, err := parseAnswers(questions, splitAnswers(payload, len(questions)))

	if err != nil {
		t.rejected = err
	}

	var invalid *answerError
	switch {
	case errors.As(err, &invalid):
		d := e.promptData(t)
		d.Label = invalid.question.SummaryText
		if invalid.question.ResponseType == models.ResponseNumber {
			return e.render(t, formatter.NumberRequired, d)
		}
		return e.render(t, formatter.TextRequired, d)
	case err != nil:
		return e.render(t, formatter.AnswerPrompt, e.promptData(t))
	}

	t.session.Draft.Answers = answers
	if err := fire(ctx, t.session, evAcceptAnswers); err != nil {
		return "", err
	}
	return e.render(t, formatter.Confirm, e.confirmData(t))
}

func (e *Engine) onConfirm(ctx context.Context, t *turn) (string, error) {
	switch parseConfirmation(t.msg.Text) {
	case confirmYes:
		if err := fire(ctx, t.session, evConfirm); err != nil {
			return "", err
		}
		return e.render(t, formatter.CommentPrompt, formatter.Data{})
	case confirmNo:
		t.session.Draft.ClearAnswers()
		if err := fire(ctx, t.session, evReject); err != nil {
			return "", err
		}
		return e.render(t, formatter.AnswerPrompt, e.promptData(t))
	default:
		t.rejected = ErrAmbiguousConfirmation
		return e.render(t, formatter.Confirm, e.confirmData(t))
	}
}

// onComment submits the report. A sink failure propagates so the caller
// keeps the session in COLLECTING_COMMENT and the user can resend.
func (e *Engine) onComment(ctx context.Context, t *turn) (string, error) {
	d := t.session.Draft
	comment := t.msg.Text
	d.Comment = &comment

	sub := Submission{
		Phone:        t.msg.Phone,
		SurveyID:     t.msg.SurveyID,
		LocationCode: d.LocationCode,
		Period:       d.Period,
		Answers:      append([]models.Answer(nil), d.Answers...),
		Comment:      comment,
		SubmittedAt:  e.clock.Now(),
	}
	if err := e.sink.Submit(ctx, sub); err != nil {
		return "", fmt.Errorf("submit report: %w", err)
	}

	if err := fire(ctx, t.session, evSubmit); err != nil {
		return "", err
	}
	return e.render(t, formatter.Thanks, formatter.Data{})
}

func (e *Engine) promptData(t *turn) formatter.Data {
	d := formatter.Data{Labels: t.survey.Labels()}
	if draft := t.session.Draft; draft != nil {
		d.Location = draft.LocationName
		d.Period = draft.Period
	}
	return d
}

func (e *Engine) confirmData(t *turn) formatter.Data {
	d := e.promptData(t)
	for i, q := range t.survey.Questions {
		var value string
		if i < len(t.session.Draft.Answers) {
			value = t.session.Draft.Answers[i].Display()
		}
		d.Summary = append(d.Summary, formatter.SummaryLine{Label: q.SummaryText, Value: value})
	}
	return d
}

func choices(locs []*models.Location) []formatter.Choice {
	out := make([]formatter.Choice, len(locs))
	for i, loc := range locs {
		out[i] = formatter.Choice{Number: i + 1, Name: loc.Name}
	}
	return out
}

func locationCodes(locs []*models.Location) []string {
	codes := make([]string, len(locs))
	for i, loc := range locs {
		codes[i] = loc.Code
	}
	return codes
}

func equalCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
