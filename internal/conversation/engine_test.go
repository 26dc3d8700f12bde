package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/smsinterview/internal/gazetteer"
	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/internal/period"
)

const (
	phone     = "+2348012345678"
	diseaseID = "disease"
)

const achidaPrompt = "[MSF]: Please enter the following data for ACHIDA in epi week 25:\n" +
	"Measles cases,\nMeasles deaths,\nMeningitis cases,\nMeningitis deaths,\nGE cases,\nGE deaths"

type recordingSink struct {
	mu   sync.Mutex
	subs []Submission
	err  error
}

func (s *recordingSink) Submit(_ context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *recordingSink) submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.subs...)
}

type harness struct {
	engine        *Engine
	sessions      *MemorySessionStore
	registrations *MemoryRegistrationStore
	sink          *recordingSink
}

func strPtr(s string) *string { return &s }

func testLocations() []models.Location {
	return []models.Location{
		{Code: "so", Name: "SOKOTO", Level: "state"},
		{Code: "so.22", Name: "WURNO", Level: "district", ParentCode: strPtr("so")},
		{Code: "so.22.8", Name: "ACHIDA", Level: "ward", ParentCode: strPtr("so.22")},
		{Code: "so.22.3", Name: "DINAWA", Level: "ward", ParentCode: strPtr("so.22")},
		{Code: "kb", Name: "KEBBI", Level: "state"},
		{Code: "kb.1", Name: "ALIERO", Level: "district", ParentCode: strPtr("kb")},
		{Code: "kb.1.5", Name: "DANWARAI", Level: "ward", ParentCode: strPtr("kb.1")},
	}
}

func numberQuestion(label string) models.Question {
	return models.Question{Text: label, SummaryText: label, ResponseType: models.ResponseNumber}
}

func testSurveys() StaticSurveys {
	return StaticSurveys{
		diseaseID: {
			ID:     diseaseID,
			Name:   "Weekly disease report",
			Tag:    "MSF",
			Active: true,
			Questions: []models.Question{
				numberQuestion("Measles cases"),
				numberQuestion("Measles deaths"),
				numberQuestion("Meningitis cases"),
				numberQuestion("Meningitis deaths"),
				numberQuestion("GE cases"),
				numberQuestion("GE deaths"),
			},
		},
		"names": {
			ID:     "names",
			Name:   "Names",
			Active: true,
			Questions: []models.Question{
				{Text: "What is your name?", SummaryText: "Name", ResponseType: models.ResponseText},
			},
		},
		"wards": {
			ID:             "wards",
			Name:           "Ward survey",
			Active:         true,
			Questions:      []models.Question{numberQuestion("Cases")},
			LocationLevels: []string{"ward"},
		},
		"empty": {ID: "empty", Name: "Empty", Active: true},
		"retired": {
			ID:        "retired",
			Name:      "Retired",
			Questions: []models.Question{numberQuestion("Cases")},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions:      NewMemorySessionStore(),
		registrations: NewMemoryRegistrationStore(),
		sink:          &recordingSink{},
	}
	h.engine = NewEngine(Deps{
		Sessions:      h.sessions,
		Registrations: h.registrations,
		Surveys:       testSurveys(),
		Places:        gazetteer.New(testLocations()),
		Sink:          h.sink,
		Clock:         period.FixedClock(time.Date(2014, 6, 18, 12, 0, 0, 0, time.UTC)),
	})
	return h
}

func (h *harness) send(t *testing.T, text string) string {
	t.Helper()
	return h.sendTo(t, diseaseID, phone, text)
}

func (h *harness) sendTo(t *testing.T, surveyID, from, text string) string {
	t.Helper()
	reply, err := h.engine.Handle(context.Background(), Message{Phone: from, SurveyID: surveyID, Text: text})
	require.NoError(t, err)
	return reply
}

func (h *harness) state(t *testing.T, surveyID string) models.SessionState {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), phone, surveyID)
	require.NoError(t, err)
	return s.State
}

func TestFullReportFlow(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "You are now registered for 1 location: Ward: ACHIDA, WURNO, SOKOTO", h.send(t, "register so.22.8"))
	assert.Equal(t, achidaPrompt, h.send(t, "report"))
	assert.Equal(t, models.StateCollectingAnswers, h.state(t, diseaseID))

	assert.Equal(t, "Submit this report for ACHIDA, epi week 25?\n"+
		"Measles cases: 1\nMeasles deaths: 2\nMeningitis cases: 3\nMeningitis deaths: 4\nGE cases: 5\nGE deaths: 6\n"+
		"Reply YES to submit or NO to re-enter the data.", h.send(t, "1,2,3,4,5,6"))
	assert.Equal(t, models.StateConfirming, h.state(t, diseaseID))

	assert.Equal(t, "Any other comments to add?", h.send(t, "yes"))
	assert.Equal(t, models.StateCollectingComment, h.state(t, diseaseID))

	assert.Equal(t, "Your report has been submitted. Thank you!", h.send(t, "no comment"))

	s, err := h.sessions.Get(context.Background(), phone, diseaseID)
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, s.State)
	assert.Nil(t, s.Draft)
	assert.False(t, s.LockedForReport)

	subs := h.sink.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "so.22.8", subs[0].LocationCode)
	assert.Equal(t, period.Period{Year: 2014, Week: 25}, subs[0].Period)
	assert.Equal(t, "no comment", subs[0].Comment)
	require.Len(t, subs[0].Answers, 6)
	assert.Equal(t, float64(4), subs[0].Answers[3].Number)
}

func TestRegisterReplacesPreviousSet(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t,
		"You are now registered for 2 locations: Ward: ACHIDA, WURNO, SOKOTO; Ward: DANWARAI, ALIERO, KEBBI",
		h.send(t, "register so.22.8 bogus KB.1.5 so.22.8"))
	h.send(t, "register kb.1.5")

	assert.Equal(t, "You are currently registered for 1 location: Ward: DANWARAI, ALIERO, KEBBI", h.send(t, "register"))
	assert.Equal(t, "You are currently registered for 1 location: Ward: DANWARAI, ALIERO, KEBBI", h.send(t, "register nowhere"))
}

func TestRegisterClear(t *testing.T) {
	h := newHarness(t)

	h.send(t, "register so.22.8")
	assert.Equal(t, "You are now registered for 0 locations.", h.send(t, "register clear"))
	assert.Equal(t, "You are currently registered for 0 locations.", h.send(t, "register"))
	assert.Equal(t,
		`This phone number has not yet been registered - text the "register" command to sign up.`,
		h.send(t, "report"))
}

func TestRegisterRespectsSurveyLevels(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "You are currently registered for 0 locations.", h.sendTo(t, "wards", phone, "register so"))
	assert.Equal(t, "You are now registered for 1 location: Ward: ACHIDA, WURNO, SOKOTO",
		h.sendTo(t, "wards", phone, "register so so.22.8"))
}

func TestReportUnregistered(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t,
		`This phone number has not yet been registered - text the "register" command to sign up.`,
		h.send(t, "report"))
	assert.Equal(t, models.StateIdle, h.state(t, diseaseID))
}

func TestLocationSelection(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8 kb.1.5")

	list := "Which location are you reporting for? Reply with a number: 1: ACHIDA, 2: DANWARAI"
	assert.Equal(t, list, h.send(t, "report"))
	assert.Equal(t, models.StateSelectingLocation, h.state(t, diseaseID))

	assert.Equal(t, "Please reply with a number in this list. "+list, h.send(t, "9"))
	assert.Equal(t, list, h.send(t, "report"))
	assert.Equal(t, list, h.send(t, "which one?"))
	assert.Equal(t, models.StateSelectingLocation, h.state(t, diseaseID))

	assert.Equal(t, strings.Replace(achidaPrompt, "ACHIDA", "DANWARAI", 1), h.send(t, "2."))
	assert.Equal(t, models.StateCollectingAnswers, h.state(t, diseaseID))
}

func TestSelectionRefreshesChangedRegistrations(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8 kb.1.5")
	h.send(t, "report")

	require.NoError(t, h.registrations.Put(context.Background(), phone, []string{"kb.1.5"}))

	assert.Equal(t, "Which location are you reporting for? Reply with a number: 1: DANWARAI", h.send(t, "1"))
	assert.Equal(t, models.StateSelectingLocation, h.state(t, diseaseID))
	assert.Contains(t, h.send(t, "1"), "data for DANWARAI")
}

func TestRegisterWhileSelectingRestarts(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8 kb.1.5")
	h.send(t, "report")

	assert.Equal(t, "You are now registered for 1 location: Ward: ACHIDA, WURNO, SOKOTO", h.send(t, "register so.22.8"))
	assert.Equal(t, models.StateIdle, h.state(t, diseaseID))
}

func TestAnswerValidation(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8")
	h.send(t, "report")

	assert.Equal(t, "Error: numeric input required for Meningitis deaths.\n"+achidaPrompt, h.send(t, "1,2,3,x,5,6"))
	assert.Equal(t, models.StateCollectingAnswers, h.state(t, diseaseID))

	assert.Equal(t, achidaPrompt, h.send(t, "1,2,3"))
	assert.Equal(t, models.StateCollectingAnswers, h.state(t, diseaseID))

	reply := h.send(t, "report 0, u, 3.5, 4 ,5,6")
	assert.Contains(t, reply, "Measles deaths: unknown\n")
	assert.Contains(t, reply, "Meningitis cases: 3.5\n")
	assert.Equal(t, models.StateConfirming, h.state(t, diseaseID))
}

func TestReportWithInlineAnswers(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8")

	assert.True(t, strings.HasPrefix(h.send(t, "REPORT 1,2,3,4,5,6"), "Submit this report for ACHIDA, epi week 25?"))
	assert.Equal(t, models.StateConfirming, h.state(t, diseaseID))
}

func TestConfirmation(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8")
	h.send(t, "report")
	confirm := h.send(t, "1,2,3,4,5,6")

	assert.Equal(t, confirm, h.send(t, "maybe"))
	assert.Equal(t, confirm, h.send(t, "register kb.1.5"))
	assert.Equal(t, models.StateConfirming, h.state(t, diseaseID))

	assert.Equal(t, achidaPrompt, h.send(t, "No, wrong"))
	s, err := h.sessions.Get(context.Background(), phone, diseaseID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCollectingAnswers, s.State)
	for _, a := range s.Draft.Answers {
		assert.Equal(t, models.AnswerUnset, a.Kind)
	}

	h.send(t, "6,5,4,3,2,1")
	assert.Equal(t, "Any other comments to add?", h.send(t, "Y!"))
}

func TestCommentCapturesCommands(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8")
	h.send(t, "report 1,2,3,4,5,6")
	h.send(t, "yes")

	assert.Equal(t, "Your report has been submitted. Thank you!", h.send(t, "register kb.1.5"))

	subs := h.sink.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "register kb.1.5", subs[0].Comment)

	codes, err := h.registrations.Get(context.Background(), phone)
	require.NoError(t, err)
	assert.Equal(t, []string{"so.22.8"}, codes)
}

func TestSinkFailureKeepsDraft(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8")
	h.send(t, "report 1,2,3,4,5,6")
	h.send(t, "yes")

	h.sink.err = errors.New("database unavailable")
	assert.Equal(t, "Sorry, there was a problem with the system. Please try again.", h.send(t, "all good"))
	assert.Equal(t, models.StateCollectingComment, h.state(t, diseaseID))

	h.sink.err = nil
	assert.Equal(t, "Your report has been submitted. Thank you!", h.send(t, "all good"))
	assert.Len(t, h.sink.submissions(), 1)
}

func TestTextSurveyTakesWholePayload(t *testing.T) {
	h := newHarness(t)
	h.sendTo(t, "names", phone, "register so.22.8")
	h.sendTo(t, "names", phone, "report")

	assert.Equal(t, "Error: a response is required for Name.\nPlease enter the following data for ACHIDA in epi week 25:\nName",
		h.sendTo(t, "names", phone, ""))
	assert.Contains(t, h.sendTo(t, "names", phone, "Smith, Jr"), "Name: Smith, Jr\n")
}

func TestSurveysAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8")
	h.send(t, "report")

	reply := h.sendTo(t, "names", phone, "report")
	assert.Contains(t, reply, "Name")
	assert.Equal(t, models.StateCollectingAnswers, h.state(t, diseaseID))
	assert.Equal(t, models.StateCollectingAnswers, h.state(t, "names"))
}

func TestMiscReplies(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "No survey found for this phone number.", h.sendTo(t, "nope", phone, "report"))
	assert.Equal(t, "No survey found for this phone number.", h.sendTo(t, "retired", phone, "report"))
	assert.Equal(t, `Text "register" followed by your location code to sign up, or "report" to send a report.`, h.send(t, "hello"))

	h.sendTo(t, "empty", phone, "register so.22.8")
	assert.Equal(t, "This survey has no questions to report.", h.sendTo(t, "empty", phone, "report"))
	assert.Equal(t, models.StateIdle, h.state(t, "empty"))
}

func TestConcurrentPhonesDoNotInterfere(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := fmt.Sprintf("+23480000000%02d", i)
			ctx := context.Background()
			for _, text := range []string{"register so.22.8", "report", "1,2,3,4,5,6", "yes", "ok"} {
				_, err := h.engine.Handle(ctx, Message{Phone: from, SurveyID: diseaseID, Text: text})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, h.sink.submissions(), 20)
}

func TestConcurrentMessagesSamePhoneAreSerialized(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8")
	h.send(t, "report")

	// Both answers race; exactly one is accepted as answers and the other is
	// then handled as an ambiguous confirmation.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Handle(context.Background(), Message{Phone: phone, SurveyID: diseaseID, Text: "1,2,3,4,5,6"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, models.StateConfirming, h.state(t, diseaseID))
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, string) (func(), error) { return nil, l.err }

func TestLockFailureRepliesWithGeneralError(t *testing.T) {
	h := newHarness(t)
	h.send(t, "register so.22.8")

	h.engine.locker = failingLocker{err: errors.New("dial tcp redis:6379: connection refused")}
	reply, err := h.engine.Handle(context.Background(), Message{Phone: phone, SurveyID: diseaseID, Text: "report"})
	require.NoError(t, err)
	assert.Equal(t, "Sorry, there was a problem with the system. Please try again.", reply)
	assert.Equal(t, models.StateIdle, h.state(t, diseaseID))
}

func TestDefaultClockIsLive(t *testing.T) {
	e := NewEngine(Deps{})
	assert.WithinDuration(t, time.Now(), e.clock.Now(), time.Minute)
	assert.Equal(t, period.EpiWeek(time.Now().UTC()), e.clock.Current())
}

func TestRejectedInputIsTagged(t *testing.T) {
	h := newHarness(t)
	survey, err := testSurveys().GetSurvey(context.Background(), diseaseID)
	require.NoError(t, err)

	dispatch := func(text string) *turn {
		t.Helper()
		s, err := h.sessions.Get(context.Background(), phone, diseaseID)
		if errors.Is(err, ErrSessionNotFound) {
			s = models.NewSession(phone, diseaseID)
		} else {
			require.NoError(t, err)
		}
		tr := &turn{msg: Message{Phone: phone, SurveyID: diseaseID, Text: text}, survey: survey, session: s}
		_, err = h.engine.dispatch(context.Background(), tr)
		require.NoError(t, err)
		require.NoError(t, h.sessions.Put(context.Background(), s))
		return tr
	}

	assert.ErrorIs(t, dispatch("report").rejected, ErrUnregisteredPhone)

	h.send(t, "register so.22.8 kb.1.5")
	assert.NoError(t, dispatch("report").rejected)
	assert.ErrorIs(t, dispatch("7").rejected, ErrSelectionOutOfRange)
	assert.NoError(t, dispatch("1").rejected)
	assert.ErrorIs(t, dispatch("1,2").rejected, ErrAnswerCountMismatch)
	assert.ErrorIs(t, dispatch("1,2,x,4,5,6").rejected, ErrAnswerType)
	assert.NoError(t, dispatch("1,2,3,4,5,6").rejected)
	assert.ErrorIs(t, dispatch("maybe").rejected, ErrAmbiguousConfirmation)
}
