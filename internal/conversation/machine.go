package conversation

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/GTDGit/smsinterview/internal/models"
)

const (
	evStartReport    = "start_report"
	evStartSelection = "start_selection"
	evSelectLocation = "select_location"
	evAcceptAnswers  = "accept_answers"
	evConfirm        = "confirm"
	evReject         = "reject"
	evSubmit         = "submit"
	evReset          = "reset"
)

var (
	idle       = string(models.StateIdle)
	selecting  = string(models.StateSelectingLocation)
	collecting = string(models.StateCollectingAnswers)
	confirming = string(models.StateConfirming)
	commenting = string(models.StateCollectingComment)
)

var sessionEvents = fsm.Events{
	{Name: evStartReport, Src: []string{idle}, Dst: collecting},
	{Name: evStartSelection, Src: []string{idle}, Dst: selecting},
	{Name: evSelectLocation, Src: []string{selecting}, Dst: collecting},
	{Name: evAcceptAnswers, Src: []string{collecting}, Dst: confirming},
	{Name: evConfirm, Src: []string{confirming}, Dst: commenting},
	{Name: evReject, Src: []string{confirming}, Dst: collecting},
	{Name: evSubmit, Src: []string{commenting}, Dst: idle},
	{Name: evReset, Src: []string{selecting, collecting, confirming, commenting}, Dst: idle},
}

// fire applies a transition to the session, failing on events the current
// state does not accept.
func fire(ctx context.Context, s *models.Session, event string) error {
	m := fsm.NewFSM(string(s.State), sessionEvents, fsm.Callbacks{})
	if err := m.Event(ctx, event); err != nil {
		return fmt.Errorf("session transition %s from %s: %w", event, s.State, err)
	}
	s.State = models.SessionState(m.Current())
	s.LockedForReport = isLocked(s.State)
	if s.State == models.StateIdle {
		s.Reset()
	}
	return nil
}

// isLocked reports whether all input is consumed by the report flow.
func isLocked(state models.SessionState) bool {
	switch state {
	case models.StateCollectingAnswers, models.StateConfirming, models.StateCollectingComment:
		return true
	}
	return false
}
