package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/gazetteer"
	"github.com/GTDGit/smsinterview/internal/period"
	"github.com/GTDGit/smsinterview/internal/surveyfile"
)

type chatOptions struct {
	surveysFile   string
	locationsFile string
	surveyID      string
	phone         string
	timezone      string
	date          string
}

var chatOpts chatOptions

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to a survey from the terminal, one line per SMS",
	Long: `chat runs the conversation engine in memory. Each input line is one
inbound SMS; the reply is printed below it. Submitted reports are printed as
JSON instead of being stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), chatOpts, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	f := chatCmd.Flags()
	f.StringVar(&chatOpts.surveysFile, "surveys", "data/surveys.yaml", "survey definitions")
	f.StringVar(&chatOpts.locationsFile, "locations", "data/locations.json", "nested location file")
	f.StringVar(&chatOpts.surveyID, "survey", "", "survey id (default: the only survey in the file)")
	f.StringVar(&chatOpts.phone, "phone", "+10000000000", "sender phone number")
	f.StringVar(&chatOpts.timezone, "tz", "Africa/Lagos", "reporting time zone")
	f.StringVar(&chatOpts.date, "date", "", "pretend today is this date (YYYY-MM-DD)")
}

// printSink acknowledges every submission by printing it.
type printSink struct {
	out io.Writer
}

func (s printSink) Submit(_ context.Context, sub conversation.Submission) error {
	answers := make([]any, len(sub.Answers))
	for i, a := range sub.Answers {
		answers[i] = a.Value()
	}
	data, err := json.Marshal(map[string]any{
		"survey":   sub.SurveyID,
		"phone":    sub.Phone,
		"location": sub.LocationCode,
		"period":   sub.Period.String(),
		"answers":  answers,
		"comment":  sub.Comment,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "[submitted] %s\n", data)
	return err
}

func chatClock(opts chatOptions) (conversation.Clock, error) {
	if opts.date == "" {
		return period.NewClock(opts.timezone)
	}
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", opts.timezone, err)
	}
	day, err := time.ParseInLocation("2006-01-02", opts.date, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid --date: %w", err)
	}
	return period.FixedClock(day.Add(12 * time.Hour)), nil
}

func runChat(ctx context.Context, opts chatOptions, in io.Reader, out io.Writer) error {
	surveys, err := surveyfile.Load(opts.surveysFile)
	if err != nil {
		return err
	}
	static := make(conversation.StaticSurveys, len(surveys))
	for i := range surveys {
		static[surveys[i].ID] = &surveys[i]
	}

	surveyID := opts.surveyID
	if surveyID == "" {
		if len(surveys) != 1 {
			return errors.New("--survey is required when the file has more than one survey")
		}
		surveyID = surveys[0].ID
	}

	f, err := os.Open(opts.locationsFile)
	if err != nil {
		return err
	}
	locations, err := gazetteer.LoadTree(f)
	f.Close()
	if err != nil {
		return err
	}

	clock, err := chatClock(opts)
	if err != nil {
		return err
	}

	engine := conversation.NewEngine(conversation.Deps{
		Sessions:      conversation.NewMemorySessionStore(),
		Registrations: conversation.NewMemoryRegistrationStore(),
		Surveys:       static,
		Places:        gazetteer.New(locations),
		Sink:          printSink{out: out},
		Clock:         clock,
	})

	fmt.Fprintf(out, "Survey %s, phone %s, epi week %s. End with Ctrl-D.\n", surveyID, opts.phone, clock.Current())
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		reply, err := engine.Handle(ctx, conversation.Message{
			Phone:    opts.phone,
			SurveyID: surveyID,
			Text:     text,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
	}
}
