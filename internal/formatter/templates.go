package formatter

// Template names.
const (
	Registered         = "registered"
	RegistrationStatus = "registrationStatus"
	NotRegistered      = "notRegistered"
	SelectLocation     = "selectLocation"
	SelectOutOfRange   = "selectOutOfRange"
	AnswerPrompt       = "answerPrompt"
	NumberRequired     = "numberRequired"
	TextRequired       = "textRequired"
	Confirm            = "confirm"
	CommentPrompt      = "commentPrompt"
	Thanks             = "thanks"
	NoQuestions        = "noQuestions"
	Help               = "help"
	GeneralError       = "generalError"
	SurveyNotFound     = "surveyNotFound"
)

// DefaultSet is used when a survey does not name a message set.
const DefaultSet = "default"

var builtinSets = map[string]map[string]string{
	DefaultSet: {
		Registered:         `You are now registered for {{plural .Count "location" "locations"}}{{if .Locations}}: {{join .Locations "; "}}{{else}}.{{end}}`,
		RegistrationStatus: `You are currently registered for {{plural .Count "location" "locations"}}{{if .Locations}}: {{join .Locations "; "}}{{else}}.{{end}}`,
		NotRegistered:      `This phone number has not yet been registered - text the "register" command to sign up.`,
		SelectLocation:     `Which location are you reporting for? Reply with a number: {{range $i, $c := .Choices}}{{if $i}}, {{end}}{{$c.Number}}: {{$c.Name}}{{end}}`,
		SelectOutOfRange:   `Please reply with a number in this list. {{template "selectLocation" .}}`,
		AnswerPrompt: `{{if .Tag}}[{{.Tag}}]: {{end}}Please enter the following data for {{.Location}} in epi week {{.Period.Week}}:
{{join .Labels ",\n"}}`,
		NumberRequired: `Error: numeric input required for {{.Label}}.
{{template "answerPrompt" .}}`,
		TextRequired: `Error: a response is required for {{.Label}}.
{{template "answerPrompt" .}}`,
		Confirm: `Submit this report for {{.Location}}, epi week {{.Period.Week}}?
{{range .Summary}}{{.Label}}: {{.Value}}
{{end}}Reply YES to submit or NO to re-enter the data.`,
		CommentPrompt:  `Any other comments to add?`,
		Thanks:         `Your report has been submitted. Thank you!`,
		NoQuestions:    `This survey has no questions to report.`,
		Help:           `Text "register" followed by your location code to sign up, or "report" to send a report.`,
		GeneralError:   `Sorry, there was a problem with the system. Please try again.`,
		SurveyNotFound: `No survey found for this phone number.`,
	},
	"plain": {
		Registered:         `Registered for {{plural .Count "location" "locations"}}{{if .Locations}}: {{join .Locations "; "}}{{else}}.{{end}}`,
		RegistrationStatus: `Registered for {{plural .Count "location" "locations"}}{{if .Locations}}: {{join .Locations "; "}}{{else}}.{{end}}`,
		NotRegistered:      `Please register first: text "register" and your location code.`,
		SelectLocation: `Reply with the number of your location:
{{range $i, $c := .Choices}}{{if $i}}
{{end}}{{$c.Number}}: {{$c.Name}}{{end}}`,
		SelectOutOfRange: `Reply with a number in this list.
{{template "selectLocation" .}}`,
		AnswerPrompt: `{{.Location}}, week {{.Period.Week}}/{{.Period.Year}}. Send, separated by commas:
{{join .Labels ", "}}`,
		NumberRequired: `A number is required for {{.Label}}.
{{template "answerPrompt" .}}`,
		TextRequired: `A response is required for {{.Label}}.
{{template "answerPrompt" .}}`,
		Confirm: `{{.Location}}, week {{.Period.Week}}/{{.Period.Year}}: {{range $i, $s := .Summary}}{{if $i}}, {{end}}{{$s.Label}} {{$s.Value}}{{end}}. Correct? YES or NO`,
		CommentPrompt:  `Any comment? Reply with text.`,
		Thanks:         `Report received. Thank you!`,
		NoQuestions:    `Nothing to report for this survey.`,
		Help:           `Commands: "register <code>", "register clear", "report".`,
		GeneralError:   `Something went wrong. Please try again.`,
		SurveyNotFound: `Unknown survey.`,
	},
}
