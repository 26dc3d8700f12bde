package surveyfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/smsinterview/internal/models"
)

func TestLoad(t *testing.T) {
	surveys, err := Load("testdata/surveys.yaml")
	require.NoError(t, err)
	require.Len(t, surveys, 2)

	disease := surveys[0]
	assert.Equal(t, "disease", disease.ID)
	assert.Equal(t, "MSF", disease.Tag)
	assert.True(t, disease.Active)
	assert.Equal(t, "default", disease.MessageSet)
	assert.True(t, disease.HasCrisisMap())
	assert.Equal(t, "topic1", *disease.TopicID)
	assert.Equal(t, "Any other diseases to report?", disease.Messages["commentPrompt"])
	require.Len(t, disease.Questions, 6)
	assert.Equal(t, models.Question{
		Text:         "Measles cases",
		SummaryText:  "Measles cases",
		ResponseType: models.ResponseNumber,
		ExternalKey:  "q1",
	}, disease.Questions[0])

	names := surveys[1]
	assert.Equal(t, "names", names.Name)
	assert.False(t, names.Active)
	assert.False(t, names.HasCrisisMap())
	assert.Equal(t, models.ResponseText, names.Questions[0].ResponseType)
	assert.Equal(t, "Name", names.Questions[0].SummaryText)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "empty survey file"},
		{"unknown field", "surveys:\n  - id: a\n    colour: red\n", "field colour not found"},
		{"missing id", "surveys:\n  - name: a\n", "missing required field: id"},
		{"bad id", "surveys:\n  - id: a b\n", "contains whitespace"},
		{"duplicate", "surveys:\n  - id: a\n  - id: a\n", "duplicate id"},
		{"bad type", "surveys:\n  - id: a\n    questions:\n      - text: x\n        responseType: date\n", "unknown responseType"},
		{"missing text", "surveys:\n  - id: a\n    questions:\n      - summaryText: x\n", "missing text"},
		{"unknown set", "surveys:\n  - id: a\n    messageSet: fancy\n", "unknown message set"},
		{"bad template", "surveys:\n  - id: a\n    messages:\n      thanks: \"{{.Nope\"\n", "parse template"},
		{"misspelled template", "surveys:\n  - id: a\n    messages:\n      commentPromt: Any notes?\n", "unknown message template: \"commentPromt\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
