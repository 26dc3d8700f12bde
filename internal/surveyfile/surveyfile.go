// Package surveyfile reads survey definitions from YAML so they can be
// imported into the database or served directly by the local chat tool.
package surveyfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GTDGit/smsinterview/internal/formatter"
	"github.com/GTDGit/smsinterview/internal/models"
)

// File is the top-level document.
type File struct {
	Surveys []Survey `yaml:"surveys"`
}

// Survey is one survey definition.
type Survey struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Tag            string            `yaml:"tag"`
	Active         *bool             `yaml:"active"`
	MessageSet     string            `yaml:"messageSet"`
	Messages       map[string]string `yaml:"messages"`
	LocationLevels []string          `yaml:"locationLevels"`
	CrisisMap      *CrisisMap        `yaml:"crisisMap"`
	Questions      []models.Question `yaml:"questions"`
}

// CrisisMap links a survey to a Crisis Map topic.
type CrisisMap struct {
	MapID   string `yaml:"mapId"`
	TopicID string `yaml:"topicId"`
	APIKey  string `yaml:"apiKey"`
}

// Load reads and validates a survey file.
func Load(path string) ([]models.Survey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	surveys, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return surveys, nil
}

// Decode parses a survey document. Unknown fields are rejected.
func Decode(r io.Reader) ([]models.Survey, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty survey file")
		}
		return nil, fmt.Errorf("parse survey file: %w", err)
	}

	f := formatter.New()
	seen := make(map[string]bool, len(file.Surveys))
	surveys := make([]models.Survey, 0, len(file.Surveys))
	for i, def := range file.Surveys {
		s, err := def.toModel()
		if err != nil {
			return nil, fmt.Errorf("survey %d: %w", i+1, err)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("survey %q: duplicate id", s.ID)
		}
		seen[s.ID] = true
		if err := f.Validate(&s); err != nil {
			return nil, fmt.Errorf("survey %q: %w", s.ID, err)
		}
		surveys = append(surveys, s)
	}
	return surveys, nil
}

func (d Survey) toModel() (models.Survey, error) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return models.Survey{}, errors.New("missing required field: id")
	}
	if strings.ContainsAny(id, " \t\r\n/") {
		return models.Survey{}, fmt.Errorf("id %q contains whitespace or a slash", id)
	}

	s := models.Survey{
		ID:             id,
		Name:           d.Name,
		Tag:            d.Tag,
		Active:         d.Active == nil || *d.Active,
		MessageSet:     d.MessageSet,
		Messages:       d.Messages,
		LocationLevels: d.LocationLevels,
		Questions:      make([]models.Question, len(d.Questions)),
	}
	if s.Name == "" {
		s.Name = id
	}
	if s.MessageSet == "" {
		s.MessageSet = formatter.DefaultSet
	}

	for i, q := range d.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return models.Survey{}, fmt.Errorf("question %d: missing text", i+1)
		}
		switch q.ResponseType {
		case "":
			q.ResponseType = models.ResponseNumber
		case models.ResponseNumber, models.ResponseText:
		default:
			return models.Survey{}, fmt.Errorf("question %d: unknown responseType %q", i+1, q.ResponseType)
		}
		if q.SummaryText == "" {
			q.SummaryText = q.Text
		}
		s.Questions[i] = q
	}

	if cm := d.CrisisMap; cm != nil {
		s.MapID = stringPtr(cm.MapID)
		s.TopicID = stringPtr(cm.TopicID)
		s.ExternalAPIKey = stringPtr(cm.APIKey)
	}
	return s, nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
