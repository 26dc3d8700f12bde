// Package formatter renders every outbound SMS from named templates. Wording
// is chosen per survey (message set plus per-template overrides) so the
// conversation logic never branches on it.
package formatter

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/internal/period"
)

var (
	// ErrUnknownSet is returned for a survey naming a message set that does not exist.
	ErrUnknownSet = errors.New("unknown message set")
	// ErrUnknownTemplate is returned for an override of a template that does not exist.
	ErrUnknownTemplate = errors.New("unknown message template")
)

// Choice is one numbered entry of the location selection list.
type Choice struct {
	Number int
	Name   string
}

// SummaryLine is one "label: value" line of a confirmation.
type SummaryLine struct {
	Label string
	Value string
}

// Data is the union of values any template may reference.
type Data struct {
	Tag        string
	SurveyName string

	Count     int
	Locations []string

	Choices []Choice

	Location string
	Period   period.Period
	Labels   []string
	Label    string
	Summary  []SummaryLine
}

var funcs = template.FuncMap{
	"join": func(items []string, sep string) string { return strings.Join(items, sep) },
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return "1 " + one
		}
		return strconv.Itoa(n) + " " + many
	},
}

// Formatter compiles template sets lazily and caches them per override set.
type Formatter struct {
	mu    sync.Mutex
	cache map[string]*template.Template
}

// New creates a Formatter with the built-in message sets.
func New() *Formatter {
	return &Formatter{cache: make(map[string]*template.Template)}
}

// Sets lists the available message set names.
func Sets() []string {
	names := make([]string, 0, len(builtinSets))
	for n := range builtinSets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template for the survey.
func (f *Formatter) Render(s *models.Survey, name string, d Data) (string, error) {
	t, err := f.templates(s)
	if err != nil {
		return "", err
	}
	if t.Lookup(name) == nil {
		return "", fmt.Errorf("template %q not defined", name)
	}
	if s != nil {
		d.Tag = s.Tag
		d.SurveyName = s.Name
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, d); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Validate checks that a survey's message set exists and its overrides name
// known templates and parse.
func (f *Formatter) Validate(s *models.Survey) error {
	if _, err := f.templates(s); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	names := builtinSets[DefaultSet]
	for _, n := range sortedKeys(s.Messages) {
		if _, ok := names[n]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTemplate, n)
		}
	}
	return nil
}

func (f *Formatter) templates(s *models.Survey) (*template.Template, error) {
	set := DefaultSet
	var overrides map[string]string
	if s != nil {
		if s.MessageSet != "" {
			set = s.MessageSet
		}
		overrides = s.Messages
	}
	key := cacheKey(set, overrides)

	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.cache[key]; ok {
		return t, nil
	}

	texts, ok := builtinSets[set]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSet, set)
	}
	merged := make(map[string]string, len(texts))
	for n, text := range texts {
		merged[n] = text
	}
	for n, text := range overrides {
		merged[n] = text
	}

	root := template.New(set).Funcs(funcs)
	for n, text := range merged {
		if _, err := root.New(n).Parse(text); err != nil {
			return nil, fmt.Errorf("parse template %s/%s: %w", set, n, err)
		}
	}
	f.cache[key] = root
	return root, nil
}

func sortedKeys(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func cacheKey(set string, overrides map[string]string) string {
	if len(overrides) == 0 {
		return set
	}
	names := sortedKeys(overrides)

	var b strings.Builder
	b.WriteString(set)
	for _, n := range names {
		b.WriteString("\x00")
		b.WriteString(n)
		b.WriteString("\x01")
		b.WriteString(overrides[n])
	}
	return b.String()
}
