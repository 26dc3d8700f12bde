// Package gazetteer resolves hierarchical location codes ("so.22.8") to
// locations with their ancestor chain.
package gazetteer

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/GTDGit/smsinterview/internal/models"
)

// ErrNotFound is returned when a code does not resolve to a location.
var ErrNotFound = errors.New("location not found")

// Gazetteer is an in-memory, read-mostly index of locations.
type Gazetteer struct {
	mu     sync.RWMutex
	byCode map[string]*models.Location
}

// New builds a Gazetteer from a flat list of locations. Ancestor chains are
// derived from ParentCode links.
func New(locations []models.Location) *Gazetteer {
	g := &Gazetteer{}
	g.Replace(locations)
	return g
}

// NormalizeCode trims and lower-cases a code and strips trailing punctuation
// that SMS users tend to add ("SO.22.8," or "so.22.8.").
func NormalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.TrimRight(code, ".,;:")
}

// Replace swaps the whole index.
func (g *Gazetteer) Replace(locations []models.Location) {
	byCode := make(map[string]*models.Location, len(locations))
	for i := range locations {
		loc := locations[i]
		loc.Code = NormalizeCode(loc.Code)
		if loc.ParentCode != nil {
			p := NormalizeCode(*loc.ParentCode)
			loc.ParentCode = &p
		}
		byCode[loc.Code] = &loc
	}
	for _, loc := range byCode {
		loc.Ancestors = ancestors(byCode, loc)
	}

	g.mu.Lock()
	g.byCode = byCode
	g.mu.Unlock()
}

func ancestors(byCode map[string]*models.Location, loc *models.Location) []string {
	var names []string
	seen := map[string]bool{loc.Code: true}
	for p := loc.ParentCode; p != nil; {
		parent, ok := byCode[*p]
		if !ok || seen[parent.Code] {
			break
		}
		seen[parent.Code] = true
		names = append(names, parent.Name)
		p = parent.ParentCode
	}
	return names
}

// Resolve returns a copy of the location for code.
func (g *Gazetteer) Resolve(code string) (*models.Location, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	loc, ok := g.byCode[NormalizeCode(code)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *loc
	cp.Ancestors = append([]string(nil), loc.Ancestors...)
	return &cp, nil
}

// Len returns the number of indexed locations.
func (g *Gazetteer) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byCode)
}

// Codes returns all indexed codes, sorted.
func (g *Gazetteer) Codes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	codes := make([]string, 0, len(g.byCode))
	for c := range g.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
