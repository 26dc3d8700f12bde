package gazetteer

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/smsinterview/internal/models"
)

func loadTestGazetteer(t *testing.T) *Gazetteer {
	t.Helper()
	f, err := os.Open("testdata/locations.json")
	require.NoError(t, err)
	defer f.Close()

	locs, err := LoadTree(f)
	require.NoError(t, err)
	return New(locs)
}

func TestResolveWard(t *testing.T) {
	g := loadTestGazetteer(t)

	loc, err := g.Resolve("so.22.8")
	require.NoError(t, err)
	assert.Equal(t, "ACHIDA", loc.Name)
	assert.Equal(t, "ward", loc.Level)
	assert.Equal(t, []string{"WURNO", "SOKOTO"}, loc.Ancestors)
	assert.Equal(t, "Ward: ACHIDA, WURNO, SOKOTO", loc.DisplayName())
	require.NotNil(t, loc.Lat)
	assert.InDelta(t, 13.167, *loc.Lat, 1e-9)
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	g := loadTestGazetteer(t)

	loc, err := g.Resolve("  KB.1.5 ")
	require.NoError(t, err)
	assert.Equal(t, "Ward: DANWARAI, ALIERO, KEBBI", loc.DisplayName())
}

func TestResolveIntermediateLevel(t *testing.T) {
	g := loadTestGazetteer(t)

	loc, err := g.Resolve("kb.1")
	require.NoError(t, err)
	assert.Equal(t, "district", loc.Level)
	assert.Equal(t, "District: ALIERO, KEBBI", loc.DisplayName())

	root, err := g.Resolve("so")
	require.NoError(t, err)
	assert.Equal(t, "State: SOKOTO", root.DisplayName())
}

func TestResolveNotFound(t *testing.T) {
	g := loadTestGazetteer(t)

	for _, code := range []string{"so.22.99", "extra", "", "input"} {
		_, err := g.Resolve(code)
		assert.ErrorIs(t, err, ErrNotFound, code)
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	g := loadTestGazetteer(t)

	loc, err := g.Resolve("so.22.8")
	require.NoError(t, err)
	loc.Ancestors[0] = "MUTATED"
	loc.Name = "MUTATED"

	again, err := g.Resolve("so.22.8")
	require.NoError(t, err)
	assert.Equal(t, "ACHIDA", again.Name)
	assert.Equal(t, "WURNO", again.Ancestors[0])
}

func TestReplaceSwapsIndex(t *testing.T) {
	g := loadTestGazetteer(t)
	assert.Equal(t, 8, g.Len())

	parent := "x"
	g.Replace([]models.Location{
		{Code: "X", Name: "ROOT", Level: "state"},
		{Code: "x.1", Name: "LEAF", Level: "ward", ParentCode: &parent},
	})
	assert.Equal(t, []string{"x", "x.1"}, g.Codes())

	_, err := g.Resolve("so.22.8")
	assert.ErrorIs(t, err, ErrNotFound)

	leaf, err := g.Resolve("X.1")
	require.NoError(t, err)
	assert.Equal(t, "Ward: LEAF, ROOT", leaf.DisplayName())
}

func TestLoadTreeRejectsMissingCode(t *testing.T) {
	_, err := LoadTree(strings.NewReader(`{"childAdminLevel":"state","children":{"NOWHERE":{}}}`))
	assert.Error(t, err)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "so.22.8", NormalizeCode(" SO.22.8, "))
	assert.Equal(t, "so.22.8", NormalizeCode("so.22.8."))
}
