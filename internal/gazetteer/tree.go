package gazetteer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/GTDGit/smsinterview/internal/models"
)

// treeNode is one level of the nested location file:
//
//	{"childAdminLevel": "state", "children": {"SOKOTO": {"code": "SO", ...}}}
type treeNode struct {
	Code            string               `json:"code"`
	CentroidLat     *float64             `json:"centroidLat"`
	CentroidLng     *float64             `json:"centroidLng"`
	ChildAdminLevel string               `json:"childAdminLevel"`
	Children        map[string]*treeNode `json:"children"`
}

// LoadTree parses a nested location file and flattens it into locations
// with dotted codes built from each level's code.
func LoadTree(r io.Reader) ([]models.Location, error) {
	var root treeNode
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode location tree: %w", err)
	}

	var out []models.Location
	var walk func(node *treeNode, parentCode string) error
	walk = func(node *treeNode, parentCode string) error {
		names := make([]string, 0, len(node.Children))
		for name := range node.Children {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			child := node.Children[name]
			if child == nil || child.Code == "" {
				return fmt.Errorf("location %q has no code", name)
			}
			code := NormalizeCode(child.Code)
			var parent *string
			if parentCode != "" {
				code = parentCode + "." + code
				p := parentCode
				parent = &p
			}
			out = append(out, models.Location{
				Code:       code,
				Name:       name,
				Level:      node.ChildAdminLevel,
				ParentCode: parent,
				Lat:        child.CentroidLat,
				Lng:        child.CentroidLng,
			})
			if err := walk(child, code); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(&root, ""); err != nil {
		return nil, err
	}
	return out, nil
}
