package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownAction = errors.New("unknown action")

// Action is an effect performed on activation or deactivation. The set of
// kinds is closed per release: an unknown kind fails to parse.
type Action interface {
	Kind() string
	Clone() Action
}

// Run spawns Program with Arguments.
type Run struct {
	Program   string   `yaml:"program"`
	Arguments []string `yaml:"arguments"`
}

func (r Run) Kind() string { return "Run" }

func (r Run) Clone() Action {
	return Run{Program: r.Program, Arguments: slices.Clone(r.Arguments)}
}

func (r Run) String() string {
	return strings.Join(append([]string{r.Program}, r.Arguments...), " ")
}

// Copy puts Text on the clipboard.
type Copy struct {
	Text string `yaml:"text"`
}

func (c Copy) Kind() string  { return "Copy" }
func (c Copy) Clone() Action { return c }

// decodeAction accepts either a local tag (!Run {...}) or a single-key
// mapping (Run: {...}). An absent or null node yields a nil Action.
func decodeAction(node *yaml.Node) (Action, error) {
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null") {
		return nil, nil
	}

	var kind string
	var body yaml.Node
	switch {
	case strings.HasPrefix(node.Tag, "!") && !strings.HasPrefix(node.Tag, "!!"):
		kind = strings.TrimPrefix(node.Tag, "!")
		body = *node
		body.Tag = ""
	case node.Kind == yaml.MappingNode && len(node.Content) == 2:
		kind = node.Content[0].Value
		body = *node.Content[1]
	default:
		return nil, fmt.Errorf("line %d: action must name its kind, e.g. Run", node.Line)
	}

	switch kind {
	case "Run":
		var r Run
		if err := body.Decode(&r); err != nil {
			return nil, fmt.Errorf("Run: %w", err)
		}
		if r.Program == "" {
			return nil, fmt.Errorf("line %d: Run: program is required", node.Line)
		}
		return r, nil
	case "Copy":
		var c Copy
		if err := body.Decode(&c); err != nil {
			return nil, fmt.Errorf("Copy: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("line %d: %w %q", node.Line, ErrUnknownAction, kind)
	}
}
