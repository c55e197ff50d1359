package healthcheck

import (
	"sort"
	"strings"
)

type Outcome string

const (
	OutcomeUp   Outcome = "UP"
	OutcomeDown Outcome = "DOWN"
)

// Status is one node of the aggregate health tree.
type Status struct {
	ID     string         `json:"id,omitempty"`
	Status Outcome        `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Checks []Status       `json:"checks,omitempty"`
}

func (s Status) OK() bool {
	return s.Status == OutcomeUp
}

// Leaves flattens the tree into full probe name -> outcome.
func (s Status) Leaves() map[string]bool {
	leaves := make(map[string]bool)
	for _, check := range s.Checks {
		collectLeaves(check, "", leaves)
	}
	return leaves
}

func collectLeaves(s Status, prefix string, leaves map[string]bool) {
	name := s.ID
	if prefix != "" {
		name = prefix + "/" + s.ID
	}

	if len(s.Checks) == 0 {
		leaves[name] = s.OK()
		return
	}

	for _, check := range s.Checks {
		collectLeaves(check, name, leaves)
	}
}

// buildTree groups results keyed by slash-separated paths. A group is UP only
// when every check below it is UP.
func buildTree(id string, results map[string]Status) Status {
	root := Status{ID: id, Status: OutcomeUp}

	groups := make(map[string]map[string]Status)
	for path, result := range results {
		head, rest, nested := strings.Cut(path, "/")
		if !nested {
			result.ID = head
			root.Checks = append(root.Checks, result)
			continue
		}

		if groups[head] == nil {
			groups[head] = make(map[string]Status)
		}
		groups[head][rest] = result
	}

	for name, members := range groups {
		root.Checks = append(root.Checks, buildTree(name, members))
	}

	sort.Slice(root.Checks, func(i, j int) bool {
		return root.Checks[i].ID < root.Checks[j].ID
	})

	for _, check := range root.Checks {
		if !check.OK() {
			root.Status = OutcomeDown
			break
		}
	}

	return root
}
