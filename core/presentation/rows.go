// Package presentation builds row view models for the extension listing.
// Promoted extensions are display-locked: their toggle and delete actions
// disappear and a badge marks them as always-on. The changes are cosmetic;
// enforcement lives in the permission gate.
package presentation

// Actions a listing row can offer.
const (
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionDelete     = "delete"
)

// MustUseBadge marks a promoted extension in the listing.
const MustUseBadge = "Must-Use"

// Row is one extension as rendered by the listing.
type Row struct {
	Identifier string   `json:"identifier"`
	Active     bool     `json:"active"`
	Promoted   bool     `json:"promoted"`
	Badges     []string `json:"badges,omitempty"`
	Actions    []string `json:"actions,omitempty"`
}

// Rows builds the listing for the installed identifiers. nativeActive and
// promoted report each identifier's state; promoted rows render as active
// with no lifecycle actions.
func Rows(installed []string, nativeActive func(id string) bool, promoted func(id string) bool) []Row {
	rows := make([]Row, 0, len(installed))
	for _, id := range installed {
		rows = append(rows, buildRow(id, nativeActive(id), promoted(id)))
	}
	return rows
}

func buildRow(id string, active, isPromoted bool) Row {
	row := Row{Identifier: id, Active: active, Promoted: isPromoted}
	if isPromoted {
		row.Active = true
		row.Badges = []string{MustUseBadge}
		return row
	}
	if active {
		row.Actions = []string{ActionDeactivate, ActionDelete}
	} else {
		row.Actions = []string{ActionActivate, ActionDelete}
	}
	return row
}
