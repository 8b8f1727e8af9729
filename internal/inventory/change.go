package inventory

import "github.com/erazemk/idear/internal/broadcast"

// Scope says which item family a change touched.
type Scope string

const (
	ScopeGeneral    Scope = "general"
	ScopeElectrical Scope = "electrical"
)

// Op is the kind of mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpAdjust Op = "adjust"
	// OpImport covers restores, uploads and appends that replace or extend
	// a whole table.
	OpImport Op = "import"
)

// Change is published after every successful mutation. Subscribers are
// expected to reload, not patch.
type Change struct {
	Scope Scope
	Op    Op
	Name  string
}

// NewChanges creates the topic mutations are announced on.
func NewChanges() *broadcast.Topic[Change] {
	return broadcast.New[Change]()
}
