// Package access decides which privileged actions the current session may
// perform. Lower levels are more privileged.
package access

import "github.com/erazemk/idear/internal/broadcast"

// Access levels.
const (
	LevelAdmin  = 0
	LevelEditor = 1
	// LevelNone is both "no privileges" and "could not verify".
	LevelNone = 2
)

// Guard is the level an action requires.
type Guard int

// Named guards.
const (
	UserManagement Guard = LevelAdmin
	BackupRestore  Guard = LevelAdmin
	EditItems      Guard = LevelEditor
)

// CanAccess reports whether a session at level current may perform an
// action that requires level required.
func CanAccess(current, required int) bool {
	return current <= required
}

// Controller evaluates guards against the latest published level.
type Controller struct {
	levels *broadcast.Topic[int]
}

// NewController reads levels from the session's level topic.
func NewController(levels *broadcast.Topic[int]) *Controller {
	return &Controller{levels: levels}
}

// Level returns the current level, LevelNone if nothing was published.
func (c *Controller) Level() int {
	if c == nil || c.levels == nil {
		return LevelNone
	}
	level, ok := c.levels.Latest()
	if !ok {
		return LevelNone
	}
	return level
}

// Allows reports whether the current level satisfies g.
func (c *Controller) Allows(g Guard) bool {
	return CanAccess(c.Level(), int(g))
}
