package access

import (
	"testing"

	"github.com/erazemk/idear/internal/broadcast"
)

func TestCanAccess(t *testing.T) {
	for level := 0; level <= 3; level++ {
		for required := 0; required <= 3; required++ {
			want := level <= required
			if got := CanAccess(level, required); got != want {
				t.Errorf("CanAccess(%d, %d) = %v, want %v", level, required, got, want)
			}
		}
	}

	tests := []struct {
		level, required int
		want            bool
	}{
		{0, 2, true},
		{2, 0, false},
		{2, 2, true},
	}
	for _, tt := range tests {
		if got := CanAccess(tt.level, tt.required); got != tt.want {
			t.Errorf("CanAccess(%d, %d) = %v, want %v", tt.level, tt.required, got, tt.want)
		}
	}
}

func TestControllerFollowsLatestLevel(t *testing.T) {
	levels := broadcast.New[int]()
	c := NewController(levels)

	if c.Level() != LevelNone {
		t.Errorf("expected LevelNone before any publish, got %d", c.Level())
	}
	if c.Allows(EditItems) {
		t.Error("unpublished level should not allow edits")
	}

	levels.Publish(LevelEditor)
	if !c.Allows(EditItems) {
		t.Error("editor should be allowed to edit items")
	}
	if c.Allows(UserManagement) || c.Allows(BackupRestore) {
		t.Error("editor should not manage users or backups")
	}

	levels.Publish(LevelAdmin)
	if !c.Allows(UserManagement) || !c.Allows(BackupRestore) {
		t.Error("admin should pass every guard")
	}

	levels.Publish(LevelNone)
	if c.Allows(EditItems) {
		t.Error("demoted session should lose edit access")
	}
}
