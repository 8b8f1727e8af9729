package confirm

import (
	"fmt"
	"io"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/files"
	"github.com/erazemk/idear/internal/model"
)

// Action is a privileged operation waiting for confirmation. The concrete
// types below are the only implementations.
type Action interface {
	// Describe is the question put to the user.
	Describe() string
	// Guard is the level the action requires.
	Guard() access.Guard

	action()
}

type AddItem struct{ Item model.Item }

type UpdateItem struct{ Old, New model.Item }

type DeleteItem struct{ Item model.Item }

type AddElectrical struct{ Item model.ElectricalItem }

type UpdateElectrical struct{ Old, New model.ElectricalItem }

type DeleteElectrical struct{ Item model.ElectricalItem }

type CreateUser struct {
	Username string
	Password string
	Level    int
}

// UpdateUser changes a user's level, and the password when it is set.
type UpdateUser struct {
	Username string
	Password string
	Level    int
}

type DeleteUser struct{ Username string }

type Backup struct{ Kind files.Kind }

type Restore struct {
	Kind files.Kind
	Name string
}

// Upload imports a CSV file. With Append set the rows are added to the
// table instead of replacing it.
type Upload struct {
	Kind   files.Kind
	Name   string
	Data   io.Reader
	Append bool
}

type SetTooltip struct{ Text string }

type RefreshMultipliers struct{}

func (AddItem) action()            {}
func (UpdateItem) action()         {}
func (DeleteItem) action()         {}
func (AddElectrical) action()      {}
func (UpdateElectrical) action()   {}
func (DeleteElectrical) action()   {}
func (CreateUser) action()         {}
func (UpdateUser) action()         {}
func (DeleteUser) action()         {}
func (Backup) action()             {}
func (Restore) action()            {}
func (Upload) action()             {}
func (SetTooltip) action()         {}
func (RefreshMultipliers) action() {}

func (AddItem) Guard() access.Guard            { return access.EditItems }
func (UpdateItem) Guard() access.Guard         { return access.EditItems }
func (DeleteItem) Guard() access.Guard         { return access.EditItems }
func (AddElectrical) Guard() access.Guard      { return access.EditItems }
func (UpdateElectrical) Guard() access.Guard   { return access.EditItems }
func (DeleteElectrical) Guard() access.Guard   { return access.EditItems }
func (CreateUser) Guard() access.Guard         { return access.UserManagement }
func (UpdateUser) Guard() access.Guard         { return access.UserManagement }
func (DeleteUser) Guard() access.Guard         { return access.UserManagement }
func (Backup) Guard() access.Guard             { return access.BackupRestore }
func (Restore) Guard() access.Guard            { return access.BackupRestore }
func (Upload) Guard() access.Guard             { return access.BackupRestore }
func (SetTooltip) Guard() access.Guard         { return access.EditItems }
func (RefreshMultipliers) Guard() access.Guard { return access.EditItems }

func itemLabel(it model.Item) string {
	if it.Size == "" {
		return it.Name
	}
	return it.Name + " " + it.Size
}

func electricalLabel(it model.ElectricalItem) string {
	switch v := it.(type) {
	case *model.ActiveItem:
		return v.Name
	case *model.AssemblyItem:
		return v.Name
	case *model.PassiveItem:
		return fmt.Sprintf("%s %g", v.Subtype, v.Value)
	}
	return string(it.Kind())
}

func (a AddItem) Describe() string { return fmt.Sprintf("Add item %q?", itemLabel(a.Item)) }

func (a UpdateItem) Describe() string {
	return fmt.Sprintf("Save changes to item %q?", itemLabel(a.Old))
}

func (a DeleteItem) Describe() string { return fmt.Sprintf("Delete item %q?", itemLabel(a.Item)) }

func (a AddElectrical) Describe() string {
	return fmt.Sprintf("Add %s item %q?", a.Item.Kind(), electricalLabel(a.Item))
}

func (a UpdateElectrical) Describe() string {
	return fmt.Sprintf("Save changes to %s item %q?", a.Old.Kind(), electricalLabel(a.Old))
}

func (a DeleteElectrical) Describe() string {
	return fmt.Sprintf("Delete %s item %q?", a.Item.Kind(), electricalLabel(a.Item))
}

func (a CreateUser) Describe() string {
	return fmt.Sprintf("Create user %q with level %d?", a.Username, a.Level)
}

func (a UpdateUser) Describe() string {
	return fmt.Sprintf("Update user %q to level %d?", a.Username, a.Level)
}

func (a DeleteUser) Describe() string { return fmt.Sprintf("Delete user %q?", a.Username) }

func (a Backup) Describe() string { return fmt.Sprintf("Back up %s items?", a.Kind) }

func (a Restore) Describe() string {
	return fmt.Sprintf("Replace all %s items with backup %q?", a.Kind, a.Name)
}

func (a Upload) Describe() string {
	if a.Append {
		return fmt.Sprintf("Append %q to %s items?", a.Name, a.Kind)
	}
	return fmt.Sprintf("Replace all %s items with %q?", a.Kind, a.Name)
}

func (SetTooltip) Describe() string { return "Replace the electrical tooltip?" }

func (RefreshMultipliers) Describe() string { return "Rebuild the unit table from current stock?" }
