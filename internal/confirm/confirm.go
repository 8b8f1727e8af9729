// Package confirm gates privileged actions behind an access check and a
// yes/no prompt, then runs them.
package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/auth"
	"github.com/erazemk/idear/internal/files"
	"github.com/erazemk/idear/internal/inventory"
)

var (
	// ErrDeclined is returned when the user answers no.
	ErrDeclined = errors.New("declined")
	// ErrForbidden is returned when the session level is too low.
	ErrForbidden = errors.New("insufficient permissions")
)

// Prompter asks a yes/no question.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// AutoConfirm answers yes to everything.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(string) (bool, error) { return true, nil }

// TerminalPrompter asks on Out and reads the answer from In. Only "y" and
// "yes" count as yes.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

func (p *TerminalPrompter) Confirm(question string) (bool, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprintf(p.Out, "%s [y/N] ", question)

	line, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Dispatcher runs confirmed actions against the gateways. A nil gateway
// makes its actions fail.
type Dispatcher struct {
	Access     *access.Controller
	Prompter   Prompter
	Items      *inventory.Gateway
	Electrical *inventory.ElectricalGateway
	Users      *auth.Gateway
	Files      *files.Service
	Logger     *slog.Logger
}

var errNotConfigured = errors.New("no handler configured")

// ConfirmAndDispatch checks the action's guard, asks for confirmation and
// runs the action only on yes.
func (d *Dispatcher) ConfirmAndDispatch(ctx context.Context, a Action) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !d.Access.Allows(a.Guard()) {
		logger.Warn("action refused", "action", fmt.Sprintf("%T", a), "level", d.Access.Level())
		return fmt.Errorf("%s: %w", strings.TrimSuffix(a.Describe(), "?"), ErrForbidden)
	}

	ok, err := d.Prompter.Confirm(a.Describe())
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}

	if err := d.dispatch(ctx, a); err != nil {
		return err
	}
	logger.Info("action completed", "action", fmt.Sprintf("%T", a))
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, a Action) error {
	switch v := a.(type) {
	case AddItem, UpdateItem, DeleteItem:
		if d.Items == nil {
			return errNotConfigured
		}
		return d.dispatchItem(ctx, v)
	case AddElectrical, UpdateElectrical, DeleteElectrical, SetTooltip, RefreshMultipliers:
		if d.Electrical == nil {
			return errNotConfigured
		}
		return d.dispatchElectrical(ctx, v)
	case CreateUser, UpdateUser, DeleteUser:
		if d.Users == nil {
			return errNotConfigured
		}
		return d.dispatchUser(ctx, v)
	case Backup, Restore, Upload:
		if d.Files == nil {
			return errNotConfigured
		}
		return d.dispatchFile(ctx, v)
	}
	return fmt.Errorf("unknown action %T", a)
}

func (d *Dispatcher) dispatchItem(ctx context.Context, a Action) error {
	switch v := a.(type) {
	case AddItem:
		return d.Items.Create(ctx, v.Item)
	case UpdateItem:
		return d.Items.Update(ctx, v.Old, v.New)
	case DeleteItem:
		return d.Items.Remove(ctx, v.Item)
	}
	return nil
}

func (d *Dispatcher) dispatchElectrical(ctx context.Context, a Action) error {
	switch v := a.(type) {
	case AddElectrical:
		return d.Electrical.Add(ctx, v.Item)
	case UpdateElectrical:
		return d.Electrical.Update(ctx, v.Old, v.New)
	case DeleteElectrical:
		return d.Electrical.Remove(ctx, v.Item)
	case SetTooltip:
		return d.Electrical.SetTooltip(ctx, v.Text)
	case RefreshMultipliers:
		_, err := d.Electrical.RefreshMultipliers(ctx)
		return err
	}
	return nil
}

func (d *Dispatcher) dispatchUser(ctx context.Context, a Action) error {
	var err error
	switch v := a.(type) {
	case CreateUser:
		_, err = d.Users.CreateUser(ctx, v.Username, v.Password, v.Level)
	case UpdateUser:
		_, err = d.Users.UpdateUser(ctx, v.Username, v.Password, v.Level)
	case DeleteUser:
		_, err = d.Users.DeleteUser(ctx, v.Username)
	}
	return err
}

func (d *Dispatcher) dispatchFile(ctx context.Context, a Action) error {
	switch v := a.(type) {
	case Backup:
		_, err := d.Files.Backup(ctx, v.Kind)
		return err
	case Restore:
		return d.Files.Restore(ctx, v.Kind, v.Name)
	case Upload:
		if v.Append {
			return d.Files.Append(ctx, v.Kind, v.Name, v.Data)
		}
		return d.Files.Upload(ctx, v.Kind, v.Name, v.Data)
	}
	return nil
}
