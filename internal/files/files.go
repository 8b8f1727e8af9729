// Package files triggers server-side backups, restores and CSV imports and
// fetches the server log.
package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/erazemk/idear/internal/broadcast"
	"github.com/erazemk/idear/internal/client"
	"github.com/erazemk/idear/internal/inventory"
)

// Kind selects the general or the electrical endpoint family.
type Kind int

const (
	General Kind = iota
	Electrical
)

func (k Kind) String() string {
	if k == Electrical {
		return "electrical"
	}
	return "general"
}

// ParseKind accepts "general" (or "items") and "electrical".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "general", "items", "":
		return General, nil
	case "electrical":
		return Electrical, nil
	}
	return General, fmt.Errorf("unknown kind %q", s)
}

func (k Kind) scope() inventory.Scope {
	if k == Electrical {
		return inventory.ScopeElectrical
	}
	return inventory.ScopeGeneral
}

// path picks the endpoint of the kind's family.
func (k Kind) path(general, electrical string) string {
	if k == Electrical {
		return electrical
	}
	return general
}

// Service calls the file endpoints. Every call needs an admin session on
// the server; the caller checks access.BackupRestore first.
type Service struct {
	client  *client.Client
	tokens  inventory.TokenSource
	logger  *slog.Logger
	changes *broadcast.Topic[inventory.Change]
}

// New creates a Service. Restores and imports are announced on changes,
// which should be the topic shared with the item gateways.
func New(c *client.Client, tokens inventory.TokenSource, changes *broadcast.Topic[inventory.Change], logger *slog.Logger) *Service {
	if changes == nil {
		changes = inventory.NewChanges()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: c, tokens: tokens, logger: logger, changes: changes}
}

func (s *Service) query() url.Values {
	q := url.Values{}
	if s.tokens != nil {
		if tok, ok := s.tokens.Token(); ok {
			q.Set("token", tok)
		}
	}
	return q
}

func (s *Service) announce(k Kind, name string) {
	s.changes.Publish(inventory.Change{Scope: k.scope(), Op: inventory.OpImport, Name: name})
}

// Backup snapshots a table on the server and returns the backup's name.
func (s *Service) Backup(ctx context.Context, k Kind) (string, error) {
	var resp struct {
		client.Envelope
		File string `json:"file"`
	}
	if err := s.client.Get(ctx, k.path("/backupDatabase", "/backupDatabaseElectrical"), s.query(), &resp); err != nil {
		s.logger.Error("backup failed", "kind", k, "error", err)
		return "", fmt.Errorf("backing up %s items: %w", k, err)
	}
	s.logger.Info("backup created", "kind", k, "file", resp.File)
	return resp.File, nil
}

// ListBackups returns the stored backups of a kind, newest first.
func (s *Service) ListBackups(ctx context.Context, k Kind) ([]string, error) {
	var resp struct {
		Files []string `json:"files"`
	}
	if err := s.client.Get(ctx, k.path("/getFiles", "/getElectricalFiles"), s.query(), &resp); err != nil {
		return nil, fmt.Errorf("listing %s backups: %w", k, err)
	}
	return resp.Files, nil
}

// Restore replaces a table with a stored backup.
func (s *Service) Restore(ctx context.Context, k Kind, name string) error {
	q := s.query()
	q.Set("file", name)
	if err := s.client.Get(ctx, k.path("/restoreDatabase", "/restoreDatabaseElectrical"), q, nil); err != nil {
		s.logger.Error("restore failed", "kind", k, "file", name, "error", err)
		return fmt.Errorf("restoring %s: %w", name, err)
	}
	s.announce(k, name)
	return nil
}

// Upload replaces a table with the CSV read from r.
func (s *Service) Upload(ctx context.Context, k Kind, name string, r io.Reader) error {
	return s.importCSV(ctx, k, k.path("/uploadFile", "/uploadFileElectrical"), name, r)
}

// Append adds the rows of the CSV read from r to a table.
func (s *Service) Append(ctx context.Context, k Kind, name string, r io.Reader) error {
	return s.importCSV(ctx, k, k.path("/appendFile", "/appendFileElectrical"), name, r)
}

func (s *Service) importCSV(ctx context.Context, k Kind, path, name string, r io.Reader) error {
	if err := s.client.PostFile(ctx, path, name, r, nil); err != nil {
		s.logger.Error("import failed", "path", path, "file", name, "error", err)
		return fmt.Errorf("importing %s: %w", name, err)
	}
	s.announce(k, name)
	return nil
}

// Download writes a stored backup to w.
func (s *Service) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	q := s.query()
	q.Set("fileName", name)
	n, err := s.client.Download(ctx, "/downloadFile", q, w)
	if err != nil {
		return n, fmt.Errorf("downloading %s: %w", name, err)
	}
	return n, nil
}

// Log returns the server log.
func (s *Service) Log(ctx context.Context) (string, error) {
	var resp struct {
		Log string `json:"log"`
	}
	if err := s.client.Get(ctx, "/get_log", s.query(), &resp); err != nil {
		return "", fmt.Errorf("getting log: %w", err)
	}
	return resp.Log, nil
}
