// Package reconcile writes a desired gateway feature state into every
// candidate openclaw.json with a read-merge-write per location.
package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/quickclaw/quickclaw/internal/locator"
)

// ErrNothingWritten means no candidate location holds the desired state.
var ErrNothingWritten = errors.New("no config location was written")

// DefaultModel seeds agents.defaults.model.primary in new documents.
const DefaultModel = "openai/gpt-4o"

// Skeleton is the minimal document a missing or unreadable config starts from.
func Skeleton() map[string]any {
	return map[string]any{
		"channels": map[string]any{},
		"plugins":  map[string]any{"entries": map[string]any{}},
		"agents": map[string]any{
			"defaults": map[string]any{
				"model": map[string]any{"primary": DefaultModel},
			},
		},
	}
}

// LocationResult is the outcome for one candidate path.
type LocationResult struct {
	Path     string `json:"path"`
	Label    string `json:"label"`
	Created  bool   `json:"created,omitempty"`
	Written  bool   `json:"written"`
	Changed  bool   `json:"changed,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	ParseErr string `json:"parseError,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Result aggregates every location. AnyWritten is true when at least one
// location now holds the desired document.
type Result struct {
	AnyWritten bool             `json:"anyWritten"`
	Locations  []LocationResult `json:"locations"`
}

// Err returns nil when something was written, else ErrNothingWritten joined
// with the per-location failures.
func (r Result) Err() error {
	if r.AnyWritten {
		return nil
	}
	errs := []error{ErrNothingWritten}
	for _, l := range r.Locations {
		if l.Err != "" {
			errs = append(errs, fmt.Errorf("%s: %s", l.Path, l.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed lists locations that could not be written.
func (r Result) Failed() []LocationResult {
	var out []LocationResult
	for _, l := range r.Locations {
		if l.Err != "" {
			out = append(out, l)
		}
	}
	return out
}

// Lookup returns the result for path.
func (r Result) Lookup(path string) (LocationResult, bool) {
	want := filepath.Clean(path)
	for _, l := range r.Locations {
		if filepath.Clean(l.Path) == want {
			return l, true
		}
	}
	return LocationResult{}, false
}

// Apply reconciles every location with patch. Failures are recorded per
// location and never abort the batch.
func Apply(locs []locator.Location, patch Patch) Result {
	var res Result
	if err := patch.validatePaths(); err != nil {
		for _, loc := range locs {
			res.Locations = append(res.Locations, LocationResult{Path: loc.Path, Label: loc.Label, Err: err.Error()})
		}
		return res
	}
	for _, loc := range locs {
		lr := applyOne(loc, patch)
		if lr.Written {
			res.AnyWritten = true
		}
		res.Locations = append(res.Locations, lr)
	}
	return res
}

func applyOne(loc locator.Location, patch Patch) LocationResult {
	lr := LocationResult{Path: loc.Path, Label: loc.Label}

	var doc map[string]any
	existing, err := os.ReadFile(loc.Path)
	switch {
	case err == nil:
		doc, err = decode(existing)
		if err != nil && patch.maintenance() {
			// Possibly a write in progress; never replace someone else's content.
			lr.ParseErr = err.Error()
			slog.Warn("unreadable gateway config left untouched", "path", loc.Path, "error", err)
			return lr
		}
		if err != nil {
			lr.ParseErr = err.Error()
			slog.Warn("unreadable gateway config, starting from skeleton", "path", loc.Path, "error", err)
			if berr := os.WriteFile(loc.Path+".corrupt", existing, 0o600); berr != nil {
				slog.Warn("could not keep corrupt config copy", "path", loc.Path, "error", berr)
			}
			doc = Skeleton()
		}
	case errors.Is(err, fs.ErrNotExist):
		if !loc.Creatable || patch.ExistingOnly {
			lr.Skipped = true
			return lr
		}
		doc = Skeleton()
		lr.Created = true
	default:
		lr.Err = err.Error()
		return lr
	}

	applyPatch(doc, patch)
	out, err := Encode(doc)
	if err != nil {
		lr.Err = err.Error()
		return lr
	}
	if existing != nil && bytes.Equal(existing, out) {
		lr.Written = true
		return lr
	}
	if err := os.MkdirAll(filepath.Dir(loc.Path), 0o700); err != nil {
		lr.Err = err.Error()
		return lr
	}
	if err := os.WriteFile(loc.Path, out, 0o600); err != nil {
		lr.Err = err.Error()
		slog.Warn("gateway config write failed", "path", loc.Path, "error", err)
		return lr
	}
	lr.Written = true
	lr.Changed = true
	slog.Debug("gateway config written", "path", loc.Path, "created", lr.Created)
	return lr
}

func decode(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Encode renders a document with sorted keys and two-space indentation.
func Encode(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read loads the document at path. Missing or malformed files yield the
// skeleton and ok=false.
func Read(path string) (doc map[string]any, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skeleton(), false
	}
	doc, err = decode(data)
	if err != nil {
		return Skeleton(), false
	}
	return doc, true
}
