package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// fileState is the decoded state kept by FileRepository.
type fileState struct {
	Items   []Item
	Rubrics []Rubric
	Classes []string
}

// fileDocument is the on-disk JSON document. Items stay raw so one record
// that fails to decode does not prevent loading the rest.
type fileDocument struct {
	Items   []json.RawMessage `json:"items"`
	Rubrics []Rubric          `json:"rubrics"`
	Classes []string          `json:"classes"`
}

// FileRepository keeps all state in a single JSON file. Every write
// rewrites the file through a temp file and rename. It is safe for
// concurrent use within one process.
type FileRepository struct {
	path string
	log  zerolog.Logger

	mu    sync.Mutex
	state fileState
	// unreadable holds records that failed to decode. They are written
	// back unchanged on every commit.
	unreadable []json.RawMessage
}

// OpenFile loads path, or starts empty if it does not exist yet. Legacy
// item versions are converted while loading. Items that cannot be decoded
// are logged and skipped but kept in the file.
func OpenFile(log zerolog.Logger, path string) (*FileRepository, error) {
	r := &FileRepository{path: path, log: log.With().Str("component", "history").Logger()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	if len(data) > 0 {
		var doc fileDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse history file: %w", err)
		}
		r.state.Rubrics = doc.Rubrics
		r.state.Classes = doc.Classes
		for i, raw := range doc.Items {
			it, err := DecodeItem(raw)
			if err != nil {
				r.log.Warn().Err(err).Int("index", i).Str("id", recordID(raw)).Msg("skipping unreadable history item")
				r.unreadable = append(r.unreadable, raw)
				continue
			}
			r.state.Items = append(r.state.Items, it)
		}
	}
	sortItems(r.state.Items)
	return r, nil
}

// Path returns the backing file.
func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) SaveItem(_ context.Context, it Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]Item, 0, len(r.state.Items)+1)
	items = append(items, it)
	for _, existing := range r.state.Items {
		if existing.ID != it.ID {
			items = append(items, existing)
		}
	}
	sortItems(items)

	next := r.state
	next.Items = items
	next.Classes = addClass(next.Classes, it.ClassName)
	return r.commit(next)
}

func (r *FileRepository) Items(_ context.Context, className string) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	className = NormalizeClass(className)
	out := make([]Item, 0, len(r.state.Items))
	for _, it := range r.state.Items {
		if className == "" || NormalizeClass(it.ClassName) == className {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *FileRepository) Item(_ context.Context, id string) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.state.Items {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (r *FileRepository) DeleteItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, it := range r.state.Items {
		if it.ID == id {
			next := r.state
			next.Items = append(append([]Item{}, r.state.Items[:i]...), r.state.Items[i+1:]...)
			return r.commit(next)
		}
	}
	return ErrNotFound
}

func (r *FileRepository) SaveRubric(_ context.Context, rb Rubric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rubrics := []Rubric{rb}
	for _, existing := range r.state.Rubrics {
		if existing.ID != rb.ID {
			rubrics = append(rubrics, existing)
		}
	}
	next := r.state
	next.Rubrics = rubrics
	return r.commit(next)
}

func (r *FileRepository) Rubrics(_ context.Context) ([]Rubric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Rubric, len(r.state.Rubrics))
	copy(out, r.state.Rubrics)
	return out, nil
}

func (r *FileRepository) DeleteRubric(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rb := range r.state.Rubrics {
		if rb.ID == id {
			next := r.state
			next.Rubrics = append(append([]Rubric{}, r.state.Rubrics[:i]...), r.state.Rubrics[i+1:]...)
			return r.commit(next)
		}
	}
	return ErrNotFound
}

func (r *FileRepository) Classes(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.state.Classes))
	copy(out, r.state.Classes)
	return out, nil
}

func (r *FileRepository) AddClass(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state
	next.Classes = addClass(r.state.Classes, name)
	if len(next.Classes) == len(r.state.Classes) {
		return nil
	}
	return r.commit(next)
}

// Close is a no-op; every write is already on disk.
func (r *FileRepository) Close() error { return nil }

// commit writes next to disk and, on success, makes it the current state.
func (r *FileRepository) commit(next fileState) error {
	doc := fileDocument{
		Items:   make([]json.RawMessage, 0, len(next.Items)+len(r.unreadable)),
		Rubrics: next.Rubrics,
		Classes: next.Classes,
	}
	for _, it := range next.Items {
		raw, err := EncodeItem(it)
		if err != nil {
			return fmt.Errorf("failed to encode history item %s: %w", it.ID, err)
		}
		doc.Items = append(doc.Items, raw)
	}
	doc.Items = append(doc.Items, r.unreadable...)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history: %w", err)
	}

	r.state = next
	return nil
}

// addClass returns classes plus name, sorted and without duplicates. The
// input slice is not modified.
func addClass(classes []string, name string) []string {
	name = NormalizeClass(name)
	if name == "" {
		return classes
	}
	for _, c := range classes {
		if c == name {
			return classes
		}
	}
	out := append(append([]string{}, classes...), name)
	sort.Strings(out)
	return out
}
