package history

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned when an item or rubric does not exist.
var ErrNotFound = errors.New("not found")

// Repository stores history, rubrics and class names.
type Repository interface {
	// SaveItem inserts or replaces an item and registers its class name.
	SaveItem(ctx context.Context, it Item) error

	// Items lists items newest first. An empty className lists all.
	Items(ctx context.Context, className string) ([]Item, error)

	Item(ctx context.Context, id string) (Item, error)
	DeleteItem(ctx context.Context, id string) error

	SaveRubric(ctx context.Context, r Rubric) error
	Rubrics(ctx context.Context) ([]Rubric, error)
	DeleteRubric(ctx context.Context, id string) error

	// Classes lists known class names in sorted order.
	Classes(ctx context.Context) ([]string, error)
	AddClass(ctx context.Context, name string) error

	Close() error
}

// NormalizeClass trims a class name. Empty names are not registered.
func NormalizeClass(name string) string {
	return strings.TrimSpace(name)
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
}
