// Package memory provides in-memory implementations of the repository
// interfaces. They back the "memory" database driver and the service tests.
//
// Every accessor stores and returns deep copies, so callers never share
// state with the store.
package memory

import (
	"bytes"
	"sort"

	"github.com/gardenjournal/gardenjournal/internal/ident"
)

// Store bundles one accessor per collection.
type Store struct {
	Users     *UserRepo
	Locations *LocationRepo
	Plants    *PlantRepo
	Notes     *NoteRepo
}

// New creates an empty store.
func New() *Store {
	return &Store{
		Users:     NewUserRepo(),
		Locations: NewLocationRepo(),
		Plants:    NewPlantRepo(),
		Notes:     NewNoteRepo(),
	}
}

func idLess(a, b ident.ID) bool { return bytes.Compare(a[:], b[:]) < 0 }

func idSet(ids []ident.ID) map[ident.ID]struct{} {
	set := make(map[ident.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// sortByKey orders items by key, breaking ties on id.
func sortByKey[T any](items []T, key func(T) string, id func(T) ident.ID) {
	sort.Slice(items, func(i, j int) bool {
		ki, kj := key(items[i]), key(items[j])
		if ki != kj {
			return ki < kj
		}
		return idLess(id(items[i]), id(items[j]))
	})
}
