package console

import (
	"slices"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/models"
)

// Cache mirrors the full, unfiltered submission list, newest first.
// It is not safe for concurrent use; Console guards it.
type Cache struct {
	items []models.Submission
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the whole list after a reload.
func (c *Cache) Replace(all []models.Submission) {
	c.items = slices.Clone(all)
}

// UpsertFromRemote replaces a pushed record in place, or prepends it when new.
func (c *Cache) UpsertFromRemote(rec models.Submission) {
	if i := c.index(rec.ID); i >= 0 {
		c.items[i] = rec
		return
	}
	c.items = slices.Insert(c.items, 0, rec)
}

// RemoveFromRemote drops a record deleted elsewhere. Unknown ids are ignored.
func (c *Cache) RemoveFromRemote(id string) {
	c.remove(id)
}

// ApplyLocalMutation merges a patch that the backend accepted.
func (c *Cache) ApplyLocalMutation(id string, patch backend.SubmissionPatch) {
	if i := c.index(id); i >= 0 {
		c.items[i] = patch.Apply(c.items[i])
	}
}

// RemoveLocal drops a record this console deleted.
func (c *Cache) RemoveLocal(id string) {
	c.remove(id)
}

// Snapshot returns a copy of the list.
func (c *Cache) Snapshot() []models.Submission {
	return slices.Clone(c.items)
}

func (c *Cache) Find(id string) (models.Submission, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	return models.Submission{}, false
}

func (c *Cache) Len() int {
	return len(c.items)
}

func (c *Cache) index(id string) int {
	return slices.IndexFunc(c.items, func(s models.Submission) bool { return s.ID == id })
}

func (c *Cache) remove(id string) {
	c.items = slices.DeleteFunc(c.items, func(s models.Submission) bool { return s.ID == id })
}
