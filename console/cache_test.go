package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/models"
)

func ids(items []models.Submission) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, s.ID)
	}
	return out
}

func TestCacheUpsertFromRemote(t *testing.T) {
	c := NewCache()
	c.Replace([]models.Submission{
		{ID: "3", Status: models.StatusPending},
		{ID: "2", Status: models.StatusPending},
		{ID: "1", Status: models.StatusPending},
	})

	c.UpsertFromRemote(models.Submission{ID: "2", Status: models.StatusAccepted})
	assert.Equal(t, []string{"3", "2", "1"}, ids(c.Snapshot()))
	got, ok := c.Find("2")
	assert.True(t, ok)
	assert.Equal(t, models.StatusAccepted, got.Status)

	c.UpsertFromRemote(models.Submission{ID: "4"})
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(c.Snapshot()))
	assert.Equal(t, 4, c.Len())
}

func TestCacheRemoveIsTotal(t *testing.T) {
	c := NewCache()
	c.Replace([]models.Submission{{ID: "1"}, {ID: "2"}})

	c.RemoveFromRemote("missing")
	c.RemoveLocal("missing")
	assert.Equal(t, []string{"1", "2"}, ids(c.Snapshot()))

	c.RemoveFromRemote("1")
	assert.Equal(t, []string{"2"}, ids(c.Snapshot()))
	c.RemoveLocal("2")
	assert.Empty(t, c.Snapshot())
}

func TestCacheApplyLocalMutation(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache()
	c.Replace([]models.Submission{{ID: "1", Status: models.StatusPending, AutoDeleteAt: &at}})

	c.ApplyLocalMutation("1", backend.StatusPatch(models.StatusRejected))
	got, _ := c.Find("1")
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, &at, got.AutoDeleteAt)

	c.ApplyLocalMutation("1", backend.AutoDeletePatch(nil))
	got, _ = c.Find("1")
	assert.Nil(t, got.AutoDeleteAt)

	c.ApplyLocalMutation("missing", backend.StatusPatch(models.StatusAccepted))
	assert.Equal(t, 1, c.Len())
}

func TestCacheSnapshotIsCopy(t *testing.T) {
	c := NewCache()
	src := []models.Submission{{ID: "1"}}
	c.Replace(src)
	src[0].ID = "changed"

	snap := c.Snapshot()
	snap[0].ID = "also changed"
	_, ok := c.Find("1")
	assert.True(t, ok)
}
