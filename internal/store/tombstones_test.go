package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"pool_chat/pkg/logger"
)

func TestTombstoneSetMarkAndQuery(t *testing.T) {
	set := NewTombstoneSet(16, logger.Nop())

	assert.False(t, set.IsDeleted("5"))
	set.MarkDeleted("5")
	assert.True(t, set.IsDeleted("5"))

	// Re-marking is a no-op.
	set.MarkDeleted("5")
	assert.Equal(t, 1, set.Len())

	// Empty ids are ignored.
	set.MarkDeleted("")
	assert.False(t, set.IsDeleted(""))
	assert.Equal(t, 1, set.Len())
}

func TestTombstoneSetEvictsOldestAtCap(t *testing.T) {
	set := NewTombstoneSet(3, logger.Nop())

	for i := 0; i < 4; i++ {
		set.MarkDeleted(fmt.Sprintf("id-%d", i))
	}

	assert.Equal(t, 3, set.Len())
	assert.False(t, set.IsDeleted("id-0"))
	assert.True(t, set.IsDeleted("id-1"))
	assert.True(t, set.IsDeleted("id-3"))
}

func TestTombstoneSetZeroCapFallsBackToDefault(t *testing.T) {
	set := NewTombstoneSet(0, logger.Nop())
	set.MarkDeleted("x")
	assert.True(t, set.IsDeleted("x"))
}
