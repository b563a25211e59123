package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislav-moscow/Social/internal/database"
	"github.com/vladislav-moscow/Social/internal/models"
)

func TestSeedDev(t *testing.T) {
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	res, err := NewSeeder(db, 42).SeedDev(context.Background(), 6)
	require.NoError(t, err)

	assert.Len(t, res.Users, 6)
	assert.Equal(t, 18, res.Posts)
	assert.Positive(t, res.Conversations)
	assert.GreaterOrEqual(t, res.Messages, res.Conversations)

	var convCount, msgCount, followCount int64
	db.Model(&models.Conversation{}).Count(&convCount)
	db.Model(&models.Message{}).Count(&msgCount)
	db.Model(&models.Follow{}).Count(&followCount)
	assert.Equal(t, int64(res.Conversations), convCount)
	assert.Equal(t, int64(res.Messages), msgCount)
	assert.Equal(t, int64(res.Follows), followCount)
}

func TestSeedDevNeedsTwoUsers(t *testing.T) {
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	_, err = NewSeeder(db, 1).SeedDev(context.Background(), 1)
	assert.Error(t, err)
}
