package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-03-01T09:00:00Z"})
	require.NoError(t, err)
	assert.NotContains(t, token, "=")

	c, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", c.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90IGpzb24", "e30"} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}

func TestPage(t *testing.T) {
	cursorOf := func(n int) Cursor { return Cursor{ID: strconv.Itoa(n), CreatedAt: "t"} }

	rows, info, err := Page([]int{1, 2, 3}, 2, cursorOf)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rows)
	assert.True(t, info.HasMore)

	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2", next.ID)

	rows, info, err = Page([]int{1, 2}, 2, cursorOf)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
