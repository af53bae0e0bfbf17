package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"data\\textures\\wall.vtf", "/data/textures/wall.vtf"},
		{"\\data\\a.txt", "/data/a.txt"},
		{"plain.txt", "/plain.txt"},
		{"already/slashed", "/already/slashed"},
		{"", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EntryPath(tt.raw))
		})
	}
}

func TestBase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "wall.vtf", Base("/data/textures/wall.vtf"))
	assert.Equal(t, "plain.txt", Base("plain.txt"))
	assert.Equal(t, "dir", Base("/dir/"))
	assert.Equal(t, ".", Base(""))
}

func TestRelative(t *testing.T) {
	t.Parallel()

	got, err := Relative("/data//textures/wall.vtf")
	require.NoError(t, err)
	assert.Equal(t, "data/textures/wall.vtf", got)

	for _, bad := range []string{"/../etc/passwd", "/a/./b", "/", ""} {
		_, err := Relative(bad)
		require.ErrorIs(t, err, ErrUnsafePath, bad)
	}
}
