package media

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOpenRoundTrip(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	n, err := s.Write("note-1", "img/photo.png", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.True(t, s.Exists("note-1", "img/photo.png"))

	size, err := s.Size("note-1", "img/photo.png")
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	r, err := s.Open("note-1", "img/photo.png")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))
}

func TestPathForRejectsEscapes(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	for _, bad := range []string{"../outside.txt", "/etc/passwd", "a/../../b", "."} {
		_, err := s.PathFor("note-1", bad)
		assert.Error(t, err, "path %q should be rejected", bad)
	}
	_, err = s.PathFor("", "fine.png")
	assert.Error(t, err)
}

func TestRemoveNoteDropsAllPayloads(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Write("note-1", "a.png", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = s.Write("note-1", "b/c.png", strings.NewReader("c"))
	require.NoError(t, err)
	_, err = s.Write("note-2", "a.png", strings.NewReader("a"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveNote("note-1"))
	assert.False(t, s.Exists("note-1", "a.png"))
	assert.False(t, s.Exists("note-1", "b/c.png"))
	assert.True(t, s.Exists("note-2", "a.png"))
}
