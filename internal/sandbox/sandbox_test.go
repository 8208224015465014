package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(t.TempDir(), 1024, 4096)
}

func TestValidName(t *testing.T) {
	valid := []string{"index.html", "style.css", "my-file_2.js", "a.b.c", "..."}
	for _, name := range valid {
		assert.True(t, ValidName(name), name)
	}

	invalid := []string{".", "..", "a/b.html", "../escape", "", "a b.txt", "sub\\dir"}
	for _, name := range invalid {
		assert.False(t, ValidName(name), name)
	}
}

func TestInitializeSeedsSkeleton(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.Initialize(7, "sess-1"))

	names, err := s.List(7, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html", "script.js", "style.css"}, names)

	data, err := s.Read(7, "sess-1", "index.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "<!DOCTYPE html>")
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.Write(1, "sess-1", "app.js", []byte("console.log(1)")))

	data, err := s.Read(1, "sess-1", "app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))
}

func TestWriteRejectsInvalidName(t *testing.T) {
	s := newTestService(t)
	err := s.Write(1, "sess-1", "../etc/passwd", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestWriteEnforcesFileQuota(t *testing.T) {
	s := newTestService(t)
	err := s.Write(1, "sess-1", "big.html", []byte(strings.Repeat("x", 2048)))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestWriteEnforcesSandboxQuota(t *testing.T) {
	s := newTestService(t)

	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		require.NoError(t, s.Write(1, "sess-1", name, []byte(strings.Repeat("x", 1024))))
	}

	// The fifth kilobyte pushes the sandbox past its 4KB total.
	err := s.Write(1, "sess-1", "e.txt", []byte(strings.Repeat("x", 1024)))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Filesystem is unchanged by the rejected write.
	names, err := s.List(1, "sess-1")
	require.NoError(t, err)
	assert.Len(t, names, 4)
}

func TestOverwriteCountsDeltaAgainstQuota(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.Write(1, "sess-1", "a.txt", []byte(strings.Repeat("x", 1024))))
	require.NoError(t, s.Write(1, "sess-1", "b.txt", []byte(strings.Repeat("x", 1024))))
	require.NoError(t, s.Write(1, "sess-1", "c.txt", []byte(strings.Repeat("x", 1024))))
	require.NoError(t, s.Write(1, "sess-1", "d.txt", []byte(strings.Repeat("x", 1024))))

	// Replacing an existing file at the same size stays inside the total.
	assert.NoError(t, s.Write(1, "sess-1", "a.txt", []byte(strings.Repeat("y", 1024))))
}

func TestReadMissingFile(t *testing.T) {
	s := newTestService(t)
	_, err := s.Read(1, "sess-1", "nope.html")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDeleteMissingFileIsNoop(t *testing.T) {
	s := newTestService(t)
	assert.NoError(t, s.Delete(1, "sess-1", "nope.html"))
}

func TestListEmptySandbox(t *testing.T) {
	s := newTestService(t)
	names, err := s.List(1, "never-created")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestGetAllAndDeleteSession(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.Write(2, "sess-9", "index.html", []byte("<p>hi</p>")))
	require.NoError(t, s.Write(2, "sess-9", "style.css", []byte("p{}")))

	files, err := s.GetAll(2, "sess-9")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"index.html": "<p>hi</p>",
		"style.css":  "p{}",
	}, files)

	require.NoError(t, s.DeleteSession(2, "sess-9"))

	names, err := s.List(2, "sess-9")
	require.NoError(t, err)
	assert.Empty(t, names)
}
