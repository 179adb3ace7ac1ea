package accesslist

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMissingFilesUseAsymmetricDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(filepath.Join(dir, "blacklist.txt"), filepath.Join(dir, "whitelist.txt"))

	assert.False(t, s.IsBlacklisted("anyone@example.com"), "missing blacklist must allow all senders")
	assert.False(t, s.IsWhitelisted("inbox@example.com"), "missing whitelist must deny all recipients")
}

func TestLookupNormalizesEntriesAndQueries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bl := writeList(t, dir, "blacklist.txt", "  Spam@Evil.COM  \n\n# a comment\nother@evil.com")
	wl := writeList(t, dir, "whitelist.txt", "Inbox@Example.com\r\n")
	s := New(bl, wl)

	tests := []struct {
		name string
		fn   func(string) bool
		addr string
		want bool
	}{
		{"blacklisted mixed case", s.IsBlacklisted, "SPAM@evil.com", true},
		{"blacklisted last line without newline", s.IsBlacklisted, "other@evil.com", true},
		{"comment is not an entry", s.IsBlacklisted, "# a comment", false},
		{"not blacklisted", s.IsBlacklisted, "friend@example.com", false},
		{"whitelisted with CRLF", s.IsWhitelisted, " inbox@example.com ", true},
		{"not whitelisted", s.IsWhitelisted, "other@example.com", false},
		{"empty address", s.IsWhitelisted, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.addr))
		})
	}
}

func TestEditsVisibleWithoutRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	wl := filepath.Join(dir, "whitelist.txt")
	s := New(filepath.Join(dir, "blacklist.txt"), wl)

	assert.False(t, s.IsWhitelisted("new@example.com"))
	require.NoError(t, os.WriteFile(wl, []byte("new@example.com\n"), 0o644))
	assert.True(t, s.IsWhitelisted("new@example.com"))
}

func TestUnreadableFileTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory in place of the file cannot be read as a list.
	wl := filepath.Join(dir, "whitelist.txt")
	require.NoError(t, os.Mkdir(wl, 0o755))

	l := NewList("whitelist", wl)
	_, err := l.Entries()
	require.Error(t, err)
	assert.False(t, l.Contains("inbox@example.com"))
}

func TestAddRemoveClear(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "whitelist.txt")
	l := NewList("whitelist", path)

	added, err := l.Add("B@example.com", "a@example.com", "b@example.com", "  ")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com\nb@example.com\n", string(data))

	added, err = l.Add("a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	removed, err := l.Remove("A@EXAMPLE.COM", "missing@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"b@example.com"}, entries)

	require.NoError(t, l.Clear())
	entries, err = l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.FileExists(t, path)
}

func TestAddDropsCommentsFromExistingFile(t *testing.T) {
	t.Parallel()

	path := writeList(t, t.TempDir(), "blacklist.txt", "# header\nz@evil.com\n")
	l := NewList("blacklist", path)

	_, err := l.Add("a@evil.com")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a@evil.com\nz@evil.com\n", string(data))
}

func TestConcurrentAddAndLookup(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "whitelist.txt")
	l := NewList("whitelist", path)
	_, err := l.Add("stable@example.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := l.Add(string(rune('a'+i)) + "@example.com")
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			assert.True(t, l.Contains("stable@example.com"))
		}()
	}
	wg.Wait()

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 9)
}
