// Package accesslist implements the sender blacklist and recipient whitelist.
// Both lists are plain text files with one address per line and are re-read on
// every lookup, so edits take effect for the next SMTP command without a restart.
package accesslist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/fileutil"
)

// Normalize trims and lowercases an address for list comparison.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// List is a single address list file.
type List struct {
	name string
	path string

	// mu serializes writers; readers go straight to the file.
	mu sync.Mutex
}

// NewList returns a list backed by path. The file does not need to exist.
func NewList(name, path string) *List {
	return &List{name: name, path: path}
}

// Name returns the list's name ("blacklist" or "whitelist").
func (l *List) Name() string { return l.name }

// Path returns the backing file path.
func (l *List) Path() string { return l.path }

// Entries reads the file and returns its normalized entries in file order.
// A missing file is an empty list, not an error.
func (l *List) Entries() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.name, err)
	}
	return parseEntries(data), nil
}

// Contains reports whether addr is on the list. Read failures are logged and
// treated as an empty list.
func (l *List) Contains(addr string) bool {
	entries, err := l.Entries()
	if err != nil {
		slog.Error("access list unreadable, treating as empty",
			"list", l.name,
			"path", l.path,
			"error", err,
		)
		return false
	}
	want := Normalize(addr)
	if want == "" {
		return false
	}
	for _, e := range entries {
		if e == want {
			return true
		}
	}
	return false
}

// Add inserts addresses and rewrites the file sorted and de-duplicated.
// It returns how many addresses were not already present.
func (l *List) Add(addrs ...string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, err := l.loadSet()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, a := range addrs {
		a = Normalize(a)
		if a == "" || strings.HasPrefix(a, "#") {
			continue
		}
		if _, ok := set[a]; !ok {
			set[a] = struct{}{}
			added++
		}
	}
	if err := l.writeSet(set); err != nil {
		return 0, err
	}
	return added, nil
}

// Remove deletes addresses and returns how many were present.
func (l *List) Remove(addrs ...string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, err := l.loadSet()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, a := range addrs {
		a = Normalize(a)
		if _, ok := set[a]; ok {
			delete(set, a)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := l.writeSet(set); err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear empties the list, leaving an empty file behind.
func (l *List) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeSet(map[string]struct{}{})
}

func (l *List) loadSet() (map[string]struct{}, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e] = struct{}{}
	}
	return set, nil
}

func (l *List) writeSet(set map[string]struct{}) error {
	sorted := make([]string, 0, len(set))
	for a := range set {
		sorted = append(sorted, a)
	}
	sort.Strings(sorted)

	var buf bytes.Buffer
	for _, a := range sorted {
		buf.WriteString(a)
		buf.WriteByte('\n')
	}
	if err := fileutil.WriteFileAtomic(l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", l.name, err)
	}
	return nil
}

func parseEntries(data []byte) []string {
	var entries []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := Normalize(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

// Store groups the sender blacklist and the recipient whitelist.
type Store struct {
	Blacklist *List
	Whitelist *List
}

// New returns a Store reading the given files.
func New(blacklistPath, whitelistPath string) *Store {
	return &Store{
		Blacklist: NewList("blacklist", blacklistPath),
		Whitelist: NewList("whitelist", whitelistPath),
	}
}

// IsBlacklisted reports whether a sender is refused. A missing blacklist
// refuses nobody.
func (s *Store) IsBlacklisted(addr string) bool {
	return s.Blacklist.Contains(addr)
}

// IsWhitelisted reports whether a recipient is accepted. A missing whitelist
// accepts nobody.
func (s *Store) IsWhitelisted(addr string) bool {
	return s.Whitelist.Contains(addr)
}
