package logging

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EntryOptions controls the optional fields written with a sink entry.
type EntryOptions struct {
	ShowPID  bool
	ShowHost bool
}

// Sink is the persistent per-name log consumed by the daemon runner.
// Append writes one entry; Prune drops entries older than the given number
// of days and is a no-op for zero or negative values.
type Sink interface {
	Append(logName, message string, opts EntryOptions) error
	Prune(logName string, olderThanDays int) error
}

// Entry is one parsed sink line.
type Entry struct {
	Time    time.Time
	PID     int
	Host    string
	Message string
}

// FileSink stores each log name as <dir>/<name>.txt with one entry per line:
//
//	<RFC3339Nano UTC>\t[pid=<n> ][host=<h>]\t<message>
type FileSink struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewFileSink returns a sink rooted at dir. The directory is created on
// first write.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, now: time.Now}
}

// WithNow overrides the timestamp source; used by tests to write aged entries.
func (s *FileSink) WithNow(now func() time.Time) *FileSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Path returns the file backing logName.
func (s *FileSink) Path(logName string) string {
	return filepath.Join(s.dir, logName+".txt")
}

// Append writes one entry for logName.
func (s *FileSink) Append(logName, message string, opts EntryOptions) error {
	if err := validLogName(logName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create sink directory: %w", err)
	}
	file, err := os.OpenFile(s.Path(logName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open sink %s: %w", logName, err)
	}
	defer file.Close()

	entry := Entry{Time: s.now().UTC(), Message: message}
	if opts.ShowPID {
		entry.PID = os.Getpid()
	}
	if opts.ShowHost {
		entry.Host, _ = os.Hostname()
	}
	if _, err := file.WriteString(formatEntry(entry)); err != nil {
		return fmt.Errorf("write sink %s: %w", logName, err)
	}
	return nil
}

// Prune rewrites logName keeping only entries newer than olderThanDays.
// Lines that cannot be parsed are kept.
func (s *FileSink) Prune(logName string, olderThanDays int) error {
	if olderThanDays <= 0 {
		return nil
	}
	if err := validLogName(logName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(logName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sink %s: %w", logName, err)
	}

	cutoff := s.now().AddDate(0, 0, -olderThanDays)
	var kept strings.Builder
	dropped := 0
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if line == "" {
			continue
		}
		if entry, ok := parseEntry(line); ok && entry.Time.Before(cutoff) {
			dropped++
			continue
		}
		kept.WriteString(line)
	}
	if dropped == 0 {
		return nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(kept.String()), 0o644); err != nil {
		return fmt.Errorf("write pruned sink %s: %w", logName, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace sink %s: %w", logName, err)
	}
	return nil
}

// Entries returns the parsed entries for logName in file order.
func (s *FileSink) Entries(logName string) ([]Entry, error) {
	if err := validLogName(logName); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.Path(logName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", logName, err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if entry, ok := parseEntry(scanner.Text()); ok {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan sink %s: %w", logName, err)
	}
	return entries, nil
}

func validLogName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("log name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("log name %q must not contain path separators", name)
	}
	return nil
}

func formatEntry(e Entry) string {
	var fields []string
	if e.PID > 0 {
		fields = append(fields, "pid="+strconv.Itoa(e.PID))
	}
	if e.Host != "" {
		fields = append(fields, "host="+e.Host)
	}
	message := strings.ReplaceAll(e.Message, "\n", " ")
	return e.Time.Format(time.RFC3339Nano) + "\t" + strings.Join(fields, " ") + "\t" + message + "\n"
}

func parseEntry(line string) (Entry, bool) {
	parts := strings.SplitN(strings.TrimRight(line, "\n"), "\t", 3)
	if len(parts) != 3 {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Entry{}, false
	}
	entry := Entry{Time: ts, Message: parts[2]}
	for _, field := range strings.Fields(parts[1]) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			entry.PID, _ = strconv.Atoi(value)
		case "host":
			entry.Host = value
		}
	}
	return entry, true
}

// MemorySink records entries in memory. Prune calls are counted but do not
// drop entries.
type MemorySink struct {
	mu      sync.Mutex
	entries map[string][]string
	prunes  map[string]int
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{entries: map[string][]string{}, prunes: map[string]int{}}
}

func (m *MemorySink) Append(logName, message string, _ EntryOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[logName] = append(m.entries[logName], message)
	return nil
}

func (m *MemorySink) Prune(logName string, olderThanDays int) error {
	if olderThanDays <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunes[logName]++
	return nil
}

// Messages returns a copy of the messages appended to logName.
func (m *MemorySink) Messages(logName string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries[logName]))
	copy(out, m.entries[logName])
	return out
}

// Prunes returns how many effective Prune calls logName received.
func (m *MemorySink) Prunes(logName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prunes[logName]
}
