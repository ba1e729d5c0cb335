// Package ini provides the line-oriented configuration store that holds
// per-title patch, code and speed-hint sections.
//
// A file is a list of [Section] headers, each followed by lines. Every
// content line of a section is kept in order and is returned by GetLines.
// Lines of the form "key = value" additionally act as key/value pairs
// unless they start with one of the code markers '$', '+' or '*'. Comments
// start with '#' and run to the end of the line.
package ini

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type section struct {
	name  string
	lines []string
}

// File is an in-memory configuration file.
type File struct {
	sections []*section
}

// New creates an empty File.
func New() *File {
	return &File{}
}

// Parse reads a File from r. Lines before the first section header are
// ignored.
func Parse(r io.Reader) (*File, error) {
	f := New()
	var current *section

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line[0] == '[' {
			if end := strings.IndexByte(line, ']'); end > 0 {
				current = f.getOrCreate(line[1:end])
				continue
			}
		}

		if current != nil {
			current.lines = append(current.lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ini: %w", err)
	}

	return f, nil
}

// Load reads a File from disk. A missing file yields an empty File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ini file: %w", err)
	}

	return Parse(bytes.NewReader(data))
}

// Save writes the File to disk, creating parent directories as needed.
func (f *File) Save(path string) error {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create ini directory: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write ini file: %w", err)
	}

	return nil
}

// WriteTo implements io.WriterTo.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for i, s := range f.sections {
		if i > 0 {
			n, err := io.WriteString(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}

		n, err := fmt.Fprintf(w, "[%s]\n", s.name)
		total += int64(n)
		if err != nil {
			return total, err
		}

		for _, line := range s.lines {
			n, err := fmt.Fprintln(w, line)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}

	return total, nil
}

// Sections returns the section names in file order.
func (f *File) Sections() []string {
	names := make([]string, 0, len(f.sections))
	for _, s := range f.sections {
		names = append(names, s.name)
	}
	return names
}

// GetLines returns the content lines of a section with comments removed.
func (f *File) GetLines(name string) []string {
	s := f.get(name)
	if s == nil {
		return nil
	}

	var lines []string
	for _, raw := range s.lines {
		if line := stripComment(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// SetLines replaces every line of a section, creating the section if
// needed.
func (f *File) SetLines(name string, lines []string) {
	s := f.getOrCreate(name)
	s.lines = append([]string(nil), lines...)
}

// GetKeys returns the keys of a section in order of first appearance.
func (f *File) GetKeys(name string) []string {
	var keys []string
	seen := make(map[string]bool)

	for _, line := range f.GetLines(name) {
		key, _, ok := splitKeyValue(line)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	return keys
}

// Get returns the value of a key. When a key appears more than once the
// last value wins.
func (f *File) Get(name, key string) (string, bool) {
	value, found := "", false

	for _, line := range f.GetLines(name) {
		k, v, ok := splitKeyValue(line)
		if ok && k == key {
			value, found = v, true
		}
	}

	return value, found
}

// Set replaces every occurrence of a key with a single "key = value" line
// at the end of the section.
func (f *File) Set(name, key, value string) {
	s := f.getOrCreate(name)

	kept := s.lines[:0]
	for _, line := range s.lines {
		if k, _, ok := splitKeyValue(stripComment(line)); ok && k == key {
			continue
		}
		kept = append(kept, line)
	}

	s.lines = append(kept, key+" = "+value)
}

// Merge appends the lines of every section of other to the matching
// section of f. Keys defined in other therefore override those in f.
func (f *File) Merge(other *File) {
	for _, s := range other.sections {
		dst := f.getOrCreate(s.name)
		dst.lines = append(dst.lines, s.lines...)
	}
}

// Clone returns a deep copy of the File.
func (f *File) Clone() *File {
	c := New()
	c.Merge(f)
	return c
}

func (f *File) get(name string) *section {
	for _, s := range f.sections {
		if strings.EqualFold(s.name, name) {
			return s
		}
	}
	return nil
}

func (f *File) getOrCreate(name string) *section {
	if s := f.get(name); s != nil {
		return s
	}

	s := &section{name: name}
	f.sections = append(f.sections, s)
	return s
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// splitKeyValue splits a comment-free line into a key and an unquoted
// value.
func splitKeyValue(line string) (key, value string, ok bool) {
	if line == "" || strings.ContainsRune("$+*", rune(line[0])) {
		return "", "", false
	}

	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}

	value = strings.TrimSpace(value)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}

	return key, value, true
}
