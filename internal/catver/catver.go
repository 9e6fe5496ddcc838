// Package catver reads MAME-style category databases (catver.ini).
//
// Only the [Category] section is consumed. Parsing is a pure function of the
// input text; Load adds the file I/O and decoding around it.
package catver

import "strings"

// SectionCategory is the only section header whose entries are collected.
const SectionCategory = "[Category]"

// Database maps ROM identifiers to free-form category strings. It is built
// once per run and never mutated afterwards.
type Database struct {
	entries map[string]string
}

// New builds a Database from an existing mapping. The map is copied.
func New(entries map[string]string) Database {
	cp := make(map[string]string, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return Database{entries: cp}
}

// Lookup returns the category for a ROM identifier.
func (d Database) Lookup(id string) (string, bool) {
	category, ok := d.entries[id]
	return category, ok
}

// Len reports the number of entries.
func (d Database) Len() int {
	return len(d.entries)
}

// Entries returns a copy of the underlying mapping.
func (d Database) Entries() map[string]string {
	cp := make(map[string]string, len(d.entries))
	for k, v := range d.entries {
		cp[k] = v
	}
	return cp
}

type sectionState int

const (
	beforeCategory sectionState = iota
	inCategory
	afterCategory
)

// Parse builds a Database from catver.ini text.
//
// Lines are trimmed before classification. Blank lines and ';' comments are
// skipped. Any "[...]" line is a section header; the first [Category] header
// opens the collected section and the next different header closes it for
// good. Inside the section each line splits on its first '='; lines without
// one, or starting with one, are ignored. Later duplicates overwrite earlier
// values.
func Parse(text string) Database {
	entries := make(map[string]string)
	state := beforeCategory

	for line := range strings.SplitSeq(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			continue
		}

		if strings.HasPrefix(trimmed, "[") {
			switch {
			case trimmed == SectionCategory && state == beforeCategory:
				state = inCategory
			case trimmed != SectionCategory && state == inCategory:
				state = afterCategory
			}
			continue
		}

		if state != inCategory {
			continue
		}

		idx := strings.IndexByte(trimmed, '=')
		if idx <= 0 {
			continue
		}
		entries[trimmed[:idx]] = trimmed[idx+1:]
	}

	return Database{entries: entries}
}
