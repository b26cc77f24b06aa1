package order

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	tableURIPattern    = regexp.MustCompile(`(?i)table[/_-](\d+)`)
	tableNumberPattern = regexp.MustCompile(`^\d+$`)
)

// ParseTableCode extracts a table number from a scanned or typed code.
// "smartdine://table/5", "TABLE_5", "table-5" and "5" all yield "5".
func ParseTableCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", fmt.Errorf("%w: empty code", ErrInvalidTableCode)
	}
	if m := tableURIPattern.FindStringSubmatch(code); m != nil {
		return m[1], nil
	}
	if tableNumberPattern.MatchString(code) {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTableCode, code)
}

// TableBinding holds the table a session is ordering for
type TableBinding struct {
	table string
	bound bool
}

// SetTable parses raw and overwrites the binding. On failure the binding is
// left as it was.
func (b *TableBinding) SetTable(raw string) error {
	table, err := ParseTableCode(raw)
	if err != nil {
		return err
	}
	b.table = table
	b.bound = true
	return nil
}

// CurrentTable returns the bound table and whether one is bound
func (b *TableBinding) CurrentTable() (string, bool) {
	return b.table, b.bound
}

// Reset unbinds the table
func (b *TableBinding) Reset() {
	b.table = ""
	b.bound = false
}
