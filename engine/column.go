package engine

import (
	"strconv"
	"strings"
)

// maxNameLength bounds table and column names (50 bytes, per schema).
const maxNameLength = 50

// delColumn is the reserved tombstone column present in every user table.
const delColumn = "~del"
const delColumnLength = 1
const delLive = " "
const delDead = "y"

// ColumnDef describes one fixed-width field of a record.
type ColumnDef struct {
	Name   string
	Length int
	Offset int
}

// parseDef parses the contents of a <table>.def file: one "name:length"
// line per column, in schema order.
func parseDef(data []byte) ([]string, map[string]ColumnDef, error) {
	order := make([]string, 0)
	columns := make(map[string]ColumnDef)
	offset := 0

	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		name, length, err := parseDefLine(line)
		if err != nil {
			return nil, nil, err
		}
		order = append(order, name)
		columns[name] = ColumnDef{Name: name, Length: length, Offset: offset}
		offset += length
	}
	return order, columns, nil
}

func parseDefLine(line string) (string, int, error) {
	name, lengthStr, ok := strings.Cut(line, ":")
	if !ok {
		return "", 0, newErr(KindIoError, "parseDef", "malformed column definition line %q", line)
	}
	length, err := strconv.Atoi(lengthStr)
	if err != nil {
		return "", 0, newErr(KindIoError, "parseDef", "malformed column length in %q", line)
	}
	return name, length, nil
}

// formatDefLine renders one "name:length\n" line.
func formatDefLine(name string, length int) string {
	return name + ":" + strconv.Itoa(length) + "\n"
}

// rowLengthOf computes 1 (terminator newline) + sum of column lengths.
func rowLengthOf(order []string, columns map[string]ColumnDef) int {
	total := 1
	for _, name := range order {
		total += columns[name].Length
	}
	return total
}
