// Package pcf implements the PCF binary spectrum format reader/writer of
// spec.md §4.7/§6, grounded on original_source/src/SpecFile_pcf.cpp.
package pcf

import "strings"

// NameToCell maps an RPM-grid detector name ("Aa1", "a1", ...) to its
// (column, panel, mca) deviation-pair-table cell, per
// original_source/src/SpecFile_pcf.cpp's pcf_det_name_to_dev_pair_index:
// a two-character name assumes column 'a'; a three-character name uses its
// middle character for column. Returns ok=false for non-conforming names.
func NameToCell(name string) (col, panel, mca int, ok bool) {
	if len(name) < 2 || len(name) > 3 {
		return 0, 0, 0, false
	}
	lower := strings.ToLower(name)
	last := lower[len(lower)-1]
	if last < '1' || last > '8' {
		return 0, 0, 0, false
	}
	colChar := byte('a')
	if len(lower) == 3 {
		colChar = lower[1]
	}
	panelChar := lower[0]
	if colChar < 'a' || colChar > 'd' || panelChar < 'a' || panelChar > 'h' {
		return 0, 0, 0, false
	}
	return int(colChar - 'a'), int(panelChar - 'a'), int(last - '1'), true
}

// CellToName is the inverse of NameToCell, producing a canonical
// three-character RPM name, e.g. (0,0,0) -> "Aa1".
func CellToName(col, panel, mca int) string {
	return string([]byte{'A' + byte(panel), 'a' + byte(col), '1' + byte(mca)})
}

// MaxColumns returns the number of columns addressable in the deviation
// pair table for the given compression mode (4 compressed, 2 uncompressed).
func MaxColumns(compressed bool) int {
	if compressed {
		return 4
	}
	return 2
}

const (
	maxPanels = 8
	maxMCAs   = 8
	pairsPerCell = 20
)
