package pcf

import (
	"encoding/binary"
	"math"

	"specfile/pkg/specmodel"
)

// devTableCells is the deviation-pair table's cell count: 20 pairs per cell
// across the 4 columns x 8 panels x 8 MCAs grid, per
// original_source/src/SpecFile_pcf.cpp's pcf_det_name_to_dev_pair_index.
// The table is always 20,480 bytes regardless of compression: i16 pairs
// address all 4 columns at 2 bytes/value, f32 pairs address only the first
// MaxColumns(false)=2 columns at 4 bytes/value, same total size.
const devTableCells = 4 * maxPanels * maxMCAs                // 256 cells
const devTableBytes16 = devTableCells * pairsPerCell * 2 * 2 // i16 pairs, 20,480 bytes
const devTableBytes32 = devTableBytes16                      // f32 pairs, same 20,480 bytes

// cellIndex mirrors pcf_det_name_to_dev_pair_index: a flat index into the
// (col, panel, mca) deviation-pair grid. ok is false if col isn't
// addressable under compressed's column width.
func cellIndex(col, panel, mca int, compressed bool) (idx int, ok bool) {
	if col < 0 || col >= MaxColumns(compressed) {
		return 0, false
	}
	return col*(maxPanels*maxMCAs*pairsPerCell) + panel*(maxMCAs*pairsPerCell) + mca*pairsPerCell, true
}

// DecodeDeviationPairTable reads the per-detector deviation-pair table for
// name, picking its (col, panel, mca) cell out of the flat table bytes.
// compressed selects i16 (true) or f32 (false) pair encoding. Pairs whose
// energy and offset are both zero are treated as unused padding and dropped.
func DecodeDeviationPairTable(table []byte, name string, compressed bool) []specmodel.DeviationPair {
	col, panel, mca, ok := NameToCell(name)
	if !ok {
		return nil
	}
	base, ok := cellIndex(col, panel, mca, compressed)
	if !ok {
		return nil
	}
	var pairs []specmodel.DeviationPair
	for i := 0; i < pairsPerCell; i++ {
		idx := base + i
		var energy, offset float64
		if compressed {
			off := idx * 4 // two i16 per pair
			if off+4 > len(table) {
				break
			}
			energy = float64(int16(binary.LittleEndian.Uint16(table[off:])))
			offset = float64(int16(binary.LittleEndian.Uint16(table[off+2:])))
		} else {
			off := idx * 8 // two f32 per pair
			if off+8 > len(table) {
				break
			}
			energy = float64(math.Float32frombits(binary.LittleEndian.Uint32(table[off:])))
			offset = float64(math.Float32frombits(binary.LittleEndian.Uint32(table[off+4:])))
		}
		if energy == 0 && offset == 0 {
			continue
		}
		pairs = append(pairs, specmodel.DeviationPair{Energy: energy, Offset: offset})
	}
	return pairs
}

// EncodeDeviationPairTable writes pairs into table at name's cell, allocating
// table if nil. Returns the (possibly newly allocated) table.
func EncodeDeviationPairTable(table []byte, name string, pairs []specmodel.DeviationPair, compressed bool) []byte {
	col, panel, mca, ok := NameToCell(name)
	if !ok {
		return table
	}
	base, ok := cellIndex(col, panel, mca, compressed)
	if !ok {
		return table
	}
	size := devTableBytes16
	if len(table) < size {
		grown := make([]byte, size)
		copy(grown, table)
		table = grown
	}
	for i, p := range pairs {
		if i >= pairsPerCell {
			break
		}
		idx := base + i
		if compressed {
			off := idx * 4
			binary.LittleEndian.PutUint16(table[off:], uint16(int16(p.Energy)))
			binary.LittleEndian.PutUint16(table[off+2:], uint16(int16(p.Offset)))
		} else {
			off := idx * 8
			binary.LittleEndian.PutUint32(table[off:], math.Float32bits(float32(p.Energy)))
			binary.LittleEndian.PutUint32(table[off+4:], math.Float32bits(float32(p.Offset)))
		}
	}
	return table
}
