package shell

// Geometry is a terminal size in character cells.
type Geometry struct {
	Cols uint16
	Rows uint16
}

// GeometryFromPixels derives a terminal geometry from a pixel surface and a
// fixed glyph cell size. Both dimensions are clamped to at least one cell so
// degenerate surfaces never produce a zero-sized terminal.
func GeometryFromPixels(pixelWidth, pixelHeight, cellWidth, cellHeight int) Geometry {
	if cellWidth < 1 {
		cellWidth = 1
	}
	if cellHeight < 1 {
		cellHeight = 1
	}

	cols := pixelWidth / cellWidth
	rows := pixelHeight / cellHeight

	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	return Geometry{Cols: uint16(cols), Rows: uint16(rows)}
}
