package board

// Bounds is the shape a grid cursor moves within.
type Bounds interface {
	Rows() int
	Columns() int
	Items(row, col int) int
}

// Cursor is the selected (row, column, item). -1 everywhere means nothing is selected.
type Cursor struct {
	Row  int
	Col  int
	Item int
}

var NoSelection = Cursor{Row: -1, Col: -1, Item: -1}

func (c Cursor) Selected() bool {
	return c.Row >= 0 && c.Col >= 0 && c.Item >= 0
}

// Hover is the cell under the mouse, -1 when outside the grid.
type Hover struct {
	Row int
	Col int
}

var NoHover = Hover{Row: -1, Col: -1}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp pulls every index into range. With no rows (or an empty cell) the index is 0.
func (c Cursor) Clamp(b Bounds) Cursor {
	c.Row = clampInt(c.Row, 0, b.Rows()-1)
	c.Col = clampInt(c.Col, 0, b.Columns()-1)
	if b.Rows() == 0 || b.Columns() == 0 {
		c.Item = 0
		return c
	}
	c.Item = clampInt(c.Item, 0, b.Items(c.Row, c.Col)-1)
	return c
}

func lastItem(b Bounds, row, col int) int {
	if n := b.Items(row, col); n > 0 {
		return n - 1
	}
	return 0
}

func (c Cursor) Left(b Bounds) Cursor {
	c = c.Clamp(b)
	if c.Col > 0 {
		c.Col--
		c.Item = lastItem(b, c.Row, c.Col)
	}
	return c
}

func (c Cursor) Right(b Bounds) Cursor {
	c = c.Clamp(b)
	if c.Col < b.Columns()-1 {
		c.Col++
		c.Item = 0
	}
	return c
}

// Up moves to the previous item, rolling into the last item of the row above.
func (c Cursor) Up(b Bounds) Cursor {
	c = c.Clamp(b)
	if c.Item > 0 {
		c.Item--
		return c
	}
	if c.Row > 0 {
		c.Row--
		c.Item = lastItem(b, c.Row, c.Col)
	}
	return c
}

// Down moves to the next item, rolling into the first item of the row below.
func (c Cursor) Down(b Bounds) Cursor {
	c = c.Clamp(b)
	if b.Rows() == 0 {
		return c
	}
	if c.Item < b.Items(c.Row, c.Col)-1 {
		c.Item++
		return c
	}
	if c.Row < b.Rows()-1 {
		c.Row++
		c.Item = 0
	}
	return c
}

// DetailBounds is the shape of the single-patient view: columns stacked vertically.
type DetailBounds interface {
	Columns() int
	Items(col int) int
}

type DetailCursor struct {
	Col  int
	Item int
}

func (c DetailCursor) Clamp(b DetailBounds) DetailCursor {
	c.Col = clampInt(c.Col, 0, b.Columns()-1)
	if b.Columns() == 0 {
		c.Item = 0
		return c
	}
	c.Item = clampInt(c.Item, 0, b.Items(c.Col)-1)
	return c
}

// Up rolls into the last item of the previous column.
func (c DetailCursor) Up(b DetailBounds) DetailCursor {
	c = c.Clamp(b)
	if c.Item > 0 {
		c.Item--
		return c
	}
	if c.Col > 0 {
		c.Col--
		if n := b.Items(c.Col); n > 0 {
			c.Item = n - 1
		} else {
			c.Item = 0
		}
	}
	return c
}

// Down rolls into the first item of the next column.
func (c DetailCursor) Down(b DetailBounds) DetailCursor {
	c = c.Clamp(b)
	if b.Columns() == 0 {
		return c
	}
	if c.Item < b.Items(c.Col)-1 {
		c.Item++
		return c
	}
	if c.Col < b.Columns()-1 {
		c.Col++
		c.Item = 0
	}
	return c
}
