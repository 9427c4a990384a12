package dataset

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind identifies the scalar type held by a Cell.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Cell is a single typed scalar value. The zero value is Null.
//
// Cells own their payload; nested structures from structured sources are
// flattened to Text before a Cell is built.
type Cell struct {
	kind Kind
	num  float64
	text string
	b    bool
}

// Null returns an empty cell.
func Null() Cell { return Cell{} }

// Bool returns a boolean cell.
func Bool(v bool) Cell { return Cell{kind: KindBool, b: v} }

// Number returns a numeric cell. Non-finite values become Null.
func Number(v float64) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null()
	}
	return Cell{kind: KindNumber, num: v}
}

// Text returns a text cell. The empty string is kept as Text; callers that
// want blanks to be Null must map them before calling.
func Text(v string) Cell { return Cell{kind: KindText, text: v} }

// Kind returns the cell's tag.
func (c Cell) Kind() Kind { return c.kind }

// IsNull reports whether the cell holds no value.
func (c Cell) IsNull() bool { return c.kind == KindNull }

// IsBlank reports whether the cell is Null or empty text.
func (c Cell) IsBlank() bool {
	return c.kind == KindNull || (c.kind == KindText && c.text == "")
}

// Number returns the numeric payload.
func (c Cell) Number() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

// Bool returns the boolean payload.
func (c Cell) Bool() (bool, bool) {
	if c.kind != KindBool {
		return false, false
	}
	return c.b, true
}

// Text returns the text payload.
func (c Cell) Text() (string, bool) {
	if c.kind != KindText {
		return "", false
	}
	return c.text, true
}

// String renders the cell as text. Null renders as "", numbers use the
// shortest decimal form that round-trips.
func (c Cell) String() string {
	switch c.kind {
	case KindBool:
		return strconv.FormatBool(c.b)
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindText:
		return c.text
	default:
		return ""
	}
}

// Equal reports structural equality: same kind and same payload.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindBool:
		return c.b == o.b
	case KindNumber:
		return c.num == o.num
	case KindText:
		return c.text == o.text
	default:
		return true
	}
}

// MarshalJSON encodes the cell as its bare scalar.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindBool:
		return json.Marshal(c.b)
	case KindNumber:
		return json.Marshal(c.num)
	case KindText:
		return json.Marshal(c.text)
	default:
		return []byte("null"), nil
	}
}

type key struct {
	kind Kind
	num  float64
	text string
	b    bool
}

// Key returns a comparable identity for use as a map key. Two cells have the
// same key exactly when Equal reports true.
func (c Cell) Key() any {
	return key{kind: c.kind, num: c.num, text: c.text, b: c.b}
}
