package lut

import (
	"fmt"
	"strings"

	"github.com/jpfielding/dicomimg.go/pkg/errs"
)

// Function identifies a windowing curve. The zero value means the shape is
// defined by a table.
type Function uint8

const (
	FuncTable Function = iota
	FuncLinear
	FuncSigmoid
	FuncSigmoidNorm
	FuncLog
	FuncLogInv
)

var functionNames = map[Function]string{
	FuncLinear:      "LINEAR",
	FuncSigmoid:     "SIGMOID",
	FuncSigmoidNorm: "SIGMOID_NORM",
	FuncLog:         "LOG",
	FuncLogInv:      "LOG_INV",
}

// Shape is a windowing curve: either one of the predefined functions or an
// explicit table, never both
type Shape struct {
	fn          Function
	explanation string
	table       *Table
}

// Predefined shapes
var (
	Linear      = Shape{fn: FuncLinear, explanation: "Linear"}
	Sigmoid     = Shape{fn: FuncSigmoid, explanation: "Sigmoid"}
	SigmoidNorm = Shape{fn: FuncSigmoidNorm, explanation: "Sigmoid Normalize"}
	Log         = Shape{fn: FuncLog, explanation: "Logarithmic"}
	LogInv      = Shape{fn: FuncLogInv, explanation: "Logarithmic Inverse"}
)

// Shapes lists the predefined function shapes
func Shapes() []Shape {
	return []Shape{Linear, Sigmoid, SigmoidNorm, Log, LogInv}
}

// NewTableShape defines a shape by a lookup table
func NewTableShape(t *Table, explanation string) Shape {
	if t == nil {
		errs.Panic("table shape", "nil table")
	}
	return Shape{fn: FuncTable, explanation: explanation, table: t}
}

// ParseShape resolves a function name (LINEAR, SIGMOID, SIGMOID_NORM, LOG,
// LOG_INV), ignoring case
func ParseShape(name string) (Shape, bool) {
	for _, s := range Shapes() {
		if strings.EqualFold(functionNames[s.fn], strings.TrimSpace(name)) {
			return s, true
		}
	}
	return Shape{}, false
}

// WithExplanation returns the same curve under another label
func (s Shape) WithExplanation(e string) Shape {
	s.explanation = e
	return s
}

// Function returns the curve, FuncTable for table shapes
func (s Shape) Function() Function { return s.fn }

// Table returns the defining table of a table shape
func (s Shape) Table() *Table { return s.table }

// IsTable reports whether the shape is defined by a table
func (s Shape) IsTable() bool { return s.fn == FuncTable && s.table != nil }

// IsZero reports an unset shape
func (s Shape) IsZero() bool { return s.fn == FuncTable && s.table == nil }

// Name returns the function name, or "TABLE"
func (s Shape) Name() string {
	if s.fn == FuncTable {
		return "TABLE"
	}
	return functionNames[s.fn]
}

// Equal compares curves, ignoring explanations
func (s Shape) Equal(o Shape) bool {
	if s.fn != FuncTable {
		return s.fn == o.fn
	}
	return o.fn == FuncTable && s.table == o.table
}

func (s Shape) String() string { return s.explanation }

// MarshalText writes the function name; table shapes have no text form
func (s Shape) MarshalText() ([]byte, error) {
	if s.fn == FuncTable {
		return nil, fmt.Errorf("table shape %q has no text form", s.explanation)
	}
	return []byte(functionNames[s.fn]), nil
}

// UnmarshalText parses a function name
func (s *Shape) UnmarshalText(b []byte) error {
	v, ok := ParseShape(string(b))
	if !ok {
		return fmt.Errorf("unknown lut shape %q", string(b))
	}
	*s = v
	return nil
}
