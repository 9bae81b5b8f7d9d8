package indicators

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/rustyeddy/papertrader/errs"
)

// Value is an indicator reading that may be undefined during warm-up.
// The zero Value is undefined.
type Value struct {
	v  float64
	ok bool
}

// Defined wraps a computed reading. NaN and infinities are treated as
// undefined.
func Defined(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{v: v, ok: true}
}

// Undefined is the reading of an indicator that has not warmed up.
func Undefined() Value { return Value{} }

func (v Value) Defined() bool { return v.ok }

// Float returns the reading and whether it is defined.
func (v Value) Float() (float64, bool) { return v.v, v.ok }

// Force returns the reading or an error wrapping errs.ErrInsufficientHistory.
func (v Value) Force(name string) (float64, error) {
	if !v.ok {
		return 0, fmt.Errorf("%s: %w", name, errs.ErrInsufficientHistory)
	}
	return v.v, nil
}

// Or returns the reading, or def when undefined.
func (v Value) Or(def float64) float64 {
	if !v.ok {
		return def
	}
	return v.v
}

func (v Value) String() string {
	if !v.ok {
		return "NA"
	}
	return strconv.FormatFloat(v.v, 'f', 2, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Defined(f)
	return nil
}
