// This file is part of dumpcore.
//
// dumpcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dumpcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dumpcore.  If not, see <https://www.gnu.org/licenses/>.

// Package test collects small assertion helpers used by _test.go files
// throughout the module, in place of a third-party assertion library.
package test

import (
	"reflect"
	"testing"
)

func isSuccess(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return x
	case error:
		return x == nil
	default:
		return false
	}
}

// ExpectSuccess fails the test unless v represents success: true, a nil
// error, or literal nil.
func ExpectSuccess(t *testing.T, v interface{}) {
	t.Helper()
	if !isSuccess(v) {
		t.Errorf("expected success, got %v", v)
	}
}

// ExpectFailure fails the test unless v represents failure: false or a
// non-nil error.
func ExpectFailure(t *testing.T, v interface{}) {
	t.Helper()
	if isSuccess(v) {
		t.Errorf("expected failure, got %v", v)
	}
}

// Equate fails the test unless a and b are deeply equal.
func Equate(t *testing.T, a, b interface{}) {
	t.Helper()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("not equal: %v != %v", a, b)
	}
}

// ExpectEquality is Equate under a more descriptive name.
func ExpectEquality(t *testing.T, a, b interface{}) {
	t.Helper()
	Equate(t, a, b)
}

// ExpectInequality fails the test if a and b are deeply equal.
func ExpectInequality(t *testing.T, a, b interface{}) {
	t.Helper()
	if reflect.DeepEqual(a, b) {
		t.Errorf("unexpected equality: %v == %v", a, b)
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

// ExpectApproximate fails the test unless value, interpreted as a number,
// lies within the fraction tolerance of expected. A tolerance of 0.1
// accepts anything within ten percent either side of expected.
func ExpectApproximate(t *testing.T, value, expected interface{}, tolerance float64) {
	t.Helper()

	fv, ok := toFloat64(value)
	if !ok {
		t.Errorf("ExpectApproximate: %v is not numeric", value)
		return
	}
	fe, ok := toFloat64(expected)
	if !ok {
		t.Errorf("ExpectApproximate: %v is not numeric", expected)
		return
	}

	top := fe * (1 + tolerance)
	bottom := fe * (1 - tolerance)
	if fv < bottom || fv > top {
		t.Errorf("not approximately equal: %v != %v (tolerance %v)", value, expected, tolerance)
	}
}
