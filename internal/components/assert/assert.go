// Package assert holds precondition checks for constructors, a failed check is a programmer
// error so it panics instead of returning an error.
package assert

import (
	"fmt"
	"reflect"
)

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func NotNil(value any) {
	if isNil(value) {
		panic(fmt.Sprintf("assert: expected non-nil value, got %T(nil)", value))
	}
}

func NotEmptyStr(value string) {
	if value == "" {
		panic("assert: expected non-empty string")
	}
}

func Positive(value int) {
	if value <= 0 {
		panic(fmt.Sprintf("assert: expected positive integer, got %d", value))
	}
}
