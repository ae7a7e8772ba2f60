package chretest

import (
	"fmt"
	"strconv"
)

// ConvertToIntegerOrFail parses a base 10 int32, aborting when input is not
// one. Surrounding whitespace is rejected; trim shell output first.
func ConvertToIntegerOrFail(r Reporter, input string) int32 {
	v, err := strconv.ParseInt(input, 10, 32)
	if err != nil {
		r.Fatal(&FatalError{Message: fmt.Sprintf("Not an integer: %q", input), Err: err})
		return -1
	}
	return int32(v)
}

// ConvertToIntegerOrReturnZero parses a base 10 int32, returning 0 when
// input is not one.
func ConvertToIntegerOrReturnZero(input string) int32 {
	v, err := strconv.ParseInt(input, 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}
