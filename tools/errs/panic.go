package errs

import "fmt"

// ErrPanic converts a recovered panic value into a Fatal-kind CodeError.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return &CodeError{Code: CodeInternal, Kind: KindFatal, Msg: "panic recovered", Detail: fmt.Sprint(r)}
}
