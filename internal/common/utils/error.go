package utils

import (
	"fmt"
	"runtime/debug"
)

// StackError は発生時点のスタックトレースを保持するエラーです
type StackError struct {
	Err   error
	Stack []byte
}

func (e *StackError) Error() string {
	return fmt.Sprintf("%v\nStack trace:\n%s", e.Err, e.Stack)
}

func (e *StackError) Unwrap() error {
	return e.Err
}

// GetStackWithError は err に現在のスタックトレースを付与します
func GetStackWithError(err error) error {
	if err == nil {
		return nil
	}
	return &StackError{Err: err, Stack: debug.Stack()}
}
