// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is an error that picks its own exit code.
type ExitCoder interface {
	error
	ExitCode() int
}

// UsageError reports a command-line mistake. It exits with code 2.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// ExitCode implements ExitCoder.
func (e *UsageError) ExitCode() int { return 2 }

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// Fatal writes "program: err" to stderr and exits with the code chosen
// by ExitCode.
func Fatal(program string, err error) {
	Report(os.Stderr, program, err)
	os.Exit(ExitCode(err))
}

// Report writes the one-line error report Fatal prints.
func Report(w io.Writer, program string, err error) {
	fmt.Fprintf(w, "%s: %v\n", program, err)
}

// ExitCode returns the exit code for err: 0 for nil, the code of any
// ExitCoder in the chain, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
