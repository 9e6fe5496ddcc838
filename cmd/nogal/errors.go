package main

import "errors"

// reportedError marks a failure whose message has already been written to
// stderr, so main only needs to set the exit status.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() error { return e.err }

func alreadyReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
