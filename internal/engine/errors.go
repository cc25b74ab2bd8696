package engine

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when a query targets an absent or closed session.
var ErrNoSession = errors.New("no active engine session")

// Initialization stages reported by InitError.
const (
	StageBundle   = "bundle"
	StageWorker   = "worker"
	StageFetch    = "fetch"
	StagePrepare  = "prepare"
	StageRegister = "register"
	StageSetup    = "setup"
)

// InitError reports a failed session initialization and the stage it failed in.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// QueryError reports a failed query.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }
