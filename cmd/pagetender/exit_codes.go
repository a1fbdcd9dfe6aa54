package main

import (
	pterrors "github.com/natwellis/pagetender/pkg/errors"
)

// Exit codes, grouped by which collaborator failed so wrappers (cron,
// CI) can tell a bad config from a flaky model endpoint.
const (
	exitOK      = 0
	exitGeneric = 1
	exitConfig  = 2
	exitModel   = 3
	exitPage    = 4
	exitCommit  = 5
)

// exitCodeForError maps a pipeline error to a process exit code.
func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	switch pterrors.GetCode(err) {
	case pterrors.ErrCodeConfigLoad, pterrors.ErrCodeConfigParse, pterrors.ErrCodeConfigInvalid:
		return exitConfig
	case pterrors.ErrCodeModelNotFound, pterrors.ErrCodeModelAPIError, pterrors.ErrCodeModelTimeout:
		return exitModel
	case pterrors.ErrCodePageRead, pterrors.ErrCodePageWrite,
		pterrors.ErrCodeMarkerNotFound, pterrors.ErrCodeTimestampTargetMissing:
		return exitPage
	case pterrors.ErrCodeCommitFailed:
		return exitCommit
	default:
		return exitGeneric
	}
}
