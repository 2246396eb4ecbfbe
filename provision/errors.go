package provision

import (
	"errors"
	"fmt"
)

// Sentinel errors for provisioning runs.
var (
	// ErrNoBroker is returned when a runner has no broker client.
	ErrNoBroker = errors.New("broker client is required")

	// ErrCredentialsRequired is returned when username or password is empty.
	ErrCredentialsRequired = errors.New("username and password are required")

	// ErrSSHUsernameRequired is returned when no SSH login user is configured.
	ErrSSHUsernameRequired = errors.New("ssh username is required")
)

// StageError reports the operation that stopped a run and the last stage
// the run reached before it.
type StageError struct {
	Stage Stage
	Op    string
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s (stage %s): %v", e.Op, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the last stage reached by the run that produced err,
// and false if err is not a StageError.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return StageUnauthenticated, false
}
