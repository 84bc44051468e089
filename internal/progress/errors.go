package progress

import (
	"errors"
	"fmt"
)

// ErrConflict is returned by an Updater when the stored record changed
// between its read and its conditional write.
var ErrConflict = errors.New("progress write conflict")

// ErrRetriesExhausted reports that every transactional attempt failed.
type ErrRetriesExhausted struct {
	Key      Key
	Attempts int
	Err      error
}

func (e *ErrRetriesExhausted) Error() string {
	return fmt.Sprintf("update progress %s/%s: gave up after %d transactional attempts: %v",
		e.Key.UserID, e.Key.SkillID, e.Attempts, e.Err)
}

func (e *ErrRetriesExhausted) Unwrap() error { return e.Err }
