package race

import "errors"

// Rejections. Each is reported to the race channel before it is returned.
var (
	ErrAlreadyStarted   = errors.New("race already started")
	ErrAlreadyEntered   = errors.New("already entered")
	ErrNotEntered       = errors.New("not entered")
	ErrNotStarted       = errors.New("race not started")
	ErrRaceFinished     = errors.New("race already finished")
	ErrAlreadyFinished  = errors.New("already finished")
	ErrAlreadyForfeited = errors.New("already forfeited")
	ErrNotFinished      = errors.New("not finished or forfeited")
	ErrRaceInProgress   = errors.New("race still in progress")
)

// ErrRaceClosed is returned for any operation on a race that has been closed.
var ErrRaceClosed = errors.New("race closed")

// ErrTooManyRaces is returned when the registry is at its active race limit.
var ErrTooManyRaces = errors.New("too many active races")

// IsRejection reports whether err is a user precondition failure rather than a fault.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrAlreadyStarted, ErrAlreadyEntered, ErrNotEntered, ErrNotStarted,
		ErrRaceFinished, ErrAlreadyFinished, ErrAlreadyForfeited, ErrNotFinished,
		ErrRaceInProgress, ErrRaceClosed, ErrTooManyRaces,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
