package session

import (
	"errors"
	"fmt"

	"github.com/hydroloop/reclaim/pkg/models"
)

// ErrNoPrediction is returned when the latest prediction is requested
// before any batch has been analyzed.
var ErrNoPrediction = errors.New("no prediction available")

// ErrInvalidCommand is returned when a queued command is not one of the
// enumerated pump commands.
var ErrInvalidCommand = errors.New("invalid command")

// InvalidPhaseError reports an operation attempted outside its guarded
// phase.
type InvalidPhaseError struct {
	Op      string
	Current models.Phase
}

func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("%s not allowed in phase %s", e.Op, e.Current)
}

// InsufficientDataError reports an analysis requested before the batch
// reached capacity.
type InsufficientDataError struct {
	Required int
	Current  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d readings, have %d", e.Required, e.Current)
}

// IsInvalidPhase reports whether err is an InvalidPhaseError.
func IsInvalidPhase(err error) bool {
	var ipe *InvalidPhaseError
	return errors.As(err, &ipe)
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ide *InsufficientDataError
	return errors.As(err, &ide)
}
