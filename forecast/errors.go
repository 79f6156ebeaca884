package forecast

import (
	"errors"
	"fmt"
)

// Domain errors for forecast operations.
var (
	// ErrDimensionMismatch indicates the state space matrices, initial state or
	// shocks do not conform.
	ErrDimensionMismatch = errors.New("forecast: dimension mismatch")

	// ErrZLBCorrection indicates the closed-form lower bound correction could not
	// hold the rate at the floor.
	ErrZLBCorrection = errors.New("forecast: zero lower bound correction failed")

	// ErrInvalidSettings indicates an unusable forecast configuration.
	ErrInvalidSettings = errors.New("forecast: invalid settings")

	// ErrShockCovariance indicates the shock covariance could not be factorized.
	ErrShockCovariance = errors.New("forecast: shock covariance cannot be factorized")

	// ErrUnsolved indicates a gensys solution without a reduced form.
	ErrUnsolved = errors.New("forecast: model has no reduced form")
)

// PeriodError wraps a failure with the forecast period it occurred in.
type PeriodError struct {
	Period int
	Err    error
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("period %d: %v", e.Period, e.Err)
}

func (e *PeriodError) Unwrap() error {
	return e.Err
}

// DrawError wraps a failure with the index of the draw that produced it.
type DrawError struct {
	Draw int
	Err  error
}

func (e *DrawError) Error() string {
	return fmt.Sprintf("draw %d: %v", e.Draw, e.Err)
}

func (e *DrawError) Unwrap() error {
	return e.Err
}
