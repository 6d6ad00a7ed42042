// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import "errors"

// Error kinds returned by the estimators. Wrapped with fmt.Errorf("%w: ...")
// to add context, so callers match them with errors.Is.
var (
	// Malformed or contradictory constructor or setter input
	ErrInvalidArgument = errors.New("invalid argument")

	// Estimate called while required inputs are missing or insufficient
	ErrNotReady = errors.New("estimator not ready")

	// Mutation or nested estimation while an estimation is in progress
	ErrLocked = errors.New("estimator locked")

	// No model found by the robust loop
	ErrRobustEstimation = errors.New("robust estimation failed")

	// Degenerate geometry or a singular linear system
	ErrPositionEstimation = errors.New("position estimation failed")

	// Non-convergent refinement or unobtainable covariance
	ErrNumerical = errors.New("numerical failure")
)
