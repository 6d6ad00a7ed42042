// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

const (
	PI   = 3.1415926535897932 // Pi
	LN10 = 2.302585092994046  // Natural logarithm of 10
)

// Default estimator parameters
const (
	DEFAULT_THRESHOLD             = 0.1   // Inlier threshold [m] (RANSAC, MSAC, PROSAC)
	DEFAULT_STOP_THRESHOLD        = 1e-3  // Stop threshold on the median residual [m] (LMedS, PROMedS)
	DEFAULT_CONFIDENCE            = 0.99  // Probability that the best subset is outlier free
	DEFAULT_MAX_ITERATIONS        = 5000  // Upper bound of robust iterations
	DEFAULT_PROGRESS_DELTA        = 0.05  // Minimum progress change between notifications
	DEFAULT_FALLBACK_DISTANCE_STD = 1e-3  // Distance std used when a reading carries none [m]
	DEFAULT_METHOD                = PROMEDS
)

// Non-linear solver constants
const (
	NLIN_MAX_LOOP_COUNT        = 200   // Maximum number of Levenberg-Marquardt iterations
	NLIN_CONVERGENCE_THRESHOLD = 1e-12 // Relative step size regarded as converged
	NLIN_INITIAL_LAMBDA        = 1e-3  // Initial damping factor
	NLIN_MAX_LAMBDA            = 1e12  // Damping factor above which no further descent is possible
	NLIN_MIN_LAMBDA            = 1e-15 // Lower bound of the damping factor
)

// Numerical tolerances
const (
	RANK_TOLERANCE    = 1e-10 // Relative singular value below which a system is regarded as degenerate
	PROSAC_MAX_DRAWS  = 200000
	LMEDS_INLIER_FACT = 2.5    // Robust std multiplier to classify LMedS inliers
	LMEDS_STD_FACT    = 1.4826 // Median absolute deviation to std for Gaussian noise
)
