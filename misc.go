// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ------------------------------------
// Mini functions
// ------------------------------------

func SQ(x float64) float64 {
	return x * x
}

func ToDeg(rad float64) float64 {
	return rad / PI * 180.0
}

func ToRad(deg float64) float64 {
	return deg / 180.0 * PI
}

// ------------------------------------
// Debug print function
// ------------------------------------

// Destination of all debug output
var logW io.Writer = os.Stderr

// Replace the debug output destination. nil discards the output.
func SetLogOutput(w io.Writer) {
	if w == nil {
		logW = io.Discard
		return
	}
	logW = w
}

func PrintMat(X mat.Matrix) {
	r, c := X.Dims()
	fmt.Fprintf(logW, "(%d x %d)\n", r, c)
	fa := mat.Formatted(X, mat.Prefix(""), mat.Squeeze())
	fmt.Fprintf(logW, "%v\n", fa)
}

func PrintA(format string, a ...any) {
	fmt.Fprintf(logW, format, a...)
}

func PrintAIf(cond bool, format string, a ...any) {
	if cond {
		PrintA(format, a...)
	}
}

// Debug display level
// 0(OFF), 1(estimation summary), 2(model improvements), 3(per sample), 4(matrices)
var DBG_ int

// Debug display
func PrintD(v int, format string, a ...any) {
	PrintAIf(DBG_ >= v, format, a...)
}

func PrintE(err error) {
	fmt.Fprintf(logW, "err=%s\n", err.Error())
}

// ------------------------------------
// For command argument parsing
// ------------------------------------

// Robust estimation method
type Method int

const (
	RANSAC = Method(iota)
	LMEDS
	MSAC
	PROSAC
	PROMEDS
	DIRECT // Non-robust: every sample at once
)

var methodNames = map[Method]string{
	RANSAC:  "RANSAC",
	LMEDS:   "LMedS",
	MSAC:    "MSAC",
	PROSAC:  "PROSAC",
	PROMEDS: "PROMedS",
	DIRECT:  "DIRECT",
}

// Parse method name (case insensitive)
func ParseMethod(s string) (Method, error) {
	for m, n := range methodNames {
		if strings.EqualFold(n, s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown method %q", ErrInvalidArgument, s)
}

func (p *Method) Set(s string) error {
	m, err := ParseMethod(s)
	if err != nil {
		return err
	}
	*p = m
	return nil
}

func (p Method) String() string {
	if n, ok := methodNames[p]; ok {
		return n
	}
	return "UNKNOWN!"
}

// Whether the method uses quality scores
func (p Method) UsesQualityScores() bool {
	return p == PROSAC || p == PROMEDS
}

// Whether the method scores models by the median residual
func (p Method) UsesMedian() bool {
	return p == LMEDS || p == PROMEDS
}

// Kind of readings an estimator turns into samples
type Kind int

const (
	EST_RANGING = Kind(iota) // Ranging and ranging+RSSI readings, distance only
	EST_RSSI                 // RSSI and ranging+RSSI readings, RSSI only
	EST_RANGING_AND_RSSI     // Ranging+RSSI readings, distance and RSSI
	EST_MIXED                // Every reading
)

var kindNames = map[Kind]string{
	EST_RANGING:          "ranging",
	EST_RSSI:             "rssi",
	EST_RANGING_AND_RSSI: "ranging_and_rssi",
	EST_MIXED:            "mixed",
}

func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown estimator kind %q", ErrInvalidArgument, s)
}

func (p *Kind) Set(s string) error {
	k, err := ParseKind(s)
	if err != nil {
		return err
	}
	*p = k
	return nil
}

func (p Kind) String() string {
	if n, ok := kindNames[p]; ok {
		return n
	}
	return "UNKNOWN!"
}

func (p *Dim) Set(s string) error {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "2", "2d":
		*p = DIM2
	case "3", "3d":
		*p = DIM3
	default:
		return fmt.Errorf("%w: unsupported dimension %q", ErrInvalidArgument, s)
	}
	return nil
}

func (p Dim) String() string {
	return fmt.Sprintf("%dD", int(p))
}
