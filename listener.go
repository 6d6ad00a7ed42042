// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

// Listener receives estimation events. Every call is synchronous, on the
// goroutine that called Estimate, while the estimator is locked.
type Listener interface {
	OnEstimateStart(e *Estimator)
	OnEstimateEnd(e *Estimator)
	OnEstimateNextIteration(e *Estimator, iteration int)
	OnEstimateProgressChange(e *Estimator, progress float64)
}

// ListenerFuncs adapts optional closures to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Start          func(e *Estimator)
	End            func(e *Estimator)
	NextIteration  func(e *Estimator, iteration int)
	ProgressChange func(e *Estimator, progress float64)
}

func (l *ListenerFuncs) OnEstimateStart(e *Estimator) {
	if l.Start != nil {
		l.Start(e)
	}
}

func (l *ListenerFuncs) OnEstimateEnd(e *Estimator) {
	if l.End != nil {
		l.End(e)
	}
}

func (l *ListenerFuncs) OnEstimateNextIteration(e *Estimator, iteration int) {
	if l.NextIteration != nil {
		l.NextIteration(e, iteration)
	}
}

func (l *ListenerFuncs) OnEstimateProgressChange(e *Estimator, progress float64) {
	if l.ProgressChange != nil {
		l.ProgressChange(e, progress)
	}
}
