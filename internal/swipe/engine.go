// Package swipe runs the daily like routine for one account: fetch
// recommendation batches and act on each profile until the configured
// quota is spent or the active window closes.
package swipe

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/swipedeck/swipedeck/internal/tinder"
)

// ErrNoRecommendations indicates the upstream returned an empty batch, so
// the routine cannot make further progress.
var ErrNoRecommendations = errors.New("swipe: no recommendations available")

// Settings controls one run of the routine.
type Settings struct {
	// StartHour and EndHour bound the active window, inclusive on both
	// ends. EndHour before StartHour means the window is closed.
	StartHour int
	EndHour   int
	// LikesPerDay is the like quota for the run. Zero disables the run.
	LikesPerDay int
	// LeftSwipeRatio is the probability of passing instead of liking a
	// given profile. Passes do not count toward the quota.
	LeftSwipeRatio float64
}

// Session is the slice of the upstream client the routine needs.
type Session interface {
	Recommendations(ctx context.Context) ([]tinder.Recommendation, error)
	Like(ctx context.Context, userID string) error
	Pass(ctx context.Context, userID string) error
}

// Report summarizes a finished run.
type Report struct {
	// Skipped is true when the current hour fell outside the window and
	// no swipes were attempted.
	Skipped bool `json:"skipped"`
	Likes   int  `json:"likes"`
	Passes  int  `json:"passes"`
}

// Engine drives the routine. The zero value is not usable; use NewEngine.
type Engine struct {
	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
	randFn  func() float64
}

// NewEngine constructs an Engine with real clock, sleep, and randomness.
func NewEngine() *Engine {
	return &Engine{
		nowFn:   time.Now,
		sleepFn: sleepCtx,
		randFn:  rand.Float64,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withinWindow reports whether hour falls in [start, end]. An inverted
// window never matches.
func withinWindow(hour, start, end int) bool {
	if end < start {
		return false
	}
	return hour >= start && hour <= end
}

// Run executes the routine once. It returns ErrNoRecommendations when the
// upstream has nothing left to offer before the quota is spent; the report
// still carries the swipes made up to that point.
func (e *Engine) Run(ctx context.Context, session Session, settings Settings) (Report, error) {
	if e == nil {
		return Report{}, fmt.Errorf("swipe: engine not initialized")
	}
	if session == nil {
		return Report{}, fmt.Errorf("swipe: nil session")
	}

	report := Report{}
	if !withinWindow(e.nowFn().Hour(), settings.StartHour, settings.EndHour) {
		report.Skipped = true
		return report, nil
	}

	for report.Likes < settings.LikesPerDay {
		if errCtx := ctx.Err(); errCtx != nil {
			return report, errCtx
		}
		if !withinWindow(e.nowFn().Hour(), settings.StartHour, settings.EndHour) {
			// The window closed mid-run; stop without error.
			log.WithFields(log.Fields{
				"likes":  report.Likes,
				"passes": report.Passes,
			}).Info("swipe: window closed before quota spent")
			return report, nil
		}

		batch, errRecs := session.Recommendations(ctx)
		if errRecs != nil {
			return report, fmt.Errorf("swipe: fetch recommendations: %w", errRecs)
		}
		if len(batch) == 0 {
			return report, ErrNoRecommendations
		}

		for _, rec := range batch {
			if report.Likes >= settings.LikesPerDay {
				break
			}
			if errCtx := ctx.Err(); errCtx != nil {
				return report, errCtx
			}

			if e.randFn() < settings.LeftSwipeRatio {
				if errPass := session.Pass(ctx, rec.ID()); errPass != nil {
					return report, fmt.Errorf("swipe: pass %s: %w", rec.ID(), errPass)
				}
				report.Passes++
			} else {
				if errLike := session.Like(ctx, rec.ID()); errLike != nil {
					return report, fmt.Errorf("swipe: like %s: %w", rec.ID(), errLike)
				}
				report.Likes++
			}

			if errSleep := e.sleepFn(ctx, e.actionDelay()); errSleep != nil {
				return report, errSleep
			}
		}
	}
	return report, nil
}

// actionDelay returns a uniform delay in [1s, 5s) between swipes.
func (e *Engine) actionDelay() time.Duration {
	return time.Second + time.Duration(e.randFn()*4*float64(time.Second))
}
