package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"mercator-hq/ratecontrol/pkg/cli"
	"mercator-hq/ratecontrol/pkg/config"
	"mercator-hq/ratecontrol/pkg/ratelimit"
	"mercator-hq/ratecontrol/pkg/telemetry/metrics"
)

// limiter is one configured token bucket paced by the daemon.
type limiter struct {
	name   string
	rate   float64
	unit   ratelimit.Unit
	bucket *ratelimit.Bucket

	admitted atomic.Uint64
	waits    atomic.Uint64
}

// openLimiters creates a bucket for every spec. On error the buckets
// created so far are released.
func openLimiters(engine *ratelimit.Engine, specs []config.LimiterConfig) ([]*limiter, error) {
	limiters := make([]*limiter, 0, len(specs))

	for i, spec := range specs {
		field := fmt.Sprintf("limiters[%d]", i)

		unit, err := ratelimit.ParseUnit(spec.Unit)
		if err != nil {
			closeLimiters(limiters)
			return nil, cli.NewConfigError(field+".unit", err.Error())
		}

		b, err := engine.Create(spec.Rate, unit)
		if err != nil {
			closeLimiters(limiters)
			if errors.Is(err, ratelimit.ErrInvalidRate) {
				return nil, cli.NewConfigError(field+".rate", err.Error())
			}
			return nil, fmt.Errorf("failed to create limiter %q: %w", spec.Name, err)
		}
		if spec.Capacity > 0 {
			b.SetCapacity(uint32(spec.Capacity))
		}

		limiters = append(limiters, &limiter{
			name:   spec.Name,
			rate:   spec.Rate,
			unit:   unit,
			bucket: b,
		})
	}

	return limiters, nil
}

func closeLimiters(limiters []*limiter) {
	for _, l := range limiters {
		l.bucket.Release()
	}
}

// tokenInterval is the time between two tokens, at least 1µs.
func (l *limiter) tokenInterval() time.Duration {
	perSecond := l.bucket.Rate()
	if perSecond <= 0 {
		return time.Second
	}
	return max(time.Duration(float64(time.Second)/perSecond), time.Microsecond)
}

// pace takes one unit at a time for as long as ctx lives, sleeping one
// token interval whenever the bucket is empty. It returns when ctx is done
// or the bucket is released.
func (l *limiter) pace(ctx context.Context, collector *metrics.Collector) {
	interval := l.tokenInterval()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		err := l.bucket.TryAcquire(1)
		switch {
		case err == nil:
			l.admitted.Add(1)
			collector.RecordAdmission(l.name, metrics.KindBucket, metrics.OutcomeAdmitted, 1)
			continue

		case errors.Is(err, ratelimit.ErrInsufficientTokens):
			l.waits.Add(1)
			collector.RecordAdmission(l.name, metrics.KindBucket, metrics.OutcomeRejected, 1)
			collector.UpdateTokens(l.name, l.bucket.Tokens())

		default:
			collector.RecordAdmission(l.name, metrics.KindBucket, metrics.OutcomeClosed, 1)
			return
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// paceBlocking takes one unit at a time with AcquireContext, spinning on
// the bucket instead of sleeping between attempts. A take that found the
// bucket empty counts as a wait. It returns when ctx is done or the bucket
// is released.
func (l *limiter) paceBlocking(ctx context.Context, collector *metrics.Collector) {
	for {
		err := l.bucket.TryAcquire(1)
		if errors.Is(err, ratelimit.ErrInsufficientTokens) {
			l.waits.Add(1)
			collector.UpdateTokens(l.name, 0)
			err = l.bucket.AcquireContext(ctx, 1)
		}

		switch {
		case err == nil:
			l.admitted.Add(1)
			collector.RecordAdmission(l.name, metrics.KindBucket, metrics.OutcomeAdmitted, 1)
		case ctx.Err() != nil:
			return
		default:
			collector.RecordAdmission(l.name, metrics.KindBucket, metrics.OutcomeClosed, 1)
			return
		}
	}
}

// limiterReport summarises the limiters after a run.
type limiterReport struct {
	Elapsed  time.Duration   `json:"elapsed"`
	Limiters []limiterResult `json:"limiters"`
}

type limiterResult struct {
	Name     string  `json:"name"`
	Rate     float64 `json:"rate"`
	Unit     string  `json:"unit"`
	Capacity uint32  `json:"capacity"`
	Admitted uint64  `json:"admitted"`
	Waits    uint64  `json:"waits"`
	Observed float64 `json:"observed_per_second"`
}

func newLimiterReport(limiters []*limiter, elapsed time.Duration) limiterReport {
	r := limiterReport{Elapsed: elapsed, Limiters: make([]limiterResult, 0, len(limiters))}
	for _, l := range limiters {
		res := limiterResult{
			Name:     l.name,
			Rate:     l.rate,
			Unit:     l.unit.String(),
			Capacity: l.bucket.Capacity(),
			Admitted: l.admitted.Load(),
			Waits:    l.waits.Load(),
		}
		if elapsed > 0 {
			res.Observed = float64(res.Admitted) / elapsed.Seconds()
		}
		r.Limiters = append(r.Limiters, res)
	}
	return r
}

func (r limiterReport) Header() []string {
	return []string{"LIMITER", "RATE", "UNIT", "CAPACITY", "ADMITTED", "WAITS", "OBSERVED/S"}
}

func (r limiterReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Limiters))
	for _, l := range r.Limiters {
		rows = append(rows, []string{
			l.Name,
			strconv.FormatFloat(l.Rate, 'g', -1, 64),
			l.Unit,
			strconv.FormatUint(uint64(l.Capacity), 10),
			strconv.FormatUint(l.Admitted, 10),
			strconv.FormatUint(l.Waits, 10),
			strconv.FormatFloat(l.Observed, 'f', 1, 64),
		})
	}
	return rows
}
