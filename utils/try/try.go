// Package try provides retry helpers.
package try

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// DoExponentialBackoff calls fn until it succeeds, the tries are exhausted or
// the context is done. The delay between tries is multiplied by multiplier
// and capped at maxBackoff.
//
// fn can stop the retries by returning an error wrapped with Permanent.
func DoExponentialBackoff(
	ctx context.Context,
	tries int,
	delay time.Duration,
	multiplier int,
	maxBackoff time.Duration,
	fn func(ctx context.Context, try int) error,
) (err error) {
	if tries <= 0 {
		log.Panic().Int("tries", tries).Msg("tries is 0 or negative")
	}
	for try := 0; try < tries; try++ {
		err = fn(ctx, try)
		if err == nil {
			return nil
		}
		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		if try == tries-1 {
			break
		}
		log.Warn().
			Err(err).
			Int("try", try).
			Int("maxTries", tries).
			Dur("backoff", delay).
			Msg("try failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= time.Duration(multiplier)
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
	log.Warn().Err(err).Msg("failed all tries")
	return err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
