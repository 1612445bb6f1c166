package clock

import (
	"context"
	"time"
)

type ctxClockKey struct{}

// Clock returns the current time.
type Clock func() time.Time

// Now returns the clock bound to ctx, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	c, ok := ctx.Value(ctxClockKey{}).(Clock)
	if !ok {
		return time.Now()
	}
	return c()
}

// With binds c to the returned context.
func With(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, ctxClockKey{}, c)
}

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}
