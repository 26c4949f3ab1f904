// Package groutine starts named, panic-contained goroutines.
//
// The name is attached as a pprof label so emitters show up by subscription
// key in goroutine profiles.
package groutine

import (
	"context"
	"fmt"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go runs fn on a new goroutine labelled with name.
// A panic in fn is recovered and logged at error level; it never crashes the process.
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, logger *logrus.Logger, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.WithFields(logrus.Fields{
					"goroutine": name,
					"panic":     fmt.Sprintf("%v", r),
				}).Error("Goroutine panicked")
			}
		}()
		fn(context.WithValue(ctx, goroutineNameKey, name))
	})
}

// Name retrieves the goroutine name from the context
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(goroutineNameKey).(string); ok {
		return s
	}
	return ""
}
