package invoke

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Deliver hands a result to the caller the way mode asks for.
//
// Callback mode calls cb(err, value) exactly once, with a nil error on success,
// and returns nil. Promise mode returns a promise already settled with the same
// outcome. No path does both.
func Deliver(mode DeliveryMode, r Result) *Promise {
	if mode.Kind == ModeCallback && mode.Callback != nil {
		mode.Callback(r.Err, r.Value)
		return nil
	}

	p := NewPromise()
	if r.Err != nil {
		_ = p.Reject(r.Err)
	} else {
		_ = p.Resolve(r.Value)
	}
	return p
}

// DeliverSafe is Deliver with a panicking callback contained and logged
// instead of unwinding into the caller.
func DeliverSafe(logger *logrus.Logger, api string, mode DeliveryMode, r Result) (p *Promise) {
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"api":   api,
					"mode":  mode.Kind.String(),
					"panic": fmt.Sprintf("%v", rec),
				}).Error("Callback panicked during delivery")
			}
		}
	}()
	return Deliver(mode, r)
}
