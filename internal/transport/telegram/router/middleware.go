package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "growthbot/pkg/logx"
)

var errForbidden = errors.New("forbidden")

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs first.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if v := recover(); v != nil {
					logger := log
					if !req.Logger.IsZero() {
						logger = req.Logger
					}
					logger.Error("panic recovered", logx.Any("panic", v), logx.String("stack", string(debug.Stack())))
					err = fmt.Errorf("panic: %v", v)
				}
			}()
			return next(ctx, req)
		}
	}
}

// MWAccess rejects the request with a reply when allow says no.
func MWAccess(level Access, allow func(context.Context, *Request, Access) bool, reply func(context.Context, *Request, string)) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if !allow(ctx, req, level) {
				msg := "🔒 Only chat administrators can do that."
				if level == AccessOwner {
					msg = "🔒 Only the bot owner can do that."
				}
				reply(ctx, req, msg)
				return errForbidden
			}
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			d := time.Since(start)

			logger := log
			if !req.Logger.IsZero() {
				logger = req.Logger
			}
			fields := []logx.Field{logx.Int("args", len(req.Args)), logx.Duration("dur", d)}
			switch {
			case errors.Is(err, errForbidden):
				logger.Info("request denied", fields...)
			case err != nil:
				logger.Warn("request failed", append(fields, logx.Err(err))...)
			case d >= 750*time.Millisecond:
				logger.Info("request ok", fields...)
			default:
				logger.Debug("request ok", fields...)
			}
			return err
		}
	}
}
