// Package requestcontext carries the per-request caller, correlation id and
// clock from middleware to services without importing net/http.
//
// Services only read; middleware and tests write:
//
//	ctx = requestcontext.WithAccount(ctx, "0xbuyer")
//	ctx = requestcontext.WithTime(ctx, expiry.Add(time.Second))
package requestcontext

import (
	"context"
	"time"

	"derisk/pkg/domain"
)

type key int

const (
	accountKey key = iota
	requestIDKey
	timeKey
)

// Account is the authenticated caller, or the zero account.
func Account(ctx context.Context) domain.AccountID {
	acct, _ := ctx.Value(accountKey).(domain.AccountID)
	return acct
}

func WithAccount(ctx context.Context, acct domain.AccountID) context.Context {
	return context.WithValue(ctx, accountKey, acct)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// Now is the request's pinned time. Outside a request (CLI, background
// jobs) it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey, t)
}
