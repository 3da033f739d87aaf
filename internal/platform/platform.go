// Package platform defines the contract between the tracker and the
// per-platform metric adapters in its subpackages.
package platform

import (
	"context"

	"growthbot/internal/social"
)

// Snapshot is one observation of an account. DisplayName is empty when the
// platform does not report one.
type Snapshot struct {
	Count       int64
	DisplayName string
}

// Fetcher retrieves the current metric for a tracked account.
//
// Errors are *social.FetchError; match the kind with errors.Is.
type Fetcher interface {
	Platform() social.Platform
	Fetch(ctx context.Context, a *social.Account) (Snapshot, error)
	// Resolve turns a parsed profile URL into a canonical account and
	// performs the seed fetch. The returned account has no destination.
	Resolve(ctx context.Context, ref social.AccountRef) (social.Account, Snapshot, error)
}
