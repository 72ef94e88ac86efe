package draw

import "context"

// OfficialSource fetches single rounds from the authoritative upstream.
// found=false with a nil error means the round is not published yet. A
// non-nil error wraps ErrSourceUnavailable and means the round could not be
// checked.
type OfficialSource interface {
	FetchRound(ctx context.Context, round int) (Result, bool, error)
}

// HistorySource pages through the secondary upstream until targetCount
// distinct rounds are collected or its pages run out.
type HistorySource interface {
	FetchBulk(ctx context.Context, targetCount int) ([]Result, error)
}
