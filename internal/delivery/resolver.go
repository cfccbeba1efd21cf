package delivery

import (
	"context"
	"unicode/utf8"

	"github.com/capsulemail/capsuled/internal/blob"
	"github.com/capsulemail/capsuled/internal/model"
	"go.uber.org/zap"
)

// PlaceholderText substitutes a body that could not be fetched or decoded.
// The capsule is still delivered so the recipient learns something arrived.
const PlaceholderText = "Your time capsule message could not be retrieved."

// ContentResolver produces the message text for a capsule. Resolve is
// total: it always returns a string and never an error.
type ContentResolver struct {
	blobs  blob.Store
	logger *zap.Logger
}

func NewContentResolver(blobs blob.Store, logger *zap.Logger) *ContentResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentResolver{blobs: blobs, logger: logger}
}

// Resolve prefers the inline body, falls back to the blob reference, and
// returns the empty string when the capsule carries neither.
func (r *ContentResolver) Resolve(ctx context.Context, c model.Capsule) string {
	if c.BodyInline != "" {
		return c.BodyInline
	}

	if c.BodyRef == "" {
		return ""
	}

	data, err := r.blobs.Get(ctx, c.BodyRef)
	if err != nil {
		r.logger.Warn("blob fetch failed, using placeholder",
			zap.String("capsule_id", c.ID),
			zap.String("body_ref", c.BodyRef),
			zap.Error(err),
		)
		return PlaceholderText
	}

	if !utf8.Valid(data) {
		r.logger.Warn("blob is not valid UTF-8, using placeholder",
			zap.String("capsule_id", c.ID),
			zap.String("body_ref", c.BodyRef),
		)
		return PlaceholderText
	}

	return string(data)
}
