// Package blob stores out-of-line capsule bodies by key.
package blob

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns ErrNotFound for a missing key; any other error means the
	// store was unreachable.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Key builds the storage key for a capsule body:
// <prefix><owner>/<capsule>/message.txt
func Key(prefix string, ownerID int64, capsuleID string) string {
	return fmt.Sprintf("%s%d/%s/message.txt", prefix, ownerID, capsuleID)
}
