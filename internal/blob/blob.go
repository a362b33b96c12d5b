// Package blob defines the flat object-store contract the portal is
// built on: list-all, get, put, delete. No rename, no transactions, no
// directories — any hierarchy is derived by the caller.
package blob

import (
	"context"
	"errors"
	"time"
)

// ObjectInfo is one entry of a store listing.
type ObjectInfo struct {
	Pathname   string    `json:"pathname"`
	Locator    string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// PutResult identifies a stored object after a successful put.
type PutResult struct {
	Pathname string `json:"pathname"`
	Locator  string `json:"url"`
}

// Store is the object-store interface. A locator is an opaque URL that
// identifies one stored blob; the pathname is the store key. Put always
// overwrites an existing object at the same pathname and never appends
// a uniqueness suffix. Delete of a missing locator succeeds.
type Store interface {
	List(ctx context.Context) ([]ObjectInfo, error)

	// Get returns the full content of the object at locator, or an
	// error satisfying IsNotFound when no such object exists.
	Get(ctx context.Context, locator string) ([]byte, error)

	Put(ctx context.Context, pathname string, content []byte, contentType string) (PutResult, error)

	Delete(ctx context.Context, locator string) error

	// Pathname derives the store key embedded in a locator.
	Pathname(locator string) (string, error)
}

// NotFoundError is returned by Get when the locator names no object.
type NotFoundError struct {
	Locator string
}

func (e *NotFoundError) Error() string {
	return "object not found: " + e.Locator
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
