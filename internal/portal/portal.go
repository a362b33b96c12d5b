// Package portal implements the operations behind the hosting portal:
// listing, upload, delete, move and public view resolution over a flat
// blob store. Every mutator runs the authorization gate before its
// first store call; the object store stays the sole source of truth,
// with the catalog rebuilt from a fresh listing on each read.
package portal

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/pubfiles/pubfiles/internal/blob"
	"github.com/pubfiles/pubfiles/internal/catalog"
	"github.com/pubfiles/pubfiles/internal/logging"
	"github.com/pubfiles/pubfiles/internal/metrics"
	"github.com/pubfiles/pubfiles/internal/pathname"
)

const htmlContentType = "text/html"

// Authorizer reports whether the caller of the current request may
// mutate the store.
type Authorizer interface {
	Authorized(ctx context.Context) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context) bool

func (f AuthorizerFunc) Authorized(ctx context.Context) bool { return f(ctx) }

// Document is a resolved public view.
type Document struct {
	Pathname string
	Content  []byte
}

// Service exposes the portal operations.
type Service struct {
	store blob.Store
	authz Authorizer
}

// New creates a Service over the given store and authorization gate.
func New(store blob.Store, authz Authorizer) *Service {
	return &Service{store: store, authz: authz}
}

// authorize is the gate every mutator runs before touching the store.
func (s *Service) authorize(ctx context.Context) error {
	if s.authz == nil || !s.authz.Authorized(ctx) {
		return &Error{Kind: KindUnauthorized, Message: "not authorized"}
	}
	return nil
}

// List rebuilds the catalog from a fresh store listing.
func (s *Service) List(ctx context.Context) (catalog.Catalog, error) {
	listing, err := s.store.List(ctx)
	if err != nil {
		return catalog.Catalog{}, &Error{Kind: KindStoreUnavailable, Message: "list store", Err: err}
	}
	c := catalog.Build(listing)
	metrics.SetCatalogFiles(len(c.Files))
	return c, nil
}

// Upload stores HTML content under Compose(category, name). A second
// upload to the same pathname overwrites the first; there is no
// versioning and no uniqueness suffix.
func (s *Service) Upload(ctx context.Context, name, category string, content []byte) (blob.PutResult, error) {
	if err := s.authorize(ctx); err != nil {
		return blob.PutResult{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return blob.PutResult{}, &Error{Kind: KindInvalidName, Message: "file name is empty"}
	}
	if !pathname.HasHTMLExt(name) {
		return blob.PutResult{}, &Error{Kind: KindInvalidFileType, Message: "only HTML files are allowed"}
	}

	key := pathname.Compose(strings.TrimSpace(category), name)
	res, err := s.store.Put(ctx, key, content, htmlContentType)
	if err != nil {
		metrics.RecordUpload(0, false)
		return blob.PutResult{}, &Error{Kind: KindUploadFailed, Message: "upload " + key, Err: err}
	}

	metrics.RecordUpload(int64(len(content)), true)
	logging.Info("file uploaded",
		zap.String("pathname", res.Pathname),
		zap.Int("size", len(content)))
	return res, nil
}

// Delete removes the object at locator. Deleting an already-missing
// object is success.
func (s *Service) Delete(ctx context.Context, locator string) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, locator); err != nil {
		return &Error{Kind: KindDeleteFailed, Message: "delete object", Err: err}
	}

	logging.Info("file deleted", zap.String("locator", locator))
	return nil
}

// Move renames the object at locator to newPathname. The store has no
// atomic rename, so the move is synthesized as fetch, write, delete in
// strict sequence. Between the write and the delete both copies exist;
// if the final delete fails the operation reports PartialMoveCompleted
// and leaves the duplicate in place rather than risking data loss.
func (s *Service) Move(ctx context.Context, locator, newPathname string) (blob.PutResult, error) {
	if err := s.authorize(ctx); err != nil {
		return blob.PutResult{}, err
	}

	category, name := pathname.Decompose(strings.TrimSpace(newPathname))
	name = strings.TrimSpace(name)
	if name == "" {
		return blob.PutResult{}, &Error{Kind: KindInvalidName, Message: "target name is empty"}
	}
	if !pathname.HasHTMLExt(name) {
		name += ".html"
	}
	target := pathname.Compose(category, name)

	current, err := s.store.Pathname(locator)
	if err != nil {
		return blob.PutResult{}, &Error{Kind: KindMoveFailed, Message: "resolve source locator", Err: err}
	}
	if target == current {
		// Already at the target; skip the store round trip.
		return blob.PutResult{Pathname: current, Locator: locator}, nil
	}

	content, err := s.store.Get(ctx, locator)
	if err != nil {
		return blob.PutResult{}, &Error{Kind: KindSourceFetchFailed, Message: "fetch source " + current, Err: err}
	}

	res, err := s.store.Put(ctx, target, content, htmlContentType)
	if err != nil {
		return blob.PutResult{}, &Error{Kind: KindMoveFailed, Message: "write target " + target, Err: err}
	}

	if err := s.store.Delete(ctx, locator); err != nil {
		// Target written, source still present. Surface the duplicate
		// instead of masking it; the caller may retry the cleanup.
		logging.Warn("move left duplicate",
			zap.String("source", current),
			zap.String("target", target),
			zap.Error(err))
		return res, &Error{Kind: KindPartialMoveCompleted, Message: "source " + current + " still present after move", Err: err}
	}

	logging.Info("file moved",
		zap.String("from", current),
		zap.String("to", target))
	return res, nil
}

// Resolve locates the stored document behind a public view path by
// re-appending .html/.htm and matching the listing exactly.
func (s *Service) Resolve(ctx context.Context, viewPath string) (Document, error) {
	listing, err := s.store.List(ctx)
	if err != nil {
		return Document{}, &Error{Kind: KindStoreUnavailable, Message: "list store", Err: err}
	}

	for _, candidate := range pathname.StoredCandidates(viewPath) {
		for _, obj := range listing {
			if obj.Pathname != candidate {
				continue
			}
			content, err := s.store.Get(ctx, obj.Locator)
			if err != nil {
				if blob.IsNotFound(err) {
					return Document{}, &Error{Kind: KindNotFound, Message: "document " + candidate + " vanished"}
				}
				return Document{}, &Error{Kind: KindStoreUnavailable, Message: "fetch " + candidate, Err: err}
			}
			return Document{Pathname: obj.Pathname, Content: content}, nil
		}
	}
	return Document{}, &Error{Kind: KindNotFound, Message: "no document at " + viewPath}
}
