package reader

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrDuplicateFeed = errors.New("feed url already registered")
	ErrUnknownFeed   = errors.New("unknown feed")
	ErrImportFormat  = errors.New("invalid import document")
	ErrNoSelection   = errors.New("no article selected")
	ErrNoLink        = errors.New("article has no link")
)

// FeedFetchError reports a failed fetch of a single feed. It never aborts a
// refresh of the remaining feeds.
type FeedFetchError struct {
	FeedID   string
	FeedName string
	Err      error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("fetch feed %q: %v", e.FeedName, e.Err)
}

func (e *FeedFetchError) Unwrap() error { return e.Err }

type ArticleFetchError struct {
	Link string
	Err  error
}

func (e *ArticleFetchError) Error() string {
	return fmt.Sprintf("fetch article %s: %v", e.Link, e.Err)
}

func (e *ArticleFetchError) Unwrap() error { return e.Err }

// PersistenceError wraps a settings store failure. The engine logs it and keeps
// running on its in-memory state.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s setting %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
