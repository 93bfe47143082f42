package scroll

import "errors"

var (
	ErrContainerNotFound = errors.New("lazyload container not found")
	ErrAlreadyBound      = errors.New("root element already has a loader")
	ErrBusy              = errors.New("a page load is already in progress")
	ErrNoNextPage        = errors.New("no next page")
	ErrCanceled          = errors.New("page load canceled by a handler")
	ErrNotInitialized    = errors.New("loader not initialized")
)
