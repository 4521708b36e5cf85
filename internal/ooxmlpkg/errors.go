package ooxmlpkg

import "errors"

// Sentinel errors for package access. Callers match them with errors.Is; the
// wrapped cause carries the detail.
var (
	ErrOpenFailed   = errors.New("ooxmlpkg: cannot open package")
	ErrPartNotFound = errors.New("ooxmlpkg: no such part in package")
	ErrSaveFailed   = errors.New("ooxmlpkg: cannot write package")
)
