// Provides common tikv errors definitions.
package tikv_errors

import "errors"

var (
	ErrUninitializedState  = errors.New("tikv: truncated state is not loaded")
	ErrRegionUninitialized = errors.New("tikv: region has no end key assigned")
	ErrRegionExists        = errors.New("tikv: region already bootstrapped")
	ErrRegionUnknown       = errors.New("tikv: unknown region")
	ErrBadBoundary         = errors.New("tikv: region boundary inside reserved keyspace")

	ErrBadDescriptor     = errors.New("tikv: bad region descriptor record")
	ErrBadTruncatedState = errors.New("tikv: bad truncated state record")
	ErrBadValue          = errors.New("tikv: bad fixed-width value")
	ErrNoStoreIdent      = errors.New("tikv: store ident missing")
)
