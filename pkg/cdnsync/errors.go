package cdnsync

import "errors"

var (
	// ErrUnsupportedNetwork is returned before any request is made when
	// the configured network identifier is not the one this module
	// understands.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrLedgerHeightMismatch is raised by the post-failure integrity
	// check when the ledger's own reported height disagrees with the
	// height the sync completed. It is never reconciled automatically.
	ErrLedgerHeightMismatch = errors.New("ledger height does not match the last sync height")
)
