package model

import "github.com/rotisserie/eris"

// Error taxonomy shared by the pipeline, store and API layers. Wrap these
// with eris.Wrap and test with eris.Is.
var (
	// ErrValidation marks malformed or missing input. Never fatal to a batch.
	ErrValidation = eris.New("invalid input")

	// ErrNotFound marks a referenced Offer or Lead that does not exist.
	ErrNotFound = eris.New("not found")

	// ErrExternalService marks a classifier oracle failure. The qualitative
	// scorer converts it to a fallback outcome; it never reaches callers.
	ErrExternalService = eris.New("external service failure")

	// ErrStorageTransaction marks a failed commit. The enclosing batch is
	// rolled back.
	ErrStorageTransaction = eris.New("storage transaction failed")

	// ErrStreamParse marks an unreadable CSV stream.
	ErrStreamParse = eris.New("csv stream unreadable")

	// ErrOfferInUse is returned when deleting an Offer that Leads reference.
	ErrOfferInUse = eris.New("offer is referenced by processed leads")

	// ErrUnsupportedMedia is returned for non-CSV uploads.
	ErrUnsupportedMedia = eris.New("unsupported media type")
)
