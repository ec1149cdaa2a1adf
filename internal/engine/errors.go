package engine

import "errors"

var (
	// ErrUnknownOperationKind is returned by the parser when the type
	// discriminator matches none of the known operation kinds.
	ErrUnknownOperationKind = errors.New("unknown image operation kind")

	// ErrMalformedOperation is returned when a known operation kind is
	// missing one of its required fields.
	ErrMalformedOperation = errors.New("malformed image operation")

	// ErrMalformedImagePayload is returned when canvas data is not a
	// parseable base64 image data URI.
	ErrMalformedImagePayload = errors.New("malformed image payload")

	// ErrExternalService wraps any generative media service failure.
	ErrExternalService = errors.New("generative media service failure")

	// ErrNoImage is returned when an operation needs a prior image version
	// and the story has none.
	ErrNoImage = errors.New("story has no image to operate on")
)
