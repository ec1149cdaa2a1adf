package interfaces

import "context"

// ImagePayload is a self-describing raster image: the media type tag carried
// by the data URI (or reported by the generative service) plus decoded bytes.
type ImagePayload struct {
	MediaType string // e.g. "image/png"
	Data      []byte
}

// StyleOptions carries the per-story generation settings forwarded to the
// generative service.
type StyleOptions struct {
	ImageModel   string
	DrawingStyle string
	ColorProfile string
}

// MediaGenerator is the contract to the external generative-media service.
// All calls block until the service responds and are fallible; the story
// engine treats any failure as the triggering mutation's failure.
type MediaGenerator interface {
	// ImageToText produces narrative text from an image, diverging minimally
	// from priorText when it is non-empty.
	ImageToText(ctx context.Context, image ImagePayload, priorText string) (string, error)

	// ImageToTitle produces a short story title from an image.
	ImageToTitle(ctx context.Context, image ImagePayload) (string, error)

	// TextToImage synthesizes a multi-panel schematic image from story text.
	TextToImage(ctx context.Context, text string, opts StyleOptions) (ImagePayload, error)

	// ImageToImage restyles or evolves a single image, optionally guided by
	// the current story text.
	ImageToImage(ctx context.Context, image ImagePayload, priorText string, opts StyleOptions) (ImagePayload, error)

	// TwoImagesToImage evolves the image sequence using the newest sketch and
	// the prior version together.
	TwoImagesToImage(ctx context.Context, newImage, priorImage ImagePayload, contextText string, opts StyleOptions) (ImagePayload, error)

	// TextToSpeech narrates the text with the service's fixed voice.
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
}
