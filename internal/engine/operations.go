package engine

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/VisualStoriesHCA/HCABackend/internal/interfaces"
)

// RawOperation is the untyped wire shape of one requested image edit, as it
// arrives from the HTTP layer.
type RawOperation struct {
	Type       string `json:"type"`
	ImageID    string `json:"imageId,omitempty"`
	CanvasData string `json:"canvasData,omitempty"`
	Alt        string `json:"alt,omitempty"`
}

// ImageOperation is a validated, typed edit. The three variants each carry
// only the fields they need; the engine switches over them exhaustively.
type ImageOperation interface {
	isImageOperation()
}

// NoChangeOperation keeps the image history as is and regenerates text only.
type NoChangeOperation struct {
	ImageID string
}

// SketchFromScratchOperation appends a freshly drawn canvas as a new version.
type SketchFromScratchOperation struct {
	Canvas interfaces.ImagePayload
	Alt    string
}

// SketchOnImageOperation appends a canvas drawn over an existing version.
type SketchOnImageOperation struct {
	ImageID string
	Canvas  interfaces.ImagePayload
	Alt     string
}

func (NoChangeOperation) isImageOperation()          {}
func (SketchFromScratchOperation) isImageOperation() {}
func (SketchOnImageOperation) isImageOperation()     {}

// ParseOperation validates one raw operation. The discriminator is matched
// case-insensitively after trimming; unknown discriminators are rejected here
// rather than deep in execution.
func ParseOperation(raw RawOperation) (ImageOperation, error) {
	switch strings.ToLower(strings.TrimSpace(raw.Type)) {
	case "nochange":
		if raw.ImageID == "" {
			return nil, fmt.Errorf("%w: nochange requires imageId", ErrMalformedOperation)
		}
		return NoChangeOperation{ImageID: raw.ImageID}, nil

	case "sketchfromscratch":
		if raw.CanvasData == "" {
			return nil, fmt.Errorf("%w: sketchFromScratch requires canvasData", ErrMalformedOperation)
		}
		canvas, err := ParseImageDataURI(raw.CanvasData)
		if err != nil {
			return nil, err
		}
		return SketchFromScratchOperation{Canvas: canvas, Alt: raw.Alt}, nil

	case "sketchonimage":
		if raw.ImageID == "" || raw.CanvasData == "" {
			return nil, fmt.Errorf("%w: sketchOnImage requires imageId and canvasData", ErrMalformedOperation)
		}
		canvas, err := ParseImageDataURI(raw.CanvasData)
		if err != nil {
			return nil, err
		}
		return SketchOnImageOperation{ImageID: raw.ImageID, Canvas: canvas, Alt: raw.Alt}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperationKind, raw.Type)
	}
}

// ParseOperations validates a whole batch before anything executes, so a bad
// entry fails the request without touching story state.
func ParseOperations(raws []RawOperation) ([]ImageOperation, error) {
	ops := make([]ImageOperation, 0, len(raws))
	for i, raw := range raws {
		op, err := ParseOperation(raw)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// ParseImageDataURI decodes a self-describing canvas payload of the form
// data:image/<format>;base64,<payload>.
func ParseImageDataURI(uri string) (interfaces.ImagePayload, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return interfaces.ImagePayload{}, fmt.Errorf("%w: missing data: prefix", ErrMalformedImagePayload)
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return interfaces.ImagePayload{}, fmt.Errorf("%w: missing payload separator", ErrMalformedImagePayload)
	}
	mediaType, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" {
		return interfaces.ImagePayload{}, fmt.Errorf("%w: payload is not base64 encoded", ErrMalformedImagePayload)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return interfaces.ImagePayload{}, fmt.Errorf("%w: media type %q is not an image", ErrMalformedImagePayload, mediaType)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return interfaces.ImagePayload{}, fmt.Errorf("%w: %v", ErrMalformedImagePayload, err)
	}
	return interfaces.ImagePayload{MediaType: mediaType, Data: data}, nil
}
