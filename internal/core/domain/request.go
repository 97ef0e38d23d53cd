package domain

// RequestKind tags the two shapes a generation request can take.
type RequestKind string

const (
	KindTextToGarment RequestKind = "text_to_garment"
	KindComposite     RequestKind = "person_cloth_composite"
)

// RequestPart is one ordered element of the upstream content: either text or an
// inline image, never both.
type RequestPart struct {
	Text  string
	Image *EmbeddedImage
}

// TextPart wraps an instruction.
func TextPart(s string) RequestPart {
	return RequestPart{Text: s}
}

// ImagePart wraps an embedded image.
func ImagePart(img EmbeddedImage) RequestPart {
	return RequestPart{Image: &img}
}

// GenerationRequest is built fresh per call and never persisted.
type GenerationRequest struct {
	Kind RequestKind

	// Prompt is the user's description, only set for KindTextToGarment.
	Prompt string

	// Parts is the exact content sent upstream, in order.
	Parts []RequestPart
}

// Instruction returns the first text part.
func (r GenerationRequest) Instruction() string {
	for _, p := range r.Parts {
		if p.Image == nil && p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// ImageCount returns how many inline images the request carries.
func (r GenerationRequest) ImageCount() int {
	n := 0
	for _, p := range r.Parts {
		if p.Image != nil {
			n++
		}
	}
	return n
}
