package generation

import (
	"fmt"
	"strings"

	"github.com/vietddude/tryon/internal/core/domain"
)

const garmentRules = `Generate a high-quality, photorealistic image of the clothing item isolated on a plain white or light grey background.
Flat lay or mannequin style.`

const tryOnInstruction = `Generate a high-quality photorealistic full-body image of the person in the first image wearing the clothing shown in the second image.
Instructions:
1. Retain the person's identity, facial features, skin tone, and body shape from the first image.
2. Replace their current outfit with the clothing from the second image. Fit the clothing naturally to their pose.
3. If the person is cropped, extend the body reasonably to show the outfit if possible, or crop the outfit to fit the frame.
4. Maintain high resolution and realistic lighting.`

// BuildGarmentRequest turns a clothing description into a text-to-garment
// request. The prompt is embedded verbatim; only emptiness is checked.
func BuildGarmentRequest(prompt string) (domain.GenerationRequest, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.GenerationRequest{}, domain.NewFailure(
			domain.FailureInvalidInput,
			"Please describe the clothing to generate.",
			nil,
		)
	}

	// Plain concatenation keeps the user's text byte-for-byte; %q would escape it.
	instruction := "Design a clothing item based on this description: \"" + prompt + "\".\n" + garmentRules

	return domain.GenerationRequest{
		Kind:   domain.KindTextToGarment,
		Prompt: prompt,
		Parts:  []domain.RequestPart{domain.TextPart(instruction)},
	}, nil
}

// BuildTryOnRequest composes a person and a garment into one request. Both
// images must already be embedded; nothing is fetched or decoded here.
func BuildTryOnRequest(person, cloth domain.EmbeddedImage) (domain.GenerationRequest, error) {
	if err := person.Validate(); err != nil {
		return domain.GenerationRequest{}, domain.NewFailure(
			domain.FailureInvalidInput,
			"The person image is missing or not embedded.",
			fmt.Errorf("person image: %w", err),
		)
	}
	if err := cloth.Validate(); err != nil {
		return domain.GenerationRequest{}, domain.NewFailure(
			domain.FailureInvalidInput,
			"The clothing image is missing or not embedded.",
			fmt.Errorf("cloth image: %w", err),
		)
	}

	return domain.GenerationRequest{
		Kind: domain.KindComposite,
		Parts: []domain.RequestPart{
			domain.ImagePart(withMime(person)),
			domain.ImagePart(withMime(cloth)),
			domain.TextPart(tryOnInstruction),
		},
	}, nil
}

func withMime(img domain.EmbeddedImage) domain.EmbeddedImage {
	if img.MimeType == "" {
		img.MimeType = domain.DefaultMimeType
	}
	return img
}
