package detector

import (
	"strings"

	"github.com/sells-group/vidauth/pkg/openrouter"
)

// Sampling parameters for the forensics request.
const (
	MaxTokens   = 300
	Temperature = 0.1
)

// DetectionPrompt instructs the vision model to act as a deepfake detector
// and answer with a single-line JSON verdict.
const DetectionPrompt = `You are an expert AI-generated media forensics analyst. Analyze this video frame and determine whether it is from a REAL video or an AI-GENERATED video.

Look for these specific indicators:

AI-GENERATED indicators:
- Unnatural skin textures or overly smooth skin
- Inconsistent lighting or shadows
- Warped or asymmetric facial features
- Blurred or distorted edges around hair, ears, or accessories
- Unusual eye reflections or irregular pupil shapes
- Teeth or mouth anomalies
- Unnatural background elements or repeating patterns
- Overly perfect or plastic-looking appearance
- Inconsistent resolution across image regions
- GAN artifacts (checkerboard patterns, grid-like artifacts)

REAL video indicators:
- Natural skin imperfections (pores, wrinkles, blemishes)
- Consistent lighting and shadows across the scene
- Natural motion blur where expected
- Realistic depth of field
- Natural background elements
- Consistent compression artifacts typical of real cameras

Respond ONLY with a valid JSON object in this exact format (no markdown, no extra text):
{"real_probability": 0.XX, "fake_probability": 0.XX, "confidence": 0.XX, "key_observations": "brief description of what you observed"}

The probabilities must sum to 1.0. Confidence ranges from 0.0 (uncertain) to 1.0 (certain).
`

// MimeType infers the image mime type from the filename suffix only.
func MimeType(filename string) string {
	if strings.HasSuffix(filename, ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

// BuildRequest composes the multimodal chat request for one frame.
func BuildRequest(modelID, image, filename string) openrouter.ChatCompletionRequest {
	temperature := Temperature
	maxTokens := MaxTokens

	return openrouter.ChatCompletionRequest{
		Model: modelID,
		Messages: []openrouter.Message{{
			Role: "user",
			Content: []openrouter.ContentPart{
				openrouter.TextPart(DetectionPrompt),
				openrouter.ImagePart(openrouter.DataURL(MimeType(filename), image)),
			},
		}},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}
