package model

// DefaultFilename is used when a frame request carries no filename.
const DefaultFilename = "frame.jpg"

// Model version tags reported on every result.
const (
	ModelVersionMock   = "mock-v1"
	ModelVersionPrefix = "openrouter-"
)

// FrameRequest is a single frame submitted for analysis.
type FrameRequest struct {
	Image    string `json:"image"`              // base64 payload
	Filename string `json:"filename,omitempty"` // used for mime type and mock seed
}

// Name returns the filename, falling back to DefaultFilename.
func (f FrameRequest) Name() string {
	if f.Filename == "" {
		return DefaultFilename
	}
	return f.Filename
}

// Result is the normalized authenticity score for one frame.
type Result struct {
	RealProbability float64 `json:"real_probability"`
	FakeProbability float64 `json:"fake_probability"`
	Confidence      float64 `json:"confidence"`
	Explanation     string  `json:"explanation"`
	ModelVersion    string  `json:"model_version"`
}

// IsMock reports whether the result came from the demo fallback.
func (r Result) IsMock() bool {
	return r.ModelVersion == ModelVersionMock
}

// Verdict returns "fake" when the fake probability dominates, otherwise "real".
func (r Result) Verdict() string {
	if r.FakeProbability > r.RealProbability {
		return "fake"
	}
	return "real"
}
