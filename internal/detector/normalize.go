package detector

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vidauth/internal/model"
)

const (
	fallbackExplanation = "Could not parse model response reliably."
	defaultObservations = "Analysis completed."
	logSnippetRunes     = 200
)

// jsonObjectRe matches the first brace-delimited object without nested
// braces. Replies whose observations contain an object fail to parse and
// fall back.
var jsonObjectRe = regexp.MustCompile(`\{[^}]+\}`)

// FallbackResult is returned when a model reply cannot be parsed.
func FallbackResult() model.Result {
	return model.Result{
		RealProbability: 0.5,
		FakeProbability: 0.5,
		Confidence:      0.3,
		Explanation:     fallbackExplanation,
	}
}

// Normalize turns raw model output into a result without model_version.
// It never fails: unparseable replies yield FallbackResult.
func Normalize(content string) model.Result {
	log := zap.L().With(zap.String("component", "detector.normalize"))

	res, err := ParseModelResponse(content)
	if err != nil {
		log.Warn("failed to parse model response",
			zap.String("content", snippet(content, logSnippetRunes)),
			zap.Error(err),
		)
		return FallbackResult()
	}

	if sum := res.RealProbability + res.FakeProbability; sum <= 0 {
		log.Warn("model probabilities sum to zero or less, left unnormalized",
			zap.Float64("real_probability", res.RealProbability),
			zap.Float64("fake_probability", res.FakeProbability),
		)
	}
	return res
}

// ParseModelResponse extracts and normalizes the JSON verdict in content.
func ParseModelResponse(content string) (res model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = model.Result{}, eris.Errorf("detector: panic while parsing reply: %v", r)
		}
	}()

	raw := content
	if m := jsonObjectRe.FindString(content); m != "" {
		raw = m
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return model.Result{}, eris.Wrap(err, "detector: decode reply")
	}
	if fields == nil {
		return model.Result{}, eris.New("detector: reply is not a JSON object")
	}

	realProb, err := floatField(fields, "real_probability", 0.5)
	if err != nil {
		return model.Result{}, err
	}
	fakeProb, err := floatField(fields, "fake_probability", 0.5)
	if err != nil {
		return model.Result{}, err
	}
	confidence, err := floatField(fields, "confidence", 0.5)
	if err != nil {
		return model.Result{}, err
	}
	observations := stringField(fields, "key_observations", defaultObservations)

	if total := realProb + fakeProb; total > 0 {
		realProb /= total
		fakeProb /= total
	}

	return model.Result{
		RealProbability: truncate4(realProb),
		FakeProbability: truncate4(fakeProb),
		Confidence:      truncate4(clamp01(confidence)),
		Explanation:     observations,
	}, nil
}

// floatField coerces a JSON number, numeric string or boolean to float64.
func floatField(fields map[string]json.RawMessage, key string, def float64) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return def, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, eris.Wrapf(err, "detector: decode %s", key)
	}

	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, eris.Wrapf(err, "detector: %s is not numeric", key)
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	default:
		return 0, eris.Errorf("detector: %s has non-numeric value %s", key, string(raw))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("detector: %s is not finite", key)
	}
	return f, nil
}

// stringField returns a JSON string as-is and any other value in its JSON form.
func stringField(fields map[string]json.RawMessage, key, def string) string {
	raw, ok := fields[key]
	if !ok {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}

// truncate4 drops everything past the 4th decimal. It truncates toward zero;
// it does not round.
func truncate4(x float64) float64 {
	return math.Trunc(x*10000) / 10000
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
