// Package detector scores video frames for signs of AI generation by asking
// a remote vision model, falling back to a deterministic demo score whenever
// the model cannot be consulted.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vidauth/internal/cost"
	"github.com/sells-group/vidauth/internal/model"
	"github.com/sells-group/vidauth/internal/resilience"
	"github.com/sells-group/vidauth/pkg/openrouter"
)

// DefaultMaxBatchSize is the largest batch AnalyzeBatch accepts by default.
const DefaultMaxBatchSize = 60

const logBodyRunes = 500

// Client input errors. Their messages are safe to return to callers.
var (
	ErrEmptyImage    = eris.New("No image data provided.")
	ErrEmptyBatch    = eris.New("No frames provided.")
	ErrBatchTooLarge = eris.New("Too many frames in batch.")
)

// BatchLimitError reports a batch over the frame limit. It matches
// ErrBatchTooLarge under errors.Is.
type BatchLimitError struct {
	Limit int
	Got   int
}

func (e *BatchLimitError) Error() string {
	return fmt.Sprintf("Maximum %d frames per batch.", e.Limit)
}

// Is reports whether target is ErrBatchTooLarge.
func (e *BatchLimitError) Is(target error) bool {
	return target == ErrBatchTooLarge
}

// IsInputError reports whether err is a client input error.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyImage) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrBatchTooLarge)
}

// Detector analyzes frames. It holds no mutable state and is safe for
// concurrent use.
type Detector struct {
	client   openrouter.Client
	costs    *cost.Calculator
	maxBatch int
}

// Option configures a Detector.
type Option func(*Detector)

// WithCostCalculator attributes token costs for each upstream call.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(d *Detector) {
		d.costs = c
	}
}

// WithMaxBatchSize overrides DefaultMaxBatchSize.
func WithMaxBatchSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxBatch = n
		}
	}
}

// New creates a Detector. A nil client puts the detector in demo mode where
// every frame is answered by MockPrediction.
func New(client openrouter.Client, opts ...Option) *Detector {
	d := &Detector{
		client:   client,
		maxBatch: DefaultMaxBatchSize,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DemoMode reports whether no upstream client is configured.
func (d *Detector) DemoMode() bool {
	return d.client == nil
}

// MaxBatchSize returns the batch frame limit.
func (d *Detector) MaxBatchSize() int {
	return d.maxBatch
}

// AnalyzeFrame scores a single frame. The only error it returns is
// ErrEmptyImage; upstream failures resolve to the mock result.
func (d *Detector) AnalyzeFrame(ctx context.Context, req model.FrameRequest) (model.Result, error) {
	if req.Image == "" {
		return model.Result{}, ErrEmptyImage
	}
	return d.analyze(ctx, zap.L(), req.Image, req.Name()), nil
}

// AnalyzeBatch scores frames one at a time in input order. It fails only on
// batch validation; every entry resolves to a real or mock result.
func (d *Detector) AnalyzeBatch(ctx context.Context, frames []model.FrameRequest) ([]model.Result, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(frames) > d.maxBatch {
		return nil, &BatchLimitError{Limit: d.maxBatch, Got: len(frames)}
	}

	log := zap.L().With(zap.String("batch_id", uuid.NewString()))
	log.Info("batch analysis started", zap.Int("frames", len(frames)))

	results := make([]model.Result, 0, len(frames))
	mocks := 0
	for i, f := range frames {
		flog := log.With(zap.Int("index", i))

		var res model.Result
		if f.Image == "" {
			flog.Warn("batch frame has no image data, using mock", zap.String("filename", f.Name()))
			res = MockPrediction(f.Name())
		} else {
			res = d.analyze(ctx, flog, f.Image, f.Name())
		}
		if res.IsMock() {
			mocks++
		}
		results = append(results, res)
	}

	log.Info("batch analysis complete",
		zap.Int("frames", len(results)),
		zap.Int("mock_results", mocks),
	)
	return results, nil
}

// analyze runs one frame through the upstream model. Any failure, including
// a panic, yields the mock result.
func (d *Detector) analyze(ctx context.Context, log *zap.Logger, image, filename string) (res model.Result) {
	log = log.With(
		zap.String("component", "detector"),
		zap.String("filename", filename),
	)

	if d.client == nil {
		log.Debug("no api key configured, returning mock prediction",
			zap.String("reason", resilience.ReasonNoCredential))
		return MockPrediction(filename)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic analyzing frame, returning mock prediction", zap.Any("panic", r))
			res = MockPrediction(filename)
		}
	}()

	modelID := d.client.Model()
	resp, err := d.client.ChatCompletion(ctx, BuildRequest(modelID, image, filename))
	if err == nil && len(resp.Choices) == 0 {
		err = eris.Wrap(resilience.ErrEmptyReply, "detector: chat completion")
	}
	if err != nil {
		fields := []zap.Field{
			zap.String("reason", resilience.Reason(err)),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		}
		var serr *openrouter.StatusError
		if errors.As(err, &serr) {
			fields = append(fields,
				zap.Int("status", serr.StatusCode),
				zap.String("body", snippet(serr.Body, logBodyRunes)),
			)
		}
		log.Warn("upstream analysis failed, returning mock prediction", fields...)
		return MockPrediction(filename)
	}

	d.costs.LogChat(log, modelID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	res = Normalize(strings.TrimSpace(resp.Choices[0].Message.Content))
	res.ModelVersion = model.ModelVersionPrefix + modelID

	log.Debug("frame analyzed",
		zap.String("verdict", res.Verdict()),
		zap.Float64("fake_probability", res.FakeProbability),
		zap.Float64("confidence", res.Confidence),
	)
	return res
}
