package detector

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/sells-group/vidauth/internal/model"
)

const mockConfidence = 0.6

// MockPrediction derives a deterministic demo score from the filename. It is
// used whenever the upstream model cannot be consulted and never fails.
func MockPrediction(filename string) model.Result {
	sum := md5.Sum([]byte(filename))
	digest := hex.EncodeToString(sum[:])

	// 8 hex chars always fit in 32 bits.
	v, _ := strconv.ParseUint(digest[:8], 16, 32)
	fakeProb := float64(v%100) / 100.0
	realProb := 1.0 - fakeProb

	return model.Result{
		RealProbability: truncate4(realProb),
		FakeProbability: truncate4(fakeProb),
		Confidence:      mockConfidence,
		Explanation:     fmt.Sprintf("[DEMO MODE] Mock analysis of %s. Set OPENROUTER_API_KEY for real predictions.", filename),
		ModelVersion:    model.ModelVersionMock,
	}
}
