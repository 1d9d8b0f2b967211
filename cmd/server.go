package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/vidauth/internal/detector"
	"github.com/sells-group/vidauth/internal/model"
)

const (
	serviceName    = "VidAuth AI Inference"
	serviceVersion = "1.0.0"
	inferenceMode  = "openrouter-cloud"
)

// routerOptions carries the values the handlers report or enforce.
type routerOptions struct {
	ModelName    string
	MaxBodyBytes int64
}

// buildRouter wires the HTTP surface around det.
func buildRouter(det *detector.Detector, opts routerOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	if opts.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(opts.MaxBodyBytes))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": serviceName,
			"version": serviceVersion,
			"model":   opts.ModelName,
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "healthy",
			"model_loaded":   true,
			"model_name":     opts.ModelName,
			"inference_mode": inferenceMode,
		})
	})

	r.Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		var req model.FrameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := det.AnalyzeFrame(r.Context(), req)
		if err != nil {
			writeAnalysisError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/predict/batch", func(w http.ResponseWriter, r *http.Request) {
		var frames []model.FrameRequest
		if err := json.NewDecoder(r.Body).Decode(&frames); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}

		results, err := det.AnalyzeBatch(r.Context(), frames)
		if err != nil {
			writeAnalysisError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	return r
}

// writeAnalysisError maps detector errors to responses. Input errors carry
// client-facing messages; anything else is unexpected.
func writeAnalysisError(w http.ResponseWriter, err error) {
	if detector.IsInputError(err) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	zap.L().Error("analysis failed", zap.Error(err))
	writeDetail(w, http.StatusInternalServerError, "internal error")
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response failed", zap.Error(err))
	}
}

// requestLogger logs one line per request with zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
