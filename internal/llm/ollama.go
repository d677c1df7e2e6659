// Package llm implements the deterministic local model fallback that is
// consulted when source aggregation cannot reach a verdict.
package llm

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/logging"
)

// Package-level logger for the LLM fallback
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "llm.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "llm", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize llm file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "llm")
		closeLogger = func() error { return nil }
	}
}

//go:embed prompt.tmpl
var defaultPromptTemplate string

// OllamaConfig carries the Ollama classifier settings. Seed and temperature
// pin the sampling so the same artist always yields the same verdict.
type OllamaConfig struct {
	Host        string
	Model       string
	KeepAlive   string
	Seed        int
	Temperature float64
	NumPredict  int
	Timeout     time.Duration
	PromptPath  string // optional prompt template override on disk
}

// OllamaClassifier asks a local Ollama model for a verdict. It implements
// classify.Fallback.
type OllamaClassifier struct {
	cfg        OllamaConfig
	httpClient *http.Client
	prompt     *template.Template
}

// promptData is what the prompt template renders.
type promptData struct {
	ArtistName string
	Findings   []string
}

// verdict is the JSON object the model is instructed to emit.
type verdict struct {
	Label        string   `json:"label"`
	IsArtificial bool     `json:"is_artificial"`
	Confidence   float64  `json:"confidence"`
	Reason       string   `json:"reason"`
	Citations    []string `json:"citations"`
}

// NewOllamaClassifier creates an Ollama backed fallback classifier. The
// prompt template comes from cfg.PromptPath when set, otherwise the
// embedded default is used.
func NewOllamaClassifier(cfg OllamaConfig) (*OllamaClassifier, error) {
	if cfg.Host == "" || cfg.Model == "" {
		return nil, errors.Newf("ollama host and model are required").
			Component("llm").
			Category(errors.CategoryConfiguration).
			Build()
	}

	promptText := defaultPromptTemplate
	if cfg.PromptPath != "" {
		data, err := os.ReadFile(cfg.PromptPath)
		if err != nil {
			return nil, errors.New(err).
				Component("llm").
				Category(errors.CategoryFileIO).
				Context("prompt_path", cfg.PromptPath).
				Build()
		}
		promptText = string(data)
	}

	prompt, err := template.New("prompt").Parse(promptText)
	if err != nil {
		return nil, errors.New(err).
			Component("llm").
			Category(errors.CategoryConfiguration).
			Context("prompt_path", cfg.PromptPath).
			Build()
	}

	logger.Info("ollama classifier initialized",
		"host", cfg.Host,
		"model", cfg.Model,
		"seed", cfg.Seed,
		"temperature", cfg.Temperature)

	return &OllamaClassifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		prompt:     prompt,
	}, nil
}

// Name implements classify.Fallback.
func (c *OllamaClassifier) Name() string { return "ollama" }

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	Stream    bool            `json:"stream"`
	Format    string          `json:"format"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Options   generateOptions `json:"options"`
}

type generateOptions struct {
	Seed        int     `json:"seed"`
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Classify implements classify.Fallback. It renders the prompt from the
// artist and the source findings, requests a JSON constrained completion
// with fixed seed and zero temperature, and validates the model's verdict.
func (c *OllamaClassifier) Classify(ctx context.Context, artist classify.ArtistIdentity, signals []classify.SourceSignal) (*classify.FallbackResult, error) {
	var rendered bytes.Buffer
	if err := c.prompt.Execute(&rendered, promptData{
		ArtistName: artist.Name,
		Findings:   findings(signals),
	}); err != nil {
		return nil, errors.New(err).
			Component("llm").
			Category(errors.CategoryLLMFallback).
			Context("artist_name", artist.Name).
			Build()
	}

	reqBody, err := json.Marshal(generateRequest{
		Model:     c.cfg.Model,
		Prompt:    rendered.String(),
		Stream:    false,
		Format:    "json",
		KeepAlive: c.cfg.KeepAlive,
		Options: generateOptions{
			Seed:        c.cfg.Seed,
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.NumPredict,
		},
	})
	if err != nil {
		return nil, errors.New(err).
			Component("llm").
			Category(errors.CategoryLLMFallback).
			Build()
	}

	url := strings.TrimSuffix(c.cfg.Host, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.New(err).
			Component("llm").
			Category(errors.CategoryNetwork).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("llm").
			Category(errors.CategoryNetwork).
			Context("host", c.cfg.Host).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("ollama returned status %d", resp.StatusCode).
			Component("llm").
			Category(errors.CategoryLLMFallback).
			Context("status_code", resp.StatusCode).
			Context("model", c.cfg.Model).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("llm").
			Category(errors.CategoryNetwork).
			Build()
	}

	var generated generateResponse
	if err := json.Unmarshal(body, &generated); err != nil {
		return nil, errors.New(err).
			Component("llm").
			Category(errors.CategoryLLMFallback).
			Build()
	}

	result, err := c.parseVerdict(generated.Response)
	if err != nil {
		return nil, err
	}

	logger.Debug("ollama verdict",
		"artist_name", artist.Name,
		"label", result.Label,
		"is_artificial", result.IsArtificial,
		"confidence", result.Confidence)
	return result, nil
}

// parseVerdict validates the model output against the closed label set.
// Anything malformed is an error; the engine then keeps the aggregate.
func (c *OllamaClassifier) parseVerdict(raw string) (*classify.FallbackResult, error) {
	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.Newf("model emitted invalid JSON: %v", err).
			Component("llm").
			Category(errors.CategoryLLMFallback).
			Context("model", c.cfg.Model).
			Build()
	}

	label, ok := classify.ParseLabel(v.Label)
	if !ok || label == classify.LabelUnknown {
		return nil, errors.Newf("model emitted label outside the closed set: %q", v.Label).
			Component("llm").
			Category(errors.CategoryLLMFallback).
			Context("model", c.cfg.Model).
			Build()
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return nil, errors.Newf("model emitted confidence out of range: %f", v.Confidence).
			Component("llm").
			Category(errors.CategoryLLMFallback).
			Build()
	}

	reason := v.Reason
	if len(v.Citations) > 0 {
		reason = fmt.Sprintf("%s (citing %s)", reason, strings.Join(v.Citations, "; "))
	}

	return &classify.FallbackResult{
		Label:        label,
		IsArtificial: v.IsArtificial,
		Confidence:   v.Confidence,
		Reason:       reason,
		Model:        c.cfg.Model,
	}, nil
}

// findings summarizes the source signals for the prompt.
func findings(signals []classify.SourceSignal) []string {
	var out []string
	for i := range signals {
		s := &signals[i]
		switch {
		case s.Failed():
			out = append(out, fmt.Sprintf("%s: lookup failed", s.Source))
		case !s.HasLabel():
			out = append(out, fmt.Sprintf("%s: no data", s.Source))
		default:
			line := fmt.Sprintf("%s: %s", s.Source, s.Label)
			if s.Evidence != "" {
				line += " (" + s.Evidence + ")"
			}
			out = append(out, line)
		}
	}
	return out
}
