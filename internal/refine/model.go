package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/secbase/secbase/internal/baseline"
)

// jsonObject matches the outermost JSON object in a model response, which
// may be wrapped in prose or a code fence.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ContentGenerator is the slice of the genai client the refiner needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ModelRefiner asks a generative model to analyze the failed checks and
// propose a corrected configuration.
type ModelRefiner struct {
	models ContentGenerator
	model  string
}

// NewModelRefiner creates a refiner backed by the genai API.
func NewModelRefiner(apiKey, model string) (*ModelRefiner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("model refiner requires an API key")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &ModelRefiner{models: client.Models, model: model}, nil
}

// NewModelRefinerWithGenerator creates a refiner with an injected content
// generator, used by tests.
func NewModelRefinerWithGenerator(gen ContentGenerator, model string) *ModelRefiner {
	return &ModelRefiner{models: gen, model: model}
}

// Refine sends the failure detail to the model and parses the refined
// configuration out of its response.
func (r *ModelRefiner) Refine(ctx context.Context, req *baseline.Requirement, result *baseline.ValidationResult, attempt int) (*baseline.Refinement, error) {
	prompt, err := buildPrompt(req, result, attempt)
	if err != nil {
		return nil, err
	}

	resp, err := r.models.GenerateContent(ctx, r.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("refinement model call failed: %w", err)
	}

	refined, err := ParseConfiguration(resp.Text())
	if err != nil {
		return nil, err
	}

	return &baseline.Refinement{
		Configuration: refined,
		Notes: []string{
			fmt.Sprintf("Configuration refined based on test failure analysis - Attempt %d", attempt),
			fmt.Sprintf("Original validation error: %s", errorOf(result)),
		},
	}, nil
}

// buildPrompt renders the refinement prompt with the current configuration
// and the failed check detail.
func buildPrompt(req *baseline.Requirement, result *baseline.ValidationResult, attempt int) (string, error) {
	currentConfig, err := json.MarshalIndent(req.Configuration, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode current configuration: %w", err)
	}
	failedChecks, err := json.MarshalIndent(result.FailedChecks(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode failed checks: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a cloud security expert refining a security configuration that failed validation tests.\n\n")
	fmt.Fprintf(&b, "ORIGINAL REQUIREMENT:\n- Objective: %s\n- Description: %s\n- Current Configuration:\n%s\n\n",
		req.Objective, req.Description, currentConfig)
	fmt.Fprintf(&b, "VALIDATION FAILURE:\n- Attempt Number: %d\n- Validation Error: %s\n- Failed Checks:\n%s\n\n",
		attempt, errorOf(result), failedChecks)
	b.WriteString(`Analyze why the configuration failed, identify the settings to modify, and provide a corrected configuration. Prefer the most restrictive settings that will pass validation.

Return ONLY the refined configuration as a JSON object, without any explanation text.`)
	return b.String(), nil
}

// ParseConfiguration extracts a configuration document from model output.
func ParseConfiguration(text string) (map[string]any, error) {
	match := jsonObject.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no JSON object found in model response")
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(match), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse refined configuration: %w", err)
	}
	return cfg, nil
}

// Chain tries each refiner in order and returns the first success. It is
// how the model refiner falls back to deterministic rules.
type Chain []Refiner

// Refiner matches the orchestration collaborator contract locally so the
// chain can hold both implementations without importing orchestration.
type Refiner interface {
	Refine(ctx context.Context, req *baseline.Requirement, result *baseline.ValidationResult, attempt int) (*baseline.Refinement, error)
}

// Refine runs the chained refiners in order.
func (c Chain) Refine(ctx context.Context, req *baseline.Requirement, result *baseline.ValidationResult, attempt int) (*baseline.Refinement, error) {
	var lastErr error
	for _, r := range c {
		refinement, err := r.Refine(ctx, req, result, attempt)
		if err == nil {
			return refinement, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no refiners configured")
	}
	return nil, fmt.Errorf("could not generate refined configuration: %w", lastErr)
}
