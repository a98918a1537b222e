// Package generate produces security requirement lists, either from a
// generative model or from a YAML file for offline and deterministic runs.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"google.golang.org/genai"

	"github.com/secbase/secbase/internal/baseline"
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ContentGenerator is the slice of the genai client the generator needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ModelSource generates requirements with a generative model.
type ModelSource struct {
	models ContentGenerator
	model  string
}

// NewModelSource creates a generator backed by the genai API.
func NewModelSource(apiKey, model string) (*ModelSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("model generation requires an API key")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &ModelSource{models: client.Models, model: model}, nil
}

// NewModelSourceWithGenerator creates a generator with an injected content
// generator, used by tests.
func NewModelSourceWithGenerator(gen ContentGenerator, model string) *ModelSource {
	return &ModelSource{models: gen, model: model}
}

// Generate asks the model for baseline requirements for the service and
// parses them out of the response.
func (s *ModelSource) Generate(ctx context.Context, serviceName string) ([]*baseline.Requirement, error) {
	prompt := generationPrompt(serviceName)

	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("requirement generation call failed: %w", err)
	}

	return parseRequirements(resp.Text())
}

// generationPrompt renders the requirement generation prompt.
func generationPrompt(serviceName string) string {
	return fmt.Sprintf(`You are a cloud security expert. Generate comprehensive security baseline requirements for %s.

For each requirement, provide:
1. objective: a category like "Access Control", "Encryption", "Network Security"
2. description: clear description of what must be configured
3. configuration: the exact configuration in JSON format
4. test_method: how to validate this requirement
5. priority: HIGH, MEDIUM, or LOW

Focus on critical security controls. Provide 5-8 requirements.

Return your response as a JSON object with a "requirements" array, for example:
{
  "requirements": [
    {
      "objective": "Access Control",
      "description": "Instance Metadata Service v1 must be disabled",
      "configuration": {
        "MetadataOptions": {"HttpTokens": "required", "HttpEndpoint": "enabled"}
      },
      "test_method": "Attempt to access the IMDSv1 endpoint without a token",
      "priority": "HIGH"
    }
  ]
}`, serviceName)
}

// parseRequirements extracts the requirements array from model output.
func parseRequirements(text string) ([]*baseline.Requirement, error) {
	match := jsonObject.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no JSON object found in model response")
	}

	var payload struct {
		Requirements []*baseline.Requirement `json:"requirements"`
	}
	if err := json.Unmarshal([]byte(match), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse generated requirements: %w", err)
	}

	for _, req := range payload.Requirements {
		req.Status = baseline.StatusPending
	}
	return payload.Requirements, nil
}
