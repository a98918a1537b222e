package refine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/secbase/secbase/internal/baseline"
)

type fakeContentGenerator struct {
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeContentGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func modelResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func failedResult() *baseline.ValidationResult {
	return &baseline.ValidationResult{
		Success: false,
		Error:   "IMDS validation failed",
		Checks:  []baseline.CheckResult{{Name: "IMDSv1 Blocked", Passed: false, Detail: "HttpTokens is optional"}},
	}
}

func TestRuleRefinerMetadataEscalation(t *testing.T) {
	req := &baseline.Requirement{
		Objective:     "Access Control",
		Description:   "Instance metadata service hardening",
		Configuration: map[string]any{"MetadataOptions": map[string]any{"HttpTokens": "optional"}},
	}

	first, err := NewRuleRefiner().Refine(context.Background(), req, failedResult(), 1)
	require.NoError(t, err)
	options := first.Configuration["MetadataOptions"].(map[string]any)
	assert.Equal(t, "required", options["HttpTokens"])
	assert.Equal(t, "enabled", options["HttpEndpoint"])
	assert.Equal(t, 1, options["HttpPutResponseHopLimit"])

	second, err := NewRuleRefiner().Refine(context.Background(), req, failedResult(), 2)
	require.NoError(t, err)
	options = second.Configuration["MetadataOptions"].(map[string]any)
	assert.Equal(t, "disabled", options["HttpEndpoint"], "the endpoint is disabled entirely on later attempts")

	require.Len(t, first.Notes, 2)
	assert.Contains(t, first.Notes[0], "Attempt 1")
	assert.Contains(t, first.Notes[1], "IMDS validation failed")
}

func TestRuleRefinerNetworkEscalation(t *testing.T) {
	req := &baseline.Requirement{
		Objective:     "Network Security",
		Description:   "no public exposure",
		Configuration: map[string]any{"AssociatePublicIpAddress": true},
	}

	first, err := NewRuleRefiner().Refine(context.Background(), req, failedResult(), 1)
	require.NoError(t, err)
	assert.Equal(t, false, first.Configuration["AssociatePublicIpAddress"])
	assert.NotContains(t, first.Configuration, "EbsOptimized")

	second, err := NewRuleRefiner().Refine(context.Background(), req, failedResult(), 2)
	require.NoError(t, err)
	assert.Equal(t, true, second.Configuration["EbsOptimized"])
}

func TestRuleRefinerEncryption(t *testing.T) {
	req := &baseline.Requirement{
		Objective:     "Encryption",
		Description:   "volumes encrypted at rest",
		Configuration: map[string]any{},
	}

	refinement, err := NewRuleRefiner().Refine(context.Background(), req, failedResult(), 1)
	require.NoError(t, err)
	mappings := refinement.Configuration["BlockDeviceMappings"].([]any)
	require.Len(t, mappings, 1)
	ebs := mappings[0].(map[string]any)["Ebs"].(map[string]any)
	assert.Equal(t, true, ebs["Encrypted"])

	// An existing mapping only gets the encrypted flag forced.
	req.Configuration = map[string]any{"BlockDeviceMappings": []any{map[string]any{"DeviceName": "/dev/sda1"}}}
	refinement, err = NewRuleRefiner().Refine(context.Background(), req, failedResult(), 1)
	require.NoError(t, err)
	assert.Equal(t, true, refinement.Configuration["Encrypted"])
}

func TestRuleRefinerUnknownObjective(t *testing.T) {
	req := &baseline.Requirement{Objective: "Logging", Description: "enable audit records"}
	_, err := NewRuleRefiner().Refine(context.Background(), req, failedResult(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no refinement rule")
}

func TestRuleRefinerDoesNotMutateOriginal(t *testing.T) {
	original := map[string]any{"MetadataOptions": map[string]any{"HttpTokens": "optional"}}
	req := &baseline.Requirement{
		Objective:     "Access Control",
		Description:   "metadata hardening",
		Configuration: original,
	}

	_, err := NewRuleRefiner().Refine(context.Background(), req, failedResult(), 1)
	require.NoError(t, err)
	assert.Equal(t, "optional", original["MetadataOptions"].(map[string]any)["HttpTokens"])
}

func TestModelRefinerParsesFencedResponse(t *testing.T) {
	gen := &fakeContentGenerator{resp: modelResponse("Here is the fix:\n```json\n" +
		`{"MetadataOptions": {"HttpTokens": "required", "HttpEndpoint": "enabled"}}` + "\n```")}
	refiner := NewModelRefinerWithGenerator(gen, "gemini-2.5-flash")

	req := &baseline.Requirement{
		Objective:     "Access Control",
		Description:   "metadata hardening",
		Configuration: map[string]any{"MetadataOptions": map[string]any{"HttpTokens": "optional"}},
	}
	refinement, err := refiner.Refine(context.Background(), req, failedResult(), 2)
	require.NoError(t, err)

	options := refinement.Configuration["MetadataOptions"].(map[string]any)
	assert.Equal(t, "required", options["HttpTokens"])
	assert.Contains(t, refinement.Notes[0], "Attempt 2")

	// The prompt carries the failure detail the model needs.
	assert.Contains(t, gen.prompt, "IMDS validation failed")
	assert.Contains(t, gen.prompt, "IMDSv1 Blocked")
	assert.Contains(t, gen.prompt, "Attempt Number: 2")
}

func TestModelRefinerCallFailure(t *testing.T) {
	gen := &fakeContentGenerator{err: errors.New("model unavailable")}
	refiner := NewModelRefinerWithGenerator(gen, "gemini-2.5-flash")

	_, err := refiner.Refine(context.Background(), &baseline.Requirement{}, failedResult(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refinement model call failed")
}

func TestNewModelRefinerRequiresAPIKey(t *testing.T) {
	_, err := NewModelRefiner("", "gemini-2.5-flash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestParseConfiguration(t *testing.T) {
	cfg, err := ParseConfiguration(`prose before {"Encrypted": true} prose after`)
	require.NoError(t, err)
	assert.Equal(t, true, cfg["Encrypted"])

	_, err = ParseConfiguration("no json here")
	require.Error(t, err)

	_, err = ParseConfiguration(`{"Encrypted": }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse refined configuration")
}

func TestChainFallsBackToNextRefiner(t *testing.T) {
	gen := &fakeContentGenerator{err: errors.New("model unavailable")}
	chain := Chain{
		NewModelRefinerWithGenerator(gen, "gemini-2.5-flash"),
		NewRuleRefiner(),
	}

	req := &baseline.Requirement{
		Objective:     "Access Control",
		Description:   "metadata hardening",
		Configuration: map[string]any{},
	}
	refinement, err := chain.Refine(context.Background(), req, failedResult(), 1)
	require.NoError(t, err, "the rule refiner serves when the model is down")
	assert.NotNil(t, refinement.Configuration["MetadataOptions"])
}

func TestChainReportsLastError(t *testing.T) {
	req := &baseline.Requirement{Objective: "Logging", Description: "audit"}
	_, err := Chain{NewRuleRefiner()}.Refine(context.Background(), req, failedResult(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not generate refined configuration")

	_, err = Chain{}.Refine(context.Background(), req, failedResult(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no refiners configured")
}
