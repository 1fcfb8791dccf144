// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that asks the generative model for the timestamp of the requested
// moment and parses its answer.
//
// The model is instructed to return strictly `{"second": <float>}`, but the
// parser tolerates markdown fences and surrounding prose by falling back to
// the substring between the first '{' and the last '}'. An answer that still
// does not parse means "not found", never an error.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"google.golang.org/genai"
)

// MomentLocator sends one multimodal request (video handle + prompt) through
// the quota-aware model and records the detected timestamp on the outcome.
type MomentLocator struct {
	cor.BaseCommand
	generativeAIModel        cloud.ContentGenerator
	modelName                string
	template                 *template.Template
	geminiInputTokenCounter  metric.Int64Counter
	geminiOutputTokenCounter metric.Int64Counter
	geminiRetryCounter       metric.Int64Counter
}

// NewMomentLocator is the constructor for the MomentLocator command.
func NewMomentLocator(
	name string,
	generativeAIModel cloud.ContentGenerator,
	modelName string,
	template *template.Template) *MomentLocator {

	out := &MomentLocator{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: generativeAIModel,
		modelName:         modelName,
		template:          template,
	}

	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.retry", out.GetName()))

	return out
}

// IsExecutable requires the uploaded file handle; when the upload degraded
// the run, this command is skipped.
func (t *MomentLocator) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(GetRemoteFileParameterName()) != nil
}

// Execute renders the prompt, calls the model, and parses the timestamp.
func (t *MomentLocator) Execute(context cor.Context) {
	mediaFile := context.Get(GetRemoteFileParameterName()).(*genai.File)
	outcome := getOutcome(context)
	if outcome != nil {
		outcome.ModelName = t.modelName
	}

	var buffer bytes.Buffer
	if err := t.template.Execute(&buffer, map[string]interface{}{}); err != nil {
		t.failSoft(context, outcome, "failed to execute prompt template: "+err.Error())
		return
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: buffer.String()},
				{FileData: &genai.FileData{
					FileURI:  mediaFile.URI,
					MIMEType: mediaFile.MIMEType,
				}},
			},
			Role: "user",
		},
	}

	out, err := cloud.GenerateMultiModalResponse(context.GetContext(),
		t.geminiInputTokenCounter, t.geminiOutputTokenCounter, t.geminiRetryCounter,
		0, t.generativeAIModel, contents)
	if err != nil {
		t.failSoft(context, outcome, "gemini request failed: "+err.Error())
		return
	}

	result, err := parseMomentResult(out)
	if err != nil {
		t.failSoft(context, outcome, "unparsable model response: "+err.Error())
		return
	}

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	if outcome != nil {
		outcome.Detected = true
		outcome.Second = result.Second
	}
	context.Add(t.GetOutputParam(), result)
}

// failSoft marks the run as not-detected; locator failures never stop the chain.
func (t *MomentLocator) failSoft(context cor.Context, outcome *model.DetectionOutcome, reason string) {
	t.GetErrorCounter().Add(context.GetContext(), 1)
	if outcome != nil {
		outcome.Detected = false
		outcome.FailureReason = reason
	}
}

// parseMomentResult recovers a MomentResult from raw model output that may be
// fenced or embedded in prose. The "second" value must be present and numeric;
// a reply like {} or {"second": null} is a parse failure, not a detection at
// second zero.
func parseMomentResult(raw string) (*model.MomentResult, error) {
	text := stripMarkdownFences(raw)
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var answer struct {
		Second *float64 `json:"second"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &answer); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if answer.Second == nil {
		return nil, fmt.Errorf("answer has no numeric \"second\" value")
	}
	return &model.MomentResult{Second: *answer.Second}, nil
}

// stripMarkdownFences removes a ```json ... ``` or ``` ... ``` wrapper.
func stripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	endIdx := len(lines) - 1
	for i := len(lines) - 1; i >= 1; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.Join(lines[1:endIdx], "\n")
}

// extractJSONObject returns the substring from the first '{' to the last '}'.
func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found")
	}
	text = text[start:]
	end := strings.LastIndex(text, "}")
	if end == -1 {
		return "", fmt.Errorf("no closing brace found")
	}
	return text[:end+1], nil
}
