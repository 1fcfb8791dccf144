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

// Package cloud provides components for interacting with Google Cloud
// services. This file contains the hierarchical configuration loader,
// environment overrides for secrets, and a resilient helper for multimodal
// GenAI requests.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"go.opentelemetry.io/otel/metric"

	"github.com/BurntSushi/toml"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"              // Base name for configuration files (".env.toml").
	ConfigFileExtension = ".toml"             // Extension for configuration files.
	ConfigSeparator     = "."                 // Separator in override file names (".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // Environment variable naming the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // Environment variable naming the runtime ("local", "test", "prod").
	EnvGeminiAPIKey     = "GEMINI_API_KEY"    // Environment variable carrying the Gemini API key.
	EnvOutputBucket     = "OUTPUT_BUCKET"     // Environment variable overriding the frame output bucket.
	MaxRetries          = 3                   // Maximum number of retries for a failed GenAI call.
)

// fileExists reports whether a file or directory exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig populates baseConfig from a base TOML file and then overlays an
// environment-specific TOML file on top of it. The config directory comes from
// GCP_CONFIG_PREFIX and the runtime suffix from GCP_RUNTIME (default "test"),
// so a "local" runtime reads ".env.toml" then ".env.local.toml".
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	if fileExists(baseConfigFileName) {
		_, err := toml.DecodeFile(baseConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	// Values in the environment file overwrite the base values.
	if fileExists(envConfigFileName) {
		_, err := toml.DecodeFile(envConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}

// ApplyEnvOverrides copies deploy-time settings from the process environment
// into the config. Secrets never live in the TOML files, so the API key comes
// exclusively from here. OUTPUT_BUCKET, when set, wins over the TOML value.
func ApplyEnvOverrides(config *Config) {
	if key := os.Getenv(EnvGeminiAPIKey); key != "" {
		config.Detector.GeminiAPIKey = key
	}
	if bucket := os.Getenv(EnvOutputBucket); bucket != "" {
		config.Storage.OutputBucket = bucket
	}
}

// ContentGenerator is the narrow surface the workflow needs from a generative
// model. The production implementation is QuotaAwareGenerativeAIModel; tests
// substitute fakes.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// GenerateMultiModalResponse executes a multimodal request against a
// generative model, retrying transient failures up to MaxRetries times and
// recording token usage on the provided counters. The concatenated candidate
// text is returned with any surrounding ```json fences removed.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	tryCount int,
	model ContentGenerator,
	content []*genai.Content) (value string, err error) {
	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		if tryCount < MaxRetries {
			retryCounter.Add(ctx, 1)
			return GenerateMultiModalResponse(ctx, inputTokenCounter, outputTokenCounter, retryCounter, tryCount+1, model, content)
		}
		return "", err
	}

	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	value = ""
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				value += fmt.Sprint(part.Text)
			}
		}
	}
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimSuffix(value, "```")
	return value, nil
}
