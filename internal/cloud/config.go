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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. Settings cover the Google Cloud project, storage
// buckets, the moment detector tuning knobs, GenAI model parameters,
// Pub/Sub subscriptions, and prompt templates.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings defines the content safety thresholds applied to every
// GenAI request. The detector analyzes trusted, user-owned video, so all
// categories are left unblocked.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// BigQueryDataSource holds the dataset and table used for the detection log.
// Leaving the dataset empty disables persistence entirely.
type BigQueryDataSource struct {
	DatasetName    string `toml:"dataset"`         // The name of the BigQuery dataset.
	DetectionTable string `toml:"detection_table"` // The table receiving one row per detection run.
}

// PromptTemplates holds the text templates rendered into model prompts.
type PromptTemplates struct {
	MomentPrompt string `toml:"moment"` // The template asking the model for the moment timestamp.
}

// GenAiLLMModel describes a single named generative model configuration.
type GenAiLLMModel struct {
	Model              string  `toml:"model"`               // The model identifier (e.g. "gemini-2.0-flash").
	SystemInstructions string  `toml:"system_instructions"` // System instructions sent with every request.
	Temperature        float32 `toml:"temperature"`         // Sampling temperature.
	TopP               float32 `toml:"top_p"`               // Nucleus sampling parameter.
	TopK               float32 `toml:"top_k"`               // Top-K sampling parameter.
	MaxTokens          int32   `toml:"max_tokens"`          // Maximum output tokens.
	OutputFormat       string  `toml:"output_format"`       // Response MIME type (e.g. "application/json").
	RateLimit          int     `toml:"rate_limit"`          // Requests per second allowed through the quota wrapper.
}

// TopicSubscription configures a single Pub/Sub subscription feeding the
// detection workflow. The map in Config may be empty, in which case the
// service runs webhook-only.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The Pub/Sub subscription ID.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The dead-letter topic, if configured.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Receive timeout for the subscription.
}

// Storage configures the GCS buckets the service touches. The output bucket is
// optional; when empty, extracted frames are discarded after the response.
type Storage struct {
	OutputBucket string `toml:"output_bucket"` // Destination bucket for extracted frame images.
}

// Detector holds the tuning knobs for the moment detection pipeline itself.
type Detector struct {
	AgentModel          string `toml:"agent_model"`           // Key into Config.AgentModels naming the model to use.
	PollIntervalSeconds int    `toml:"poll_interval_seconds"` // Interval between Files API state polls.
	PollTimeoutSeconds  int    `toml:"poll_timeout_seconds"`  // Deadline for the file to become ACTIVE.
	FFmpegPath          string `toml:"ffmpeg_path"`           // Path to the ffmpeg binary.
	FFprobePath         string `toml:"ffprobe_path"`          // Path to the ffprobe binary.

	// GeminiAPIKey is never read from TOML. It is populated from the
	// GEMINI_API_KEY environment variable by ApplyEnvOverrides.
	GeminiAPIKey string `toml:"-"`
}

// Config is the root configuration for the service, loaded from TOML files.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`                         // Service name, used for telemetry resources.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // Service account used to sign frame URLs. Optional.
	} `toml:"application"`
	Storage            Storage                      `toml:"storage"`
	Detector           Detector                     `toml:"detector"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`
	AgentModels        map[string]GenAiLLMModel     `toml:"agent_models"`
}

// NewConfig creates an initialized Config. The maps must be allocated before
// the TOML decoder populates them.
func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]GenAiLLMModel),
	}
}
