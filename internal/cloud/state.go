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
// services. This file initializes every external client the service talks to
// and bundles them into a single ServiceClients container that the server and
// workflows share.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is the container for all external service connections. It is
// built once at startup and injected into the workflow and HTTP handlers.
type ServiceClients struct {
	StorageClient   *storage.Client                   // Client for Google Cloud Storage.
	PubsubClient    *pubsub.Client                    // Client for Google Cloud Pub/Sub.
	GenAIClient     *genai.Client                     // Client for the Gemini API. Nil when no API key is configured.
	BigQueryClient  *bigquery.Client                  // Client for Google Cloud BigQuery.
	IAMClient       *credentials.IamCredentialsClient // Client for IAM, used for signing frame URLs.
	PubSubListeners map[string]*PubSubListener        // Active Pub/Sub listeners keyed by logical name.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel

	Blobs BlobService       // GCS adapter used by workflow commands.
	Files *GenAIFileService // Files API adapter. Nil when GenAIClient is nil.
}

// Close releases all client connections. Useful for tests and controlled
// shutdowns; long-lived servers normally rely on the root context instead.
func (c *ServiceClients) Close() {
	_ = c.StorageClient.Close()
	_ = c.PubsubClient.Close()
	_ = c.BigQueryClient.Close()
}

// NewCloudServiceClients initializes every Google Cloud client the service
// needs. A missing Gemini API key is not fatal here: the storage and telemetry
// surfaces still work, and the request handler reports a configuration error
// for detection requests until the key is supplied.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, err
	}

	bc, err := bigquery.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, err
	}

	var gc *genai.Client
	if config.Detector.GeminiAPIKey == "" {
		slog.Warn("no Gemini API key configured; detection requests will be rejected")
	} else {
		gc, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  config.Detector.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, err
		}
	}

	// Listeners are created without a command; the workflow is attached once
	// the server wires everything together.
	subscriptions := make(map[string]*PubSubListener)
	for subKey := range config.TopicSubscriptions {
		values := config.TopicSubscriptions[subKey]
		actual, err := NewPubSubListener(pc, values.Name, nil)
		if err != nil {
			return nil, err
		}
		subscriptions[subKey] = actual
	}

	// Wrap each configured agent model with the quota-aware decorator.
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	if gc != nil {
		for amKey := range config.AgentModels {
			values := config.AgentModels[amKey]
			genConfig := &genai.GenerateContentConfig{
				Temperature:       genai.Ptr[float32](values.Temperature),
				TopP:              genai.Ptr[float32](values.TopP),
				TopK:              genai.Ptr[float32](values.TopK),
				MaxOutputTokens:   values.MaxTokens,
				SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}},
				SafetySettings:    DefaultSafetySettings,
				ResponseMIMEType:  values.OutputFormat,
			}
			agentModels[amKey] = NewQuotaAwareModel(genConfig, values.Model, gc.Models, values.RateLimit)
		}
	}

	cloud = &ServiceClients{
		StorageClient:   sc,
		PubsubClient:    pc,
		GenAIClient:     gc,
		BigQueryClient:  bc,
		PubSubListeners: subscriptions,
		AgentModels:     agentModels,
		Blobs:           &BlobStore{Client: sc},
	}
	if gc != nil {
		cloud.Files = &GenAIFileService{Client: gc}
	}
	return cloud, nil
}
