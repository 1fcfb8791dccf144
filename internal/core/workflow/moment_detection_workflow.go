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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the moment detection workflow: from a storage event to a detection outcome.
package workflow

import (
	"text/template"
	"time"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/commands"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/services"
)

// MomentDetectionWorkflow orchestrates one detection run. It is structured as
// a Chain of Responsibility (cor.Chain): decode the event, download the
// video, upload it for analysis, locate the moment, extract and publish the
// frame, log the run, and clean up.
//
// The chain stops only on the two hard errors of the contract, a bad event
// payload and a failed download. Everything after the download degrades to a
// "not detected" outcome, so the tail of the chain always runs.
type MomentDetectionWorkflow struct {
	cor.BaseCommand
	config         *cloud.Config
	serviceClients *cloud.ServiceClients
	detections     *services.DetectionService
	momentTemplate *template.Template
	chain          cor.Chain
}

// Execute seeds the context with a fresh outcome and runs the chain. The
// outcome is always present afterwards, whatever the chain did.
func (m *MomentDetectionWorkflow) Execute(context cor.Context) {
	if context.Get(model.GetDetectionOutcomeName()) == nil {
		context.Add(model.GetDetectionOutcomeName(), model.NewDetectionOutcome())
	}
	m.chain.Execute(context)
}

// initializeChain builds the command sequence for this workflow.
func (m *MomentDetectionWorkflow) initializeChain() {
	detector := m.config.Detector
	pollInterval := time.Duration(detector.PollIntervalSeconds) * time.Second
	pollTimeout := time.Duration(detector.PollTimeoutSeconds) * time.Second

	// Interface fields must stay nil when the concrete clients are absent so
	// the commands' IsExecutable checks can skip them.
	var files cloud.FileService
	if m.serviceClients.Files != nil {
		files = m.serviceClients.Files
	}
	var generator cloud.ContentGenerator
	modelName := ""
	if am := m.serviceClients.AgentModels[detector.AgentModel]; am != nil {
		generator = am
		modelName = am.ModelName
	}

	out := cor.NewBaseChain(m.GetName())

	// Step 1: Decode the raw event payload into a StorageObject. An
	// undecodable payload is a hard error mapped to a 400 by the server.
	out.AddCommand(commands.NewEventToStorageObject("event-to-storage-object"))

	// Step 2: Download the video to a local temp file. A failed download is
	// a hard error mapped to a 500.
	out.AddCommand(commands.NewGCSToTempFile("gcs-to-temp-file", m.serviceClients.Blobs, "moment-detect-"))

	// Step 3: Push the video to the Files API and wait for processing.
	out.AddCommand(commands.NewVideoFileUpload("video-file-upload", files, pollInterval, pollTimeout))

	// Step 4: Ask the model for the timestamp of the moment.
	out.AddCommand(commands.NewMomentLocator("moment-locator", generator, modelName, m.momentTemplate))

	// Step 5: Extract the frame at int(second * fps) with ffmpeg.
	out.AddCommand(commands.NewFrameExtract("frame-extract", detector.FFmpegPath, detector.FFprobePath))

	// Step 6: Upload the frame to the output bucket, when one is configured.
	out.AddCommand(commands.NewFramePublish("frame-publish",
		m.serviceClients.Blobs, m.config.Storage.OutputBucket, m.detections))

	// Step 7: Append the run to the BigQuery detection log.
	out.AddCommand(commands.NewDetectionPersist("detection-persist",
		m.serviceClients.BigQueryClient,
		m.config.BigQueryDataSource.DatasetName,
		m.config.BigQueryDataSource.DetectionTable))

	// Step 8: Delete the uploaded video from the Files API.
	out.AddCommand(commands.NewVideoFileCleanup("video-file-cleanup", files))

	m.chain = out
}

// NewMomentDetectionWorkflow is the constructor for the workflow. It compiles
// the prompt template and builds the command chain. The detection service may
// be nil when no signer is configured.
func NewMomentDetectionWorkflow(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	detections *services.DetectionService) *MomentDetectionWorkflow {

	momentTemplate, err := template.New("moment-template").Parse(config.PromptTemplates.MomentPrompt)
	if err != nil {
		panic(err)
	}

	pipeline := &MomentDetectionWorkflow{
		BaseCommand:    *cor.NewBaseCommand("moment-detection-pipeline"),
		config:         config,
		serviceClients: serviceClients,
		detections:     detections,
		momentTemplate: momentTemplate,
	}
	pipeline.initializeChain()
	return pipeline
}
