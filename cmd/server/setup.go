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

// Package main contains the setup and initialization logic for the
// application's state. This file builds the centralized state manager
// holding the configuration, the Google Cloud service clients, the
// detection service, and the detection workflow.
package main

import (
	"context"
	"log"
	"os"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/services"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/workflow"
)

// StateManager holds the shared dependencies of the server so handlers and
// listeners do not reach for globals individually.
type StateManager struct {
	config            *cloud.Config
	cloud             *cloud.ServiceClients
	detectionService  *services.DetectionService
	detectionWorkflow *workflow.MomentDetectionWorkflow
}

var state = &StateManager{}

// SetupOS points the configuration loader at the configs directory and the
// "local" runtime overlay. Deployment environments override both variables.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig loads the application configuration once and caches it. The TOML
// files are layered (base plus runtime overlay), then environment variables
// like GEMINI_API_KEY and OUTPUT_BUCKET are applied on top.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
			if err := SetupOS(); err != nil {
				log.Fatalf("failed to setup os environment: %v\n", err)
			}
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		cloud.ApplyEnvOverrides(config)
		state.config = config
	}
	return state.config
}

// InitState creates the service clients, the detection service, and the
// detection workflow, and attaches the workflow to any configured Pub/Sub
// listeners.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}

	// The IAM credentials client backs signed URL generation for frames.
	iamClient, err := credentials.NewIamCredentialsClient(ctx)
	if err != nil {
		panic(err)
	}
	cloudClients.IAMClient = iamClient

	state.cloud = cloudClients

	state.detectionService = &services.DetectionService{
		BigqueryClient: cloudClients.BigQueryClient,
		StorageClient:  cloudClients.StorageClient,
		IAMClient:      cloudClients.IAMClient,
		SignerEmail:    config.Application.SignerServiceAccountEmail,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		DetectionTable: config.BigQueryDataSource.DetectionTable,
	}

	state.detectionWorkflow = workflow.NewMomentDetectionWorkflow(config, cloudClients, state.detectionService)

	SetupListeners(ctx, cloudClients, state.detectionWorkflow)
}
