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

// Package test provides utility functions and mock event payloads to support
// the application's test suite. It loads the test configuration overlay once
// per run and offers one sample payload per supported event shape.
package test

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
)

// StateManager caches the configuration for the duration of a test run.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("Error reading config file: %v", err)
	}
}

// GetTestFlatEventText returns a GCS object-creation notification with the
// bucket and object name as top-level fields, the shape Eventarc delivers.
func GetTestFlatEventText() string {
	return `{
  "kind": "storage#object",
  "id": "kid-videos-inbox/clip-001.mp4/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/kid-videos-inbox/o/clip-001.mp4",
  "name": "clip-001.mp4",
  "bucket": "kid-videos-inbox",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "size": "259348037",
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
	}`
}

// GetTestNestedEventText returns an envelope that carries the object fields
// inside a nested "data" JSON object, with no usable top-level fields.
func GetTestNestedEventText() string {
	return `{
  "subscription": "projects/test-project/subscriptions/kid-videos-sub",
  "data": {
    "name": "clip-002.mp4",
    "bucket": "kid-videos-inbox",
    "contentType": "video/mp4",
    "size": "10443021"
  }
	}`
}

// GetTestPubSubPushEventText returns a Pub/Sub push envelope whose "data"
// field is the base64 encoding of a flat GCS notification.
func GetTestPubSubPushEventText() string {
	inner := `{"name": "clip-003.mp4", "bucket": "kid-videos-inbox", "contentType": "video/mp4"}`
	encoded := base64.StdEncoding.EncodeToString([]byte(inner))
	return fmt.Sprintf(`{
  "subscription": "projects/test-project/subscriptions/kid-videos-sub",
  "message": {"messageId": "1234567890"},
  "data": %q
	}`, encoded)
}

// SetupOS points the configuration loader at the repository's configs
// directory and selects the "test" overlay. The path is derived from this
// source file so tests work regardless of the package they run from.
func SetupOS() (err error) {
	_, thisFile, _, _ := runtime.Caller(0)
	configDir := filepath.Join(filepath.Dir(thisFile), "..", "..", "configs")
	err = os.Setenv(cloud.EnvConfigFilePrefix, configDir)
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		cloud.ApplyEnvOverrides(config)
		state.config = config
	}
	return state.config
}
