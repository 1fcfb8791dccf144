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

// Package model_test contains unit tests for the detection data models and
// the mapping from a workflow outcome to the webhook's response body.
package model_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/zeebo/assert"
)

func TestNewDetectionOutcome(t *testing.T) {
	outcome := model.NewDetectionOutcome()

	assert.True(t, outcome.ID != "")
	assert.False(t, outcome.Detected)
	assert.True(t, time.Since(outcome.StartTime) < time.Second)

	// IDs are unique per run.
	other := model.NewDetectionOutcome()
	assert.True(t, outcome.ID != other.ID)
}

func TestNewDetectionRecord(t *testing.T) {
	outcome := model.NewDetectionOutcome()
	outcome.Bucket = "kid-videos"
	outcome.Object = "clip.mp4"
	outcome.Detected = true
	outcome.Second = 12.5
	outcome.FrameName = "clip-kid-67-frame-12.5s.png"
	outcome.ModelName = "gemini-2.0-flash"

	record := model.NewDetectionRecord(outcome)

	assert.Equal(t, outcome.ID, record.ID)
	assert.Equal(t, "kid-videos", record.Bucket)
	assert.Equal(t, "clip.mp4", record.Object)
	assert.True(t, record.Detected)
	assert.Equal(t, 12.5, record.Second)
	assert.Equal(t, "clip-kid-67-frame-12.5s.png", record.FrameObject)
	assert.Equal(t, "gemini-2.0-flash", record.ModelName)
	assert.True(t, time.Since(record.CreatedAt) < time.Second)
}

func TestNewDetectionResponsePositive(t *testing.T) {
	outcome := model.NewDetectionOutcome()
	outcome.Detected = true
	outcome.Second = 12.5
	outcome.FrameSaved = true
	outcome.FrameName = "clip-kid-67-frame-12.5s.png"

	resp := model.NewDetectionResponse(outcome)

	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.KidDetected)
	assert.NotNil(t, resp.TimestampSeconds)
	assert.Equal(t, 12.5, *resp.TimestampSeconds)
	assert.NotNil(t, resp.FrameSaved)
	assert.True(t, *resp.FrameSaved)
	assert.Equal(t, "", resp.Message)
}

func TestNewDetectionResponseNegative(t *testing.T) {
	outcome := model.NewDetectionOutcome()
	outcome.FailureReason = "remote processing timeout"

	resp := model.NewDetectionResponse(outcome)

	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.KidDetected)
	assert.Nil(t, resp.TimestampSeconds)
	assert.Nil(t, resp.FrameSaved)
	assert.Equal(t, model.NotDetectedMessage, resp.Message)
}

// The negative body must not leak empty optional fields.
func TestNegativeResponseJSONShape(t *testing.T) {
	outcome := model.NewDetectionOutcome()
	body, err := json.Marshal(model.NewDetectionResponse(outcome))
	assert.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `"kid_detected":false`))
	assert.True(t, strings.Contains(text, model.NotDetectedMessage))
	assert.False(t, strings.Contains(text, "timestamp_seconds"))
	assert.False(t, strings.Contains(text, "frame_saved"))
	assert.False(t, strings.Contains(text, "frame_name"))
	assert.False(t, strings.Contains(text, "frame_url"))
}

func TestPositiveResponseJSONShape(t *testing.T) {
	outcome := model.NewDetectionOutcome()
	outcome.Detected = true
	outcome.Second = 3.0
	body, err := json.Marshal(model.NewDetectionResponse(outcome))
	assert.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `"kid_detected":true`))
	assert.True(t, strings.Contains(text, `"timestamp_seconds":3`))
	// frame_saved is present and false when no output bucket is configured.
	assert.True(t, strings.Contains(text, `"frame_saved":false`))
	assert.False(t, strings.Contains(text, "message"))
}
