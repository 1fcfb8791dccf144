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

// Package model defines the transient data structures that flow through the
// detection workflow, the BigQuery row persisted per run, and the JSON
// response bodies returned by the webhook.
package model

import (
	"time"

	"github.com/google/uuid"
)

// NotDetectedMessage is the message returned whenever the requested moment
// could not be found, including every internal detector failure that the
// workflow softens into a negative result.
const NotDetectedMessage = "No kid saying '67' found in video"

// GetDetectionOutcomeName returns the context key under which the workflow
// stores the shared DetectionOutcome for a run.
func GetDetectionOutcomeName() string {
	return "__DETECTION__OUTCOME__"
}

// MomentResult is the structure the model is asked to return: the timestamp,
// in seconds, of the first matching moment.
type MomentResult struct {
	Second float64 `json:"second"`
}

// DetectionOutcome accumulates the result of one detection run as the
// workflow commands execute. Commands only ever widen it; a detector failure
// flips Detected back to false and records the reason.
type DetectionOutcome struct {
	ID            string    // Unique run identifier, used in logs and the BigQuery record.
	Bucket        string    // Source bucket of the analyzed video.
	Object        string    // Source object name of the analyzed video.
	Detected      bool      // Whether the moment was found.
	Second        float64   // Timestamp of the moment, valid when Detected.
	FrameSaved    bool      // Whether the extracted frame was uploaded.
	FrameName     string    // Object name of the uploaded frame.
	FrameURL      string    // Signed URL for the frame, when a signer is configured.
	ModelName     string    // The generative model that produced the result.
	FailureReason string    // Why the detector gave up, for logs and the detection record.
	StartTime     time.Time // When the run began.
}

// NewDetectionOutcome creates an outcome for a new run with a fresh ID.
func NewDetectionOutcome() *DetectionOutcome {
	return &DetectionOutcome{
		ID:        uuid.NewString(),
		StartTime: time.Now().UTC(),
	}
}

// DetectionRecord is one row in the BigQuery detection log.
type DetectionRecord struct {
	ID            string    `bigquery:"id"`
	Bucket        string    `bigquery:"bucket"`
	Object        string    `bigquery:"object"`
	Detected      bool      `bigquery:"detected"`
	Second        float64   `bigquery:"second"`
	FrameObject   string    `bigquery:"frame_object"`
	ModelName     string    `bigquery:"model_name"`
	FailureReason string    `bigquery:"failure_reason"`
	CreatedAt     time.Time `bigquery:"created_at"`
}

// NewDetectionRecord converts a finished outcome into its BigQuery row.
func NewDetectionRecord(o *DetectionOutcome) *DetectionRecord {
	return &DetectionRecord{
		ID:            o.ID,
		Bucket:        o.Bucket,
		Object:        o.Object,
		Detected:      o.Detected,
		Second:        o.Second,
		FrameObject:   o.FrameName,
		ModelName:     o.ModelName,
		FailureReason: o.FailureReason,
		CreatedAt:     time.Now().UTC(),
	}
}

// DetectionResponse is the webhook's success-path JSON body. Optional fields
// are pointers so the negative result omits them entirely.
type DetectionResponse struct {
	Status           string   `json:"status"`
	KidDetected      bool     `json:"kid_detected"`
	TimestampSeconds *float64 `json:"timestamp_seconds,omitempty"`
	FrameSaved       *bool    `json:"frame_saved,omitempty"`
	FrameName        string   `json:"frame_name,omitempty"`
	FrameURL         string   `json:"frame_url,omitempty"`
	Message          string   `json:"message,omitempty"`
}

// ErrorResponse is the webhook's JSON body for 400 and 500 results.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewDetectionResponse maps a finished outcome onto the response contract:
// a positive result carries the timestamp and frame details, a negative one
// carries only the not-detected message.
func NewDetectionResponse(o *DetectionOutcome) *DetectionResponse {
	if !o.Detected {
		return &DetectionResponse{
			Status:      "ok",
			KidDetected: false,
			Message:     NotDetectedMessage,
		}
	}
	second := o.Second
	frameSaved := o.FrameSaved
	return &DetectionResponse{
		Status:           "ok",
		KidDetected:      true,
		TimestampSeconds: &second,
		FrameSaved:       &frameSaved,
		FrameName:        o.FrameName,
		FrameURL:         o.FrameURL,
	}
}
