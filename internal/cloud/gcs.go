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

// Package cloud contains data structures and utilities for interacting with
// Google Cloud services. This file models GCS object-creation events and the
// decoder that recovers the bucket and object name from the several envelope
// shapes Eventarc and Pub/Sub push deliveries use.
package cloud

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrMissingBucketOrName is returned when no decoding strategy recovers both
// the bucket and the object name from an event payload.
var ErrMissingBucketOrName = errors.New("missing bucket or name")

// GetStorageObjectName returns the context key under which workflow commands
// store the decoded StorageObject.
func GetStorageObjectName() string {
	return "__STORAGE__OBJ__"
}

// StorageObject is the minimal description of a GCS object extracted from an
// event envelope and passed between workflow commands.
type StorageObject struct {
	Bucket   string // The GCS bucket name.
	Name     string // The object name within the bucket.
	MIMEType string // The declared content type, when the event carries one.
}

// storageEventEnvelope matches the union of the envelope shapes we accept:
// a flat GCS notification, an Eventarc body with a nested "data" object, or a
// Pub/Sub push body whose "data" is a base64-encoded notification.
type storageEventEnvelope struct {
	Bucket      string          `json:"bucket"`
	Name        string          `json:"name"`
	ContentType string          `json:"contentType"`
	Data        json.RawMessage `json:"data"`
}

// storageEventFields is the subset of a GCS notification the decoder cares
// about once an envelope has been unwrapped.
type storageEventFields struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// DecodeStorageEvent extracts the bucket and object name from an event
// payload. Strategies run in a fixed order and each one only fills fields
// still missing, so top-level values always win over nested ones:
//
//  1. top-level "bucket" / "name" fields
//  2. a nested "data" JSON object
//  3. a base64-encoded "data" string (Pub/Sub push format)
//
// A strategy that fails to parse is logged and skipped. If the bucket or name
// is still missing after all strategies, ErrMissingBucketOrName is returned.
func DecodeStorageEvent(payload []byte) (*StorageObject, error) {
	var envelope storageEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		// An unparsable payload has no bucket or name either; callers treat
		// both the same way.
		return nil, fmt.Errorf("%w: invalid event payload: %v", ErrMissingBucketOrName, err)
	}

	out := &StorageObject{
		Bucket:   envelope.Bucket,
		Name:     envelope.Name,
		MIMEType: envelope.ContentType,
	}

	if (out.Bucket == "" || out.Name == "") && len(envelope.Data) > 0 {
		applyNestedData(out, envelope.Data)
	}

	if out.Bucket == "" || out.Name == "" {
		return nil, ErrMissingBucketOrName
	}
	return out, nil
}

// applyNestedData fills missing fields of out from the "data" member, which
// is either an inline JSON object or a base64-encoded JSON string.
func applyNestedData(out *StorageObject, data json.RawMessage) {
	var nested storageEventFields
	if err := json.Unmarshal(data, &nested); err == nil {
		mergeFields(out, &nested)
		return
	}

	// Pub/Sub push wraps the notification as a base64 string.
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		slog.Warn("event data member is neither an object nor a string; skipping")
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		slog.Warn("failed to base64-decode event data member", "error", err)
		return
	}
	if err := json.Unmarshal(decoded, &nested); err != nil {
		slog.Warn("failed to parse decoded event data member", "error", err)
		return
	}
	mergeFields(out, &nested)
}

// mergeFields copies nested values into out for fields out does not yet have.
func mergeFields(out *StorageObject, nested *storageEventFields) {
	if out.Bucket == "" {
		out.Bucket = nested.Bucket
	}
	if out.Name == "" {
		out.Name = nested.Name
	}
	if out.MIMEType == "" {
		out.MIMEType = nested.ContentType
	}
}
