// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-moment-detect/internal/cloud"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-moment-detect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

// fakeBlobService serves canned video bytes and records download calls.
type fakeBlobService struct {
	downloadErr   error
	downloadCalls int
}

func (f *fakeBlobService) Download(_ context.Context, _ string, _ string, dst io.Writer) (int64, error) {
	f.downloadCalls++
	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	n, err := dst.Write([]byte("fake video bytes"))
	return int64(n), err
}

func (f *fakeBlobService) Upload(context.Context, string, string, string, io.Reader) error {
	return nil
}

// newWebhookRouter swaps the package state for one built on fakes and returns
// a router exposing the webhook endpoint.
func newWebhookRouter(t *testing.T, genAIClient *genai.Client, blobs cloud.BlobService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config := test.GetConfig()
	clients := &cloud.ServiceClients{GenAIClient: genAIClient, Blobs: blobs}
	state = &StateManager{
		config:            config,
		cloud:             clients,
		detectionWorkflow: workflow.NewMomentDetectionWorkflow(config, clients, nil),
	}

	r := gin.New()
	r.POST("/", WebhookHandler)
	return r
}

func postEvent(r *gin.Engine, payload string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsPayloadWithoutBucketOrName(t *testing.T) {
	r := newWebhookRouter(t, &genai.Client{}, &fakeBlobService{})

	w := postEvent(r, `{"kind": "storage#object"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "missing bucket or name", body["message"])
}

func TestWebhookWithoutAPIKeyIsConfigurationError(t *testing.T) {
	blobs := &fakeBlobService{}
	r := newWebhookRouter(t, nil, blobs)

	w := postEvent(r, test.GetTestFlatEventText())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "GEMINI_API_KEY is not set")
	// The request is rejected before any download is attempted.
	assert.Equal(t, 0, blobs.downloadCalls)
}

func TestWebhookDownloadFailureIsServerError(t *testing.T) {
	r := newWebhookRouter(t, &genai.Client{}, &fakeBlobService{downloadErr: errors.New("object not found")})

	w := postEvent(r, test.GetTestFlatEventText())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to process video")
}

// A run that completes without hard errors always maps to a 200 detection
// body. With no Files API adapter wired the detector degrades, so the body is
// the negative shape.
func TestWebhookCompletedRunMapsToDetectionBody(t *testing.T) {
	r := newWebhookRouter(t, &genai.Client{}, &fakeBlobService{})

	w := postEvent(r, test.GetTestFlatEventText())

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["kid_detected"])
	assert.Equal(t, model.NotDetectedMessage, body["message"])
}
