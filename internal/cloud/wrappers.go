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
// services. This file decorates the GenAI model handle with rate limiting and
// bounded retries so a burst of webhook deliveries cannot blow through the
// model quota.
package cloud

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// quotaRetryKey is the context key carrying the retry count across recursive
// GenerateContent attempts.
type quotaRetryKey struct{}

// QuotaAwareGenerativeAIModel wraps a model name, its generation config, and
// the shared *genai.Models handle behind a token-bucket rate limiter. It
// satisfies the ContentGenerator interface.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // Generation parameters applied to every request.
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               rate.Limiter
}

// NewQuotaAwareModel wraps the given generation config and model handle with a
// limiter allowing requestsPerSecond calls, with an equal burst.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		RateLimit:               *rate.NewLimiter(rate.Every(time.Second/1), requestsPerSecond),
	}
}

// GenerateContent sends the request through the rate limiter. Calls denied by
// the limiter are re-queued after a short pause; failed calls are retried up
// to MaxRetries times with a backoff between attempts.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (resp *genai.GenerateContentResponse, err error) {
	if !q.RateLimit.Allow() {
		time.Sleep(time.Second * 5)
		return q.GenerateContent(ctx, content)
	}

	resp, err = q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
	if err == nil {
		return resp, nil
	}

	retryCount, ok := ctx.Value(quotaRetryKey{}).(int)
	if !ok {
		retryCount = 0
	}
	if retryCount >= MaxRetries {
		return nil, errors.New("failed generation on max retries")
	}
	errCtx := context.WithValue(ctx, quotaRetryKey{}, retryCount+1)
	time.Sleep(time.Second * 10)
	return q.GenerateContent(errCtx, content)
}
