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

// Package services contains the business logic for interacting with data
// sources. This file defines the DetectionService, which reads the BigQuery
// detection log and signs time-limited URLs for frames stored in GCS.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
	"google.golang.org/api/iterator"
)

// DetectionService is the data access layer over the detection log table and
// the frame output bucket.
type DetectionService struct {
	BigqueryClient *bigquery.Client
	StorageClient  *storage.Client
	IAMClient      *credentials.IamCredentialsClient
	SignerEmail    string
	DatasetName    string
	DetectionTable string
}

// GetFQN returns the queryable name of the detection table, with the
// project:dataset colon replaced by a period for standard SQL.
func (s *DetectionService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.DetectionTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// Get retrieves a single detection record by its run ID.
func (s *DetectionService) Get(ctx context.Context, id string) (*model.DetectionRecord, error) {
	queryText := fmt.Sprintf(QryFindDetectionById, s.GetFQN(), id)
	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	record := &model.DetectionRecord{}
	if err := itr.Next(record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecent returns the newest detection records, capped at limit.
func (s *DetectionService) ListRecent(ctx context.Context, limit int) ([]*model.DetectionRecord, error) {
	queryText := fmt.Sprintf(QryListRecentDetections, s.GetFQN(), limit)
	q := s.BigqueryClient.Query(queryText)
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*model.DetectionRecord, 0, limit)
	for {
		record := &model.DetectionRecord{}
		err := itr.Next(record)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// SignFrameURL creates a time-limited V4 signed URL for a frame object so a
// browser can fetch it without GCP credentials.
func (s *DetectionService) SignFrameURL(_ context.Context, bucket string, object string, expires time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	u, err := s.StorageClient.Bucket(bucket).SignedURL(object, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).Object(%q).SignedURL: %w", bucket, object, err)
	}
	return u, nil
}
