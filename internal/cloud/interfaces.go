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
// services. This file defines the narrow interfaces workflow commands depend
// on, together with the production adapters over the GCS and GenAI clients.
// Tests substitute in-memory fakes for these interfaces.
package cloud

import (
	"context"
	"fmt"
	"io"
	"log"

	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ObjectDownloader streams a GCS object into a writer.
type ObjectDownloader interface {
	Download(ctx context.Context, bucket string, object string, dst io.Writer) (int64, error)
}

// ObjectUploader writes a new GCS object from a reader.
type ObjectUploader interface {
	Upload(ctx context.Context, bucket string, object string, contentType string, src io.Reader) error
}

// BlobService is the full GCS surface the workflow needs: download the source
// video, upload the extracted frame.
type BlobService interface {
	ObjectDownloader
	ObjectUploader
}

// FileService is the subset of the GenAI Files API the detection workflow
// uses: upload a video, poll its processing state, and delete the handle.
type FileService interface {
	Upload(ctx context.Context, src io.Reader, mimeType string) (*genai.File, error)
	Get(ctx context.Context, name string) (*genai.File, error)
	Delete(ctx context.Context, name string) error
}

// BlobStore adapts *storage.Client to the ObjectDownloader and ObjectUploader
// interfaces.
type BlobStore struct {
	Client *storage.Client
}

// Download streams gs://bucket/object into dst and returns the byte count.
func (b *BlobStore) Download(ctx context.Context, bucket string, object string, dst io.Writer) (int64, error) {
	reader, err := b.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create GCS reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer func(reader *storage.Reader) {
		if err := reader.Close(); err != nil {
			log.Printf("failed to close GCS reader: %v\n", err)
		}
	}(reader)
	return io.Copy(dst, reader)
}

// Upload writes src to gs://bucket/object with the given content type.
func (b *BlobStore) Upload(ctx context.Context, bucket string, object string, contentType string, src io.Reader) error {
	wc := b.Client.Bucket(bucket).Object(object).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, src); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, object, err)
	}
	return wc.Close()
}

// GenAIFileService adapts *genai.Client to the FileService interface.
type GenAIFileService struct {
	Client *genai.Client
}

// Upload pushes the reader's content to the GenAI Files API.
func (s *GenAIFileService) Upload(ctx context.Context, src io.Reader, mimeType string) (*genai.File, error) {
	return s.Client.Files.Upload(ctx, src, &genai.UploadFileConfig{MIMEType: mimeType})
}

// Get returns the current state of an uploaded file.
func (s *GenAIFileService) Get(ctx context.Context, name string) (*genai.File, error) {
	return s.Client.Files.Get(ctx, name, nil)
}

// Delete removes an uploaded file handle.
func (s *GenAIFileService) Delete(ctx context.Context, name string) error {
	_, err := s.Client.Files.Delete(ctx, name, nil)
	return err
}
