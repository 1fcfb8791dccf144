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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that appends the run's outcome to the BigQuery detection log.
// Persistence is best effort: a failed insert is logged, never surfaced to
// the caller.
package commands

import (
	"log/slog"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/cor"
	"github.com/jaycherian/gcp-go-moment-detect/internal/core/model"
)

// DetectionPersist streams one DetectionRecord per run into BigQuery.
type DetectionPersist struct {
	cor.BaseCommand
	client  *bigquery.Client
	dataset string
	table   string
}

// NewDetectionPersist is the constructor for the DetectionPersist command.
func NewDetectionPersist(name string, client *bigquery.Client, dataset string, table string) *DetectionPersist {
	return &DetectionPersist{
		BaseCommand: *cor.NewBaseCommand(name),
		client:      client,
		dataset:     dataset,
		table:       table,
	}
}

// IsExecutable requires a configured BigQuery target and an outcome to log.
func (s *DetectionPersist) IsExecutable(context cor.Context) bool {
	return s.client != nil && s.dataset != "" && s.table != "" &&
		getOutcome(context) != nil
}

// Execute streams the record. The inserter marshals the struct through its
// bigquery tags.
func (s *DetectionPersist) Execute(context cor.Context) {
	outcome := getOutcome(context)
	record := model.NewDetectionRecord(outcome)

	i := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := i.Put(context.GetContext(), record); err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		slog.Warn("failed to write detection record",
			"id", record.ID,
			"dataset", s.dataset,
			"table", s.table,
			"error", err)
		return
	}

	s.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("persisted detection record", "id", record.ID, "detected", record.Detected)
	context.Add(s.GetOutputParam(), record)
}
