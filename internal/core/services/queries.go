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
// sources. This file centralizes the BigQuery SQL used by the services. The
// queries use fmt.Sprintf verbs as placeholders for values injected at
// runtime.
package services

const (
	// QryFindDetectionById looks up one detection record by its run ID.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the detection table.
	// - `%s`: The run ID to find.
	QryFindDetectionById = "SELECT * FROM `%s` WHERE id = '%s'"

	// QryListRecentDetections returns the newest detection records.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the detection table.
	// - `%d`: The maximum number of rows to return.
	QryListRecentDetections = "SELECT * FROM `%s` ORDER BY created_at DESC LIMIT %d"
)
