// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package knowledge

import "context"

// VectorResult is one similarity match from a VectorSearch backend.
type VectorResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// VectorSearch is the embedding-based search backend a Knowledge Base can
// delegate to. Collections correspond to namespaces.
type VectorSearch interface {
	Upsert(ctx context.Context, namespace, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorResult, error)
	Delete(ctx context.Context, namespace, id string) error
}
