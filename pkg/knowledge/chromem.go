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

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemBackend is a VectorSearch backed by chromem-go: embedded, pure-Go,
// no external service, vectors held in process memory. This is the default
// backend for single-process deployments.
type ChromemBackend struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// NewChromemBackend builds a fresh in-memory chromem-go backend.
func NewChromemBackend() *ChromemBackend {
	return &ChromemBackend{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

// identityEmbed is required by chromem-go's collection constructor but
// never called: every vector this backend stores is already computed by
// the caller's Embedder.
func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("knowledge: chromem embedding function invoked; vectors must be precomputed")
}

func (b *ChromemBackend) collection(namespace string) (*chromem.Collection, error) {
	b.mu.RLock()
	if col, ok := b.collections[namespace]; ok {
		b.mu.RUnlock()
		return col, nil
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if col, ok := b.collections[namespace]; ok {
		return col, nil
	}
	col, err := b.db.GetOrCreateCollection(namespace, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("knowledge: get/create collection %q: %w", namespace, err)
	}
	b.collections[namespace] = col
	return col, nil
}

// Upsert implements VectorSearch.
func (b *ChromemBackend) Upsert(ctx context.Context, namespace, id string, vector []float32, metadata map[string]any) error {
	col, err := b.collection(namespace)
	if err != nil {
		return err
	}

	strMetadata := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMetadata[k] = fmt.Sprint(v)
	}
	content, _ := metadata["content"].(string)

	doc := chromem.Document{ID: id, Content: content, Metadata: strMetadata, Embedding: vector}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("knowledge: chromem upsert: %w", err)
	}
	return nil
}

// Search implements VectorSearch.
func (b *ChromemBackend) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorResult, error) {
	col, err := b.collection(namespace)
	if err != nil {
		return nil, err
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge: chromem search: %w", err)
	}

	out := make([]VectorResult, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			meta[k] = v
		}
		meta["content"] = r.Content
		out = append(out, VectorResult{ID: r.ID, Score: r.Similarity, Metadata: meta})
	}
	return out, nil
}

// Delete implements VectorSearch.
func (b *ChromemBackend) Delete(ctx context.Context, namespace, id string) error {
	col, err := b.collection(namespace)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("knowledge: chromem delete: %w", err)
	}
	return nil
}

var _ VectorSearch = (*ChromemBackend)(nil)
