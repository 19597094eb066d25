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

// Package knowledge is the Knowledge Base: a namespaced store of documents
// (policies, case write-ups, rule rationale) chunked for retrieval. Search
// runs over TF-IDF by default; a VectorSearch backend can be attached for
// embedding-based similarity when an Embedder is configured.
package knowledge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/riskforge/agentcore/pkg/chunking"
	"github.com/riskforge/agentcore/pkg/ranking"
)

// Document is one piece of knowledge ingested into a namespace.
type Document struct {
	ID        string
	Namespace string
	Name      string
	Content   string
	Metadata  map[string]string
}

// indexedChunk is a chunk plus the document it came from.
type indexedChunk struct {
	chunking.Chunk
	DocumentID string
	Metadata   map[string]string
}

// Embedder turns text into a vector for VectorSearch backends. The
// Knowledge Base never computes embeddings itself, same as the core LLM
// client never hand-rolls a model: it's supplied by whatever embedding
// provider the deployment wires in.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// Store is the Knowledge Base facade.
type Store struct {
	mu       sync.RWMutex
	chunker  *chunking.Chunker
	ranker   *ranking.Ranker
	docs     map[string]map[string]*Document // namespace -> id -> doc
	chunks   map[string][]indexedChunk       // namespace -> chunks
	vector   VectorSearch
	embedder Embedder
}

// New builds an empty Knowledge Base using chunker for ingestion. A vector
// backend and embedder are optional; without them Search falls back to
// TF-IDF over chunk content.
func New(chunker *chunking.Chunker, vector VectorSearch, embedder Embedder) *Store {
	return &Store{
		chunker:  chunker,
		ranker:   ranking.New(),
		docs:     make(map[string]map[string]*Document),
		chunks:   make(map[string][]indexedChunk),
		vector:   vector,
		embedder: embedder,
	}
}

// Ingest chunks and indexes doc under its namespace, assigning an ID if one
// wasn't set.
func (s *Store) Ingest(ctx context.Context, doc Document) (string, error) {
	if doc.Namespace == "" {
		return "", fmt.Errorf("knowledge: namespace is required")
	}
	if doc.ID == "" {
		doc.ID = "DOC-" + uuid.NewString()
	}

	chunks := s.chunker.Chunk(doc.ID, doc.Name, doc.Content)

	s.mu.Lock()
	if _, ok := s.docs[doc.Namespace]; !ok {
		s.docs[doc.Namespace] = make(map[string]*Document)
	}
	d := doc
	s.docs[doc.Namespace][doc.ID] = &d
	for _, c := range chunks {
		s.chunks[doc.Namespace] = append(s.chunks[doc.Namespace], indexedChunk{Chunk: c, DocumentID: doc.ID, Metadata: doc.Metadata})
	}
	s.mu.Unlock()

	if s.vector != nil && s.embedder != nil {
		for _, c := range chunks {
			vec, err := s.embedder(ctx, c.Content)
			if err != nil {
				return doc.ID, fmt.Errorf("knowledge: embed chunk %d of %s: %w", c.Index, doc.ID, err)
			}
			meta := map[string]any{"content": c.Content, "documentId": doc.ID, "chunkIndex": c.Index}
			chunkID := fmt.Sprintf("%s:chunk:%d", doc.ID, c.Index)
			if err := s.vector.Upsert(ctx, doc.Namespace, chunkID, vec, meta); err != nil {
				return doc.ID, fmt.Errorf("knowledge: upsert chunk %d of %s: %w", c.Index, doc.ID, err)
			}
		}
	}
	return doc.ID, nil
}

// Delete removes a document and its chunks from namespace.
func (s *Store) Delete(ctx context.Context, namespace, documentID string) error {
	s.mu.Lock()
	delete(s.docs[namespace], documentID)
	kept := s.chunks[namespace][:0]
	var removedIdx []int
	for _, c := range s.chunks[namespace] {
		if c.DocumentID == documentID {
			removedIdx = append(removedIdx, c.Index)
			continue
		}
		kept = append(kept, c)
	}
	s.chunks[namespace] = kept
	s.mu.Unlock()

	if s.vector != nil {
		for _, idx := range removedIdx {
			if err := s.vector.Delete(ctx, namespace, fmt.Sprintf("%s:chunk:%d", documentID, idx)); err != nil {
				return fmt.Errorf("knowledge: delete chunk %d of %s: %w", idx, documentID, err)
			}
		}
	}
	return nil
}

// Get returns a document by ID.
func (s *Store) Get(namespace, documentID string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[namespace][documentID]
	if !ok {
		return Document{}, false
	}
	return *d, true
}

// SearchResult is one matched chunk.
type SearchResult struct {
	DocumentID string
	Content    string
	Score      float64
	Metadata   map[string]string
}

// Search finds the topK chunks in namespace most relevant to query. It uses
// the vector backend when one is configured with an embedder, otherwise
// TF-IDF over the namespace's chunks.
func (s *Store) Search(ctx context.Context, namespace, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	if s.vector != nil && s.embedder != nil {
		return s.vectorSearch(ctx, namespace, query, topK)
	}
	return s.textSearch(namespace, query, topK), nil
}

func (s *Store) vectorSearch(ctx context.Context, namespace, query string, topK int) ([]SearchResult, error) {
	vec, err := s.embedder(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w", err)
	}
	results, err := s.vector.Search(ctx, namespace, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("knowledge: vector search: %w", err)
	}
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		documentID, _ := r.Metadata["documentId"].(string)
		content, _ := r.Metadata["content"].(string)
		out = append(out, SearchResult{DocumentID: documentID, Content: content, Score: float64(r.Score)})
	}
	return out, nil
}

func (s *Store) textSearch(namespace, query string, topK int) []SearchResult {
	s.mu.RLock()
	chunks := append([]indexedChunk(nil), s.chunks[namespace]...)
	s.mu.RUnlock()

	byID := make(map[string]indexedChunk, len(chunks))
	candidates := make([]ranking.Candidate, len(chunks))
	for i, c := range chunks {
		id := fmt.Sprintf("%s:%d", c.DocumentID, c.Index)
		candidates[i] = ranking.Candidate{ID: id, Content: c.Content}
		byID[id] = c
	}
	scored := s.ranker.Rank(query, candidates)

	out := make([]SearchResult, 0, topK)
	for i, sc := range scored {
		if i >= topK || sc.Score <= 0 {
			break
		}
		src := byID[sc.ID]
		out = append(out, SearchResult{
			DocumentID: src.DocumentID,
			Content:    sc.Content,
			Score:      sc.Score,
			Metadata:   src.Metadata,
		})
	}
	return out
}

// Count returns the number of documents in namespace.
func (s *Store) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[namespace])
}
