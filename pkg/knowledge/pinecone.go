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

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone backend.
type PineconeConfig struct {
	APIKey    string
	Host      string
	IndexName string
}

// PineconeBackend is a VectorSearch backed by a managed Pinecone index, for
// deployments that would rather not operate a vector database themselves.
// Namespaces map onto Pinecone's own namespace concept within one index.
type PineconeBackend struct {
	client    *pinecone.Client
	indexName string
}

// NewPineconeBackend builds a client against a Pinecone project.
func NewPineconeBackend(cfg PineconeConfig) (*PineconeBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("knowledge: pinecone API key is required")
	}
	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("knowledge: create pinecone client: %w", err)
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "riskforge-knowledge"
	}
	return &PineconeBackend{client: client, indexName: indexName}, nil
}

func (b *PineconeBackend) index(ctx context.Context, namespace string) (*pinecone.IndexConnection, error) {
	idx, err := b.client.DescribeIndex(ctx, b.indexName)
	if err != nil {
		return nil, fmt.Errorf("knowledge: describe pinecone index %s: %w", b.indexName, err)
	}
	conn, err := b.client.Index(pinecone.NewIndexConnParams{Host: idx.Host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("knowledge: connect pinecone index: %w", err)
	}
	return conn, nil
}

// Upsert implements VectorSearch.
func (b *PineconeBackend) Upsert(ctx context.Context, namespace, id string, vector []float32, metadata map[string]any) error {
	conn, err := b.index(ctx, namespace)
	if err != nil {
		return err
	}
	defer conn.Close()

	var meta *pinecone.Metadata
	if len(metadata) > 0 {
		s, err := structpb.NewStruct(metadata)
		if err != nil {
			return fmt.Errorf("knowledge: pinecone metadata: %w", err)
		}
		meta = s
	}

	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vector, Metadata: meta}})
	if err != nil {
		return fmt.Errorf("knowledge: pinecone upsert: %w", err)
	}
	return nil
}

// Search implements VectorSearch.
func (b *PineconeBackend) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorResult, error) {
	conn, err := b.index(ctx, namespace)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: pinecone query: %w", err)
	}

	out := make([]VectorResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		meta := make(map[string]any)
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.AsMap() {
				meta[k] = v
			}
		}
		out = append(out, VectorResult{ID: m.Vector.Id, Score: m.Score, Metadata: meta})
	}
	return out, nil
}

// Delete implements VectorSearch.
func (b *PineconeBackend) Delete(ctx context.Context, namespace, id string) error {
	conn, err := b.index(ctx, namespace)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("knowledge: pinecone delete: %w", err)
	}
	return nil
}

var _ VectorSearch = (*PineconeBackend)(nil)
