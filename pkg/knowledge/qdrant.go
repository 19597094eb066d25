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
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantBackend is a VectorSearch backed by a Qdrant server, for
// deployments that need search to survive a process restart or be shared
// across multiple agent instances.
type QdrantBackend struct {
	client *qdrant.Client
}

// NewQdrantBackend connects to a Qdrant server.
func NewQdrantBackend(cfg QdrantConfig) (*QdrantBackend, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: connect qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantBackend{client: client}, nil
}

func (b *QdrantBackend) ensureCollection(ctx context.Context, namespace string, dims int) error {
	exists, err := b.client.CollectionExists(ctx, namespace)
	if err != nil {
		return fmt.Errorf("knowledge: check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: namespace,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("knowledge: create qdrant collection: %w", err)
	}
	return nil
}

// Upsert implements VectorSearch.
func (b *QdrantBackend) Upsert(ctx context.Context, namespace, id string, vector []float32, metadata map[string]any) error {
	if err := b.ensureCollection(ctx, namespace, len(vector)); err != nil {
		return err
	}

	payload := make(map[string]*qdrant.Value, len(metadata))
	for k, v := range metadata {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return fmt.Errorf("knowledge: qdrant payload value %s: %w", k, err)
		}
		payload[k] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vector...),
		Payload: payload,
	}
	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: namespace,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("knowledge: qdrant upsert: %w", err)
	}
	return nil
}

// Search implements VectorSearch.
func (b *QdrantBackend) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorResult, error) {
	points := b.client.GetPointsClient()
	result, err := points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: namespace,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: qdrant search: %w", err)
	}

	out := make([]VectorResult, 0, len(result.Result))
	for _, p := range result.Result {
		meta := make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			meta[k] = v.GetStringValue()
		}
		out = append(out, VectorResult{ID: p.Id.GetUuid(), Score: p.Score, Metadata: meta})
	}
	return out, nil
}

// Delete implements VectorSearch.
func (b *QdrantBackend) Delete(ctx context.Context, namespace, id string) error {
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: namespace,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{qdrant.NewID(id)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("knowledge: qdrant delete: %w", err)
	}
	return nil
}

var _ VectorSearch = (*QdrantBackend)(nil)
