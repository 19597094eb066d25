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

// Package calibration tracks how well an agent's stated confidence matches
// its observed accuracy, bucketed over [0,1), and blends raw confidence
// with the bucket's observed accuracy once enough predictions have landed
// in it.
package calibration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/riskforge/agentcore/pkg/kvstore"
)

// numBuckets divides [0,1) into 5 equal-width confidence buckets.
const numBuckets = 5

// fullWeightPredictions is the prediction count at which a bucket's
// observed accuracy gets full weight in the blend.
const fullWeightPredictions = 20

// calibrationPartition is the kvstore partition key calibrator state is
// written under: calibration is process-wide state, not scoped per record
// the way short/long term memory is.
const calibrationPartition = "GLOBAL"

// bucket accumulates predictions and correct outcomes for one confidence
// range.
type bucket struct {
	Predictions int
	Correct     int
}

func (b bucket) accuracy() float64 {
	if b.Predictions == 0 {
		return 0
	}
	return float64(b.Correct) / float64(b.Predictions)
}

// Calibrator adjusts raw confidence scores using per-agent bucketed
// accuracy history. When built with NewWithStore, every Record call
// persists the updated agent's buckets through the KVStore facade so
// calibration survives restarts; the in-memory-only form built with New
// is for tests and callers that deliberately want it ephemeral.
type Calibrator struct {
	mu      sync.RWMutex
	kv      kvstore.Store
	buckets map[string][numBuckets]bucket // agentID -> buckets
}

// New builds an empty, in-memory-only Calibrator.
func New() *Calibrator {
	return &Calibrator{buckets: make(map[string][numBuckets]bucket)}
}

// NewWithStore builds an empty Calibrator that persists every Record call
// through kv. Call Load to hydrate it from whatever was previously
// persisted.
func NewWithStore(kv kvstore.Store) *Calibrator {
	return &Calibrator{kv: kv, buckets: make(map[string][numBuckets]bucket)}
}

// Load rebuilds every agent's buckets from whatever NewWithStore's kv last
// persisted. A no-op on a Calibrator built with New.
func (c *Calibrator) Load(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}
	blobs, err := c.kv.GetAll(ctx, kvstore.TableCalibration, 0, 0)
	if err != nil {
		return fmt.Errorf("calibration: load: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, blob := range blobs {
		var rec persistedAgent
		if err := json.Unmarshal(blob, &rec); err != nil || rec.AgentID == "" {
			continue
		}
		c.buckets[rec.AgentID] = rec.Buckets
	}
	return nil
}

// persistedAgent is one agent's buckets as written to kv.
type persistedAgent struct {
	AgentID string
	Buckets [numBuckets]bucket
}

// persist writes agentID's current buckets to kv. Must not hold c.mu.
func (c *Calibrator) persist(ctx context.Context, agentID string) error {
	if c.kv == nil {
		return nil
	}
	c.mu.RLock()
	rec := persistedAgent{AgentID: agentID, Buckets: c.buckets[agentID]}
	c.mu.RUnlock()

	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("calibration: marshal: %w", err)
	}
	if _, ok, _ := c.kv.GetByID(ctx, kvstore.TableCalibration, calibrationPartition, agentID); ok {
		return c.kv.Update(ctx, kvstore.TableCalibration, calibrationPartition, agentID, blob)
	}
	return c.kv.Insert(ctx, kvstore.TableCalibration, calibrationPartition, agentID, blob)
}

func bucketIndex(confidence float64) int {
	if confidence < 0 {
		confidence = 0
	}
	if confidence >= 1 {
		confidence = 0.999999
	}
	idx := int(confidence * numBuckets)
	if idx >= numBuckets {
		idx = numBuckets - 1
	}
	return idx
}

// Calibrate blends rawConfidence with the observed accuracy of whichever
// bucket it falls into for agentID, weighted by
// min(predictionCount/20, 1).
func (c *Calibrator) Calibrate(agentID string, rawConfidence float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buckets := c.buckets[agentID]
	b := buckets[bucketIndex(rawConfidence)]
	if b.Predictions == 0 {
		return rawConfidence
	}

	weight := float64(b.Predictions) / fullWeightPredictions
	if weight > 1 {
		weight = 1
	}
	return (1-weight)*rawConfidence + weight*b.accuracy()
}

// Record registers a prediction's outcome in whichever bucket the
// prediction's confidence fell into, then persists the agent's buckets if
// this Calibrator was built with NewWithStore. A persistence failure is
// returned but never loses the in-memory update: the next successful
// Record call still writes the accumulated state.
func (c *Calibrator) Record(ctx context.Context, agentID string, predictedConfidence float64, wasCorrect bool) error {
	c.mu.Lock()
	buckets := c.buckets[agentID]
	idx := bucketIndex(predictedConfidence)
	b := buckets[idx]
	b.Predictions++
	if wasCorrect {
		b.Correct++
	}
	buckets[idx] = b
	c.buckets[agentID] = buckets
	c.mu.Unlock()

	return c.persist(ctx, agentID)
}

// CalibrationError is the mean, over agentID's non-empty buckets, of the
// absolute difference between each bucket's midpoint and its observed
// accuracy. Zero when no bucket has predictions yet.
func (c *Calibrator) CalibrationError(agentID string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buckets := c.buckets[agentID]
	var sum float64
	var nonEmpty int
	for i, b := range buckets {
		if b.Predictions == 0 {
			continue
		}
		midpoint := (float64(i) + 0.5) / numBuckets
		diff := midpoint - b.accuracy()
		if diff < 0 {
			diff = -diff
		}
		sum += diff
		nonEmpty++
	}
	if nonEmpty == 0 {
		return 0
	}
	return sum / float64(nonEmpty)
}

// BucketStats describes one bucket's observed accuracy, for diagnostics.
type BucketStats struct {
	Range       string
	Predictions int
	Accuracy    float64
}

// Stats returns every bucket's accumulated stats for agentID.
func (c *Calibrator) Stats(agentID string) []BucketStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buckets := c.buckets[agentID]
	out := make([]BucketStats, numBuckets)
	for i, b := range buckets {
		lo := float64(i) / numBuckets
		hi := float64(i+1) / numBuckets
		out[i] = BucketStats{
			Range:       fmt.Sprintf("[%.1f,%.1f)", lo, hi),
			Predictions: b.Predictions,
			Accuracy:    b.accuracy(),
		}
	}
	return out
}
