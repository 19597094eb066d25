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

// Package kvstore defines the KVStore facade the core consumes: named
// tables of {id -> blob}. The facade itself is an external collaborator
// (the seller/transaction/rule CRUD services own the schema); this package
// only carries the contract plus two reference adapters the core can run
// its own tests against: an in-memory store and a database/sql-backed
// store for the seven tables the core is allowed to write.
package kvstore

import "context"

// Tables the core writes through the facade. cases, rules, transactions,
// and sellers are read-only from the core's perspective; it owns no schema
// there.
const (
	TableShortTermMemory = "agent_short_term_memory"
	TableLongTermMemory  = "agent_long_term_memory"
	TableMetrics         = "agent_metrics"
	TableCosts           = "agent_costs"
	TableDecisions       = "agent_decisions"
	TableCalibration     = "agent_calibration"
	TableFeedback        = "agent_feedback"
)

// Store is the KVStore facade contract.
type Store interface {
	Insert(ctx context.Context, table, pk, id string, blob []byte) error
	Update(ctx context.Context, table, pk, id string, blob []byte) error
	GetByID(ctx context.Context, table, pk, id string) ([]byte, bool, error)
	GetAll(ctx context.Context, table string, limit, offset int) ([][]byte, error)
	Delete(ctx context.Context, table, pk, id string) error
	Count(ctx context.Context, table string) (int, error)
}
