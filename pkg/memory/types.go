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

// Package memory is the Memory Store: short-term (session, TTL-bound) and
// long-term (importance-weighted, permanent) memory for agents.
package memory

// LongTermType enumerates the kinds of long-term memory entries.
type LongTermType string

const (
	TypePattern    LongTermType = "pattern"
	TypeInsight    LongTermType = "insight"
	TypePreference LongTermType = "preference"
	TypeCorrection LongTermType = "correction"
)

// ShortTermEntry is owned by (agent, session); TTL 24h, FIFO eviction at 50
// entries per session.
type ShortTermEntry struct {
	MemoryID  string
	AgentID   string
	SessionID string
	Entry     map[string]any
	CreatedAt int64
	ExpiresAt int64
}

// LongTermEntry is permanent until explicit delete.
type LongTermEntry struct {
	MemoryID     string
	AgentID      string
	Type         LongTermType
	Content      map[string]any
	Importance   float64
	AccessCount  int
	LastAccessed int64
	CreatedAt    int64
}
