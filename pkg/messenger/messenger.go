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

// Package messenger is in-process inter-agent messaging: registered
// inboxes, synchronous delivery, broadcast, and help-request/response
// correlation with a timeout.
package messenger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType names the kind of message carried.
type MessageType string

const (
	HelpRequest      MessageType = "HelpRequest"
	HelpResponse     MessageType = "HelpResponse"
	TaskDelegation   MessageType = "TaskDelegation"
	InformationShare MessageType = "InformationShare"
	Broadcast        MessageType = "Broadcast"
)

// DefaultHelpTimeout is how long RequestHelp waits for a matching
// HelpResponse before giving up.
const DefaultHelpTimeout = 30 * time.Second

// Message is one unit of inter-agent traffic.
type Message struct {
	MessageID     string
	From          string
	To            string // empty for broadcast
	Type          MessageType
	Content       any
	CorrelationID string
	Priority      int
	CreatedAt     time.Time
}

// Inbox receives messages addressed to one agent.
type Inbox interface {
	Deliver(msg Message)
}

// InboxFunc adapts a plain function to Inbox.
type InboxFunc func(msg Message)

func (f InboxFunc) Deliver(msg Message) { f(msg) }

type pendingHelp struct {
	ch chan Message
}

// Messenger routes messages between registered agent inboxes.
type Messenger struct {
	mu      sync.RWMutex
	inboxes map[string]Inbox
	pending map[string]*pendingHelp // correlationID -> waiter
}

// New builds an empty Messenger.
func New() *Messenger {
	return &Messenger{
		inboxes: make(map[string]Inbox),
		pending: make(map[string]*pendingHelp),
	}
}

// Register associates agentID with inbox, replacing any prior registration.
func (m *Messenger) Register(agentID string, inbox Inbox) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inboxes[agentID] = inbox
}

// Unregister removes agentID's inbox.
func (m *Messenger) Unregister(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inboxes, agentID)
}

// Send delivers msg synchronously to its recipient's inbox. If msg is a
// HelpResponse and its correlationID matches an outstanding RequestHelp
// call, that call's waiter is resolved instead of the normal inbox.
func (m *Messenger) Send(msg Message) error {
	if msg.Type == HelpResponse && msg.CorrelationID != "" {
		m.mu.RLock()
		waiter, ok := m.pending[msg.CorrelationID]
		m.mu.RUnlock()
		if ok {
			select {
			case waiter.ch <- msg:
			default:
			}
			return nil
		}
	}

	m.mu.RLock()
	inbox, ok := m.inboxes[msg.To]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("messenger: no inbox registered for %q", msg.To)
	}
	inbox.Deliver(msg)
	return nil
}

// Broadcast sends content to every registered inbox except from.
func (m *Messenger) Broadcast(from string, content any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for agentID, inbox := range m.inboxes {
		if agentID == from {
			continue
		}
		inbox.Deliver(Message{
			MessageID: uuid.NewString(),
			From:      from,
			To:        agentID,
			Type:      Broadcast,
			Content:   content,
			CreatedAt: time.Now(),
		})
	}
}

// RequestHelp sends a HelpRequest from "from" to "to" and blocks until a
// HelpResponse carrying the same correlationID arrives, ctx is cancelled,
// or timeout elapses (DefaultHelpTimeout if timeout <= 0).
func (m *Messenger) RequestHelp(ctx context.Context, from, to string, content any, timeout time.Duration) (Message, error) {
	if timeout <= 0 {
		timeout = DefaultHelpTimeout
	}
	correlationID := uuid.NewString()
	waiter := &pendingHelp{ch: make(chan Message, 1)}

	m.mu.Lock()
	m.pending[correlationID] = waiter
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, correlationID)
		m.mu.Unlock()
	}()

	if err := m.Send(Message{
		MessageID:     uuid.NewString(),
		From:          from,
		To:            to,
		Type:          HelpRequest,
		Content:       content,
		CorrelationID: correlationID,
		CreatedAt:     time.Now(),
	}); err != nil {
		return Message{}, err
	}

	select {
	case resp := <-waiter.ch:
		return resp, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-time.After(timeout):
		return Message{}, fmt.Errorf("messenger: help request to %q timed out after %s", to, timeout)
	}
}
