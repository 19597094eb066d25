package llm

import (
	"context"
	"sync"
)

// FakeProvider is a scripted Provider for tests: each call to Complete pops
// the next queued response/error pair.
type FakeProvider struct {
	mu        sync.Mutex
	Responses []Response
	Errors    []error
	Calls     int
}

// Complete implements Provider.
func (f *FakeProvider) Complete(_ context.Context, _, _ string, _ Options) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.Calls
	f.Calls++

	var err error
	if idx < len(f.Errors) {
		err = f.Errors[idx]
	}
	var resp Response
	if idx < len(f.Responses) {
		resp = f.Responses[idx]
	}
	return resp, err
}
