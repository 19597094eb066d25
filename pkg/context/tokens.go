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

package context

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoding is the encoding used to count and truncate prompt sections.
// cl100k_base covers the GPT-3.5/4 family and is a reasonable stand-in
// regardless of which model an agent's LLM Client actually targets, since
// the budget only needs to be in the right ballpark.
const tokenEncoding = "cl100k_base"

var (
	tkOnce sync.Once
	tk     *tiktoken.Tiktoken
)

// encoder lazily loads the tiktoken encoding once per process. It returns
// nil if loading failed (e.g. no network access to fetch the BPE ranks),
// in which case callers fall back to the chars-per-token heuristic.
func encoder() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err == nil {
			tk = enc
		}
	})
	return tk
}

func estimateTokens(s string) int {
	if enc := encoder(); enc != nil {
		return len(enc.Encode(s, nil, nil))
	}
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// truncateToTokens trims s to at most maxTokens tokens, cutting on exact
// token boundaries when the encoder is available rather than approximating
// by character count.
func truncateToTokens(s string, maxTokens int) string {
	if enc := encoder(); enc != nil {
		ids := enc.Encode(s, nil, nil)
		if len(ids) <= maxTokens {
			return s
		}
		return enc.Decode(ids[:maxTokens])
	}
	maxChars := maxTokens * charsPerToken
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}
