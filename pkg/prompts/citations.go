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

package prompts

import (
	"regexp"
	"strconv"
	"strings"
)

// Citation is one inline citation marker parsed out of model output,
// pointing at the tool result that supports the preceding claim.
type Citation struct {
	ToolName string
	Index    int
}

// citationMarker matches the [cite:<tool>:<index>] markers the citation
// enrichment prompt asks the model to emit inline.
var citationMarker = regexp.MustCompile(`\[cite:([A-Za-z0-9_.-]+):(\d+)\]`)

// ParseCitations extracts every citation marker from text, in order of
// appearance. An empty input yields an empty slice, never nil-panics.
func ParseCitations(text string) []Citation {
	out := []Citation{}
	for _, m := range citationMarker.FindAllStringSubmatch(text, -1) {
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, Citation{ToolName: m[1], Index: idx})
	}
	return out
}

// StripCitations removes every citation marker from text, collapsing the
// doubled spaces removal leaves behind. An empty input yields "".
func StripCitations(text string) string {
	if text == "" {
		return ""
	}
	stripped := citationMarker.ReplaceAllString(text, "")
	stripped = strings.Join(strings.Fields(stripped), " ")
	return stripped
}
