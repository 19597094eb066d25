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

// Package chunking splits knowledge-base documents into sentence-aware,
// overlapping chunks sized for embedding and retrieval.
package chunking

import (
	"fmt"
	"regexp"
	"strings"
)

// Config controls chunk size and overlap, both measured in characters.
type Config struct {
	Size    int
	Overlap int
}

// DefaultConfig targets chunks that comfortably fit a single retrieval
// section of the context budget.
func DefaultConfig() Config {
	return Config{Size: 800, Overlap: 150}
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunking: size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunking: overlap cannot be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunking: overlap (%d) must be less than size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// Chunk is one piece of a document, with enough position information to
// reassemble or cite it.
type Chunk struct {
	Content    string
	Index      int
	Total      int
	StartRune  int
	EndRune    int
	SourceID   string
	SourceName string
}

// sentenceBoundary matches the end of a sentence: terminal punctuation
// followed by whitespace. It deliberately doesn't try to be a full NLP
// sentence splitter.
var sentenceBoundary = regexp.MustCompile(`[.!?]["')\]]?\s+`)

// Chunker splits a document's body into overlapping, sentence-aligned
// chunks.
type Chunker struct {
	config Config
}

// New builds a Chunker. It panics on an invalid config since chunking
// parameters come from static configuration, not request input.
func New(config Config) *Chunker {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return &Chunker{config: config}
}

// Chunk splits content into chunks no sentence is split across, each
// overlapping the previous by approximately config.Overlap characters of
// trailing sentences.
func (c *Chunker) Chunk(sourceID, sourceName, content string) []Chunk {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return nil
	}
	if len(sentences) == 1 {
		return c.chunkByCharacters(sourceID, sourceName, sentences[0])
	}

	var chunks []Chunk
	var current []string
	currentLen := 0
	runeOffset := 0
	chunkStartRune := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		text := strings.Join(current, "")
		chunks = append(chunks, Chunk{
			Content:    strings.TrimSpace(text),
			Index:      len(chunks),
			StartRune:  chunkStartRune,
			EndRune:    runeOffset,
			SourceID:   sourceID,
			SourceName: sourceName,
		})
	}

	for _, sentence := range sentences {
		sentLen := len([]rune(sentence))
		if currentLen > 0 && currentLen+sentLen > c.config.Size {
			flush()
			current, currentLen, chunkStartRune = overlapTail(current, c.config.Overlap, runeOffset)
		}
		current = append(current, sentence)
		currentLen += sentLen
		runeOffset += sentLen
	}
	flush()

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// overlapTail keeps trailing sentences from the just-flushed chunk totaling
// approximately overlap characters, to seed the next chunk, and reports the
// rune offset at which those retained sentences begin.
func overlapTail(sentences []string, overlap, endOffset int) ([]string, int, int) {
	if overlap <= 0 {
		return nil, 0, endOffset
	}
	var kept []string
	size := 0
	startOffset := endOffset
	for i := len(sentences) - 1; i >= 0 && size < overlap; i-- {
		s := sentences[i]
		kept = append([]string{s}, kept...)
		size += len([]rune(s))
		startOffset -= len([]rune(s))
	}
	return kept, size, startOffset
}

// chunkByCharacters handles content with no sentence boundaries to align
// on: it splits at the nearest space before config.Size, and folds a small
// trailing remainder (under 30% of the target) into the previous chunk as
// long as the merged chunk stays within twice the target.
func (c *Chunker) chunkByCharacters(sourceID, sourceName, content string) []Chunk {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}

	type span struct{ start, end int }
	var pieces []span
	start := 0
	for start < len(runes) {
		end := start + c.config.Size
		if end >= len(runes) {
			pieces = append(pieces, span{start, len(runes)})
			break
		}
		cut := end
		for cut > start && runes[cut] != ' ' {
			cut--
		}
		if cut == start {
			cut = end
		}
		pieces = append(pieces, span{start, cut})
		start = cut
	}

	if n := len(pieces); n > 1 {
		last, prev := pieces[n-1], pieces[n-2]
		remainder := last.end - last.start
		if remainder < c.config.Size*3/10 && last.end-prev.start <= 2*c.config.Size {
			pieces[n-2] = span{prev.start, last.end}
			pieces = pieces[:n-1]
		}
	}

	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{
			Content:    strings.TrimSpace(string(runes[p.start:p.end])),
			Index:      i,
			Total:      len(pieces),
			StartRune:  p.start,
			EndRune:    p.end,
			SourceID:   sourceID,
			SourceName: sourceName,
		}
	}
	return chunks
}

func splitSentences(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	locs := sentenceBoundary.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return []string{content}
	}

	var out []string
	start := 0
	for _, loc := range locs {
		out = append(out, content[start:loc[1]])
		start = loc[1]
	}
	if start < len(content) {
		out = append(out, content[start:])
	}
	return out
}
