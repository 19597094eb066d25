package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var (
	jsonFenceRe  = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	plainFenceRe = regexp.MustCompile("(?s)```\\s*(.*?)```")
	objectRe     = regexp.MustCompile(`(?s)\{.*\}`)
	arrayRe      = regexp.MustCompile(`(?s)\[.*\]`)
)

// ExtractJSON applies the parser cascade: plain JSON, first
// ```json fence, first ``` fence, first {...} object, first [...] array,
// in that order. Returns the raw JSON text and true on the first candidate
// that parses, or ("", false) if nothing does.
func ExtractJSON(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	candidates := []string{trimmed}

	if m := jsonFenceRe.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := plainFenceRe.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := objectRe.FindString(content); m != "" {
		candidates = append(candidates, m)
	}
	if m := arrayRe.FindString(content); m != "" {
		candidates = append(candidates, m)
	}

	for _, cand := range candidates {
		if cand == "" {
			continue
		}
		var probe any
		if err := json.Unmarshal([]byte(cand), &probe); err == nil {
			return cand, true
		}
	}
	return "", false
}

// CompleteWithJSONRetry calls Complete with opts, parses the response via
// the cascade above into target (a pointer to a schema struct), and on parse
// failure issues exactly one repair call before falling back to fallback.
// schema is rendered pretty-printed into the repair prompt so the model sees
// the shape it's expected to produce. Both calls carry opts' model,
// temperature and agent attribution; the repair call additionally skips the
// cache so a cached malformed response can't answer it.
func (c *Client) CompleteWithJSONRetry(ctx context.Context, system, user string, opts Options, schema any, target any, fallback any) error {
	if !c.enabled {
		return assign(target, fallback)
	}

	resp, err := c.Complete(ctx, system, user, opts)
	if err != nil || resp == nil {
		return assign(target, fallback)
	}

	if raw, ok := ExtractJSON(resp.Content); ok {
		if decodeJSON(raw, target) == nil {
			return nil
		}
	}

	c.repairStats.Attempts++
	schemaText, ok := schema.(string)
	if !ok {
		pretty, _ := json.MarshalIndent(schema, "", "  ")
		schemaText = string(pretty)
	}
	repairUser := fmt.Sprintf(
		"The following output should have been valid JSON matching this schema but was not.\n\n"+
			"Raw output:\n%s\n\nSchema:\n%s\n\n"+
			"Respond with ONLY valid JSON, no markdown.",
		resp.Content, schemaText)

	repairOpts := opts
	repairOpts.SkipCache = true
	repaired, err := c.Complete(ctx, system, repairUser, repairOpts)
	if err != nil || repaired == nil {
		return assign(target, fallback)
	}

	if raw, ok := ExtractJSON(repaired.Content); ok {
		if decodeJSON(raw, target) == nil {
			c.repairStats.Successes++
			return nil
		}
	}
	return assign(target, fallback)
}

func decodeJSON(raw string, target any) error {
	var m any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(m)
}

// assign copies fallback into *target when target and fallback share a
// concrete type; used to apply the caller-supplied fallback value.
func assign(target, fallback any) error {
	if fallback == nil {
		return nil
	}
	raw, err := json.Marshal(fallback)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
