package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// peekJSONBody decodes r's body as a JSON object and rewinds r.Body so the
// downstream handler can decode it again into its own typed struct. Used by
// PINAuth, which only needs the "pin" field and must not consume the body
// the handler itself will read.
func peekJSONBody(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}
