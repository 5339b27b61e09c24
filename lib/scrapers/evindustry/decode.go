package evindustry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"
)

// ErrNoChargepoints marks a response that parsed fine but carries no
// charge point payload, so callers can skip it without warning.
var ErrNoChargepoints = errors.New("response has no chargepoints payload")

func gunzip(body []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(gz)
}

// unbrotli rejects empty output because short plain-text bodies happen
// to decode as valid empty brotli streams.
func unbrotli(body []byte) ([]byte, error) {
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	if err == nil && len(plain) == 0 {
		return nil, errors.New("empty brotli stream")
	}
	return plain, err
}

// decompress tries the declared content-encoding first, then falls
// back to trying gzip, brotli, and finally plain text. Captured bodies
// come back from the devtools protocol with their transfer encoding
// sometimes already stripped, so the header alone can't be trusted.
func decompress(body []byte, encoding string) []byte {
	switch {
	case strings.Contains(encoding, "gzip"):
		if plain, err := gunzip(body); err == nil {
			return plain
		}
	case strings.Contains(encoding, "br"):
		if plain, err := unbrotli(body); err == nil {
			return plain
		}
	}

	if plain, err := gunzip(body); err == nil {
		return plain
	}
	if plain, err := unbrotli(body); err == nil {
		return plain
	}
	return body
}

// Decode turns a captured response body into the page payload object.
// The encoding hint comes from the response's content-encoding header
// and may be empty. Decode returns ErrNoChargepoints when the body is
// valid JSON but not a listings response.
func Decode(body []byte, encoding string) (map[string]any, error) {
	plain := []byte(strings.ToValidUTF8(string(decompress(body, encoding)), ""))

	// cheap structural probe before committing to a full decode
	probe, err := fastjson.ParseBytes(plain)
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if probe.Get("props", "chargepoints") == nil && probe.Get("chargepoints") == nil {
		return nil, ErrNoChargepoints
	}

	var doc map[string]any
	if err := json.Unmarshal(plain, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode response object: %w", err)
	}
	if _, ok := Chargepoints(doc); !ok {
		return nil, ErrNoChargepoints
	}
	return doc, nil
}

// Chargepoints extracts the charge point list from a decoded payload.
// The site serves it either at the top level or under an inertia-style
// props wrapper.
func Chargepoints(doc map[string]any) ([]map[string]any, bool) {
	raw, ok := doc["chargepoints"]
	if !ok {
		props, isMap := doc["props"].(map[string]any)
		if !isMap {
			return nil, false
		}
		raw, ok = props["chargepoints"]
		if !ok {
			return nil, false
		}
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, record)
	}
	return out, true
}
