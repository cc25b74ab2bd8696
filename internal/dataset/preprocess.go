package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Preprocessor reshapes a fetched JSON document before registration. It
// receives and returns raw JSON so that object key order survives.
type Preprocessor func(doc json.RawMessage) (json.RawMessage, error)

// SelectPath returns a Preprocessor that selects a nested value by dotted
// path. Object members are addressed by name and array elements by index,
// e.g. "data.users" or "pages.0.items". An empty path selects the document.
func SelectPath(path string) Preprocessor {
	path = strings.TrimPrefix(strings.TrimSpace(path), ".")
	return func(doc json.RawMessage) (json.RawMessage, error) {
		if path == "" {
			return doc, nil
		}
		cur := doc
		for seg := range strings.SplitSeq(path, ".") {
			next, err := selectSegment(cur, seg)
			if err != nil {
				return nil, fmt.Errorf("select %q: %w", path, err)
			}
			cur = next
		}
		return cur, nil
	}
}

func selectSegment(doc json.RawMessage, seg string) (json.RawMessage, error) {
	switch firstByte(doc) {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, err
		}
		v, ok := obj[seg]
		if !ok {
			return nil, fmt.Errorf("field %q not found", seg)
		}
		return v, nil
	case '[':
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("segment %q is not an array index", seg)
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(doc, &arr); err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(arr) {
			return nil, fmt.Errorf("index %d out of range (len %d)", idx, len(arr))
		}
		return arr[idx], nil
	default:
		return nil, fmt.Errorf("cannot select %q from a scalar", seg)
	}
}

// Chain applies preprocessors left to right. Nil entries are skipped.
func Chain(pp ...Preprocessor) Preprocessor {
	return func(doc json.RawMessage) (json.RawMessage, error) {
		var err error
		for _, p := range pp {
			if p == nil {
				continue
			}
			if doc, err = p(doc); err != nil {
				return nil, err
			}
		}
		return doc, nil
	}
}

// firstByte returns the first non-space byte of b, or 0.
func firstByte(b []byte) byte {
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
