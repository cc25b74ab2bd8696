package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Formats a VirtualFile can carry.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// VirtualFile is in-memory content exposed to an engine under a logical name.
type VirtualFile struct {
	Name    string
	Format  string
	Content []byte
}

// Prepare turns a fetched document into registration content. JSON documents
// are checked, reshaped by pre, validated against schema (when non-empty) and
// compacted. CSV documents must carry a header row and are passed through.
func Prepare(raw []byte, format string, pre Preprocessor, schema string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return prepareJSON(raw, pre, schema)
	case FormatCSV:
		if pre != nil || schema != "" {
			return nil, errors.New("preprocessing applies to json datasets only")
		}
		if err := checkCSV(raw); err != nil {
			return nil, err
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", format)
	}
}

func prepareJSON(raw []byte, pre Preprocessor, schema string) ([]byte, error) {
	if !json.Valid(raw) {
		return nil, errors.New("dataset is not valid JSON")
	}

	doc := json.RawMessage(raw)
	if pre != nil {
		var err error
		if doc, err = pre(doc); err != nil {
			return nil, fmt.Errorf("preprocess: %w", err)
		}
		if !json.Valid(doc) {
			return nil, errors.New("preprocessor produced invalid JSON")
		}
	}

	if schema != "" {
		if err := ValidateSchema(doc, schema); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return nil, fmt.Errorf("compact JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// ValidateSchema checks doc against a JSON schema document.
func ValidateSchema(doc []byte, schema string) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("dataset invalid against schema: %s", strings.Join(errs, "; "))
	}
	return nil
}

func checkCSV(raw []byte) error {
	header, err := newCSVReader(raw).Read()
	if err != nil {
		return fmt.Errorf("read CSV header: %w", err)
	}
	if len(header) == 0 {
		return errors.New("CSV header is empty")
	}
	return nil
}
