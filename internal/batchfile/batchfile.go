// Package batchfile reads pending batches and completed responses from JSON
// or YAML files and writes expanded batches back out.
package batchfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/agentic-research/subreq/api"
	"github.com/agentic-research/subreq/internal/value"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrMissingRequestID   = errors.New("subrequest has no requestId")
	ErrDuplicateRequestID = errors.New("duplicate requestId")
)

// ParseFormat accepts "json", "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// FormatOf picks the format from a file extension, defaulting to JSON.
func FormatOf(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// LoadBatch reads and validates a batch file.
func LoadBatch(fs billy.Basic, name string) ([]api.Subrequest, error) {
	data, err := util.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	batch, err := DecodeBatch(data, FormatOf(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return batch, nil
}

// DecodeBatch parses a batch document and validates its request IDs.
func DecodeBatch(data []byte, f Format) ([]api.Subrequest, error) {
	js, err := toJSON(data, f)
	if err != nil {
		return nil, err
	}
	var batch []api.Subrequest
	if err := json.Unmarshal(js, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if err := Validate(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// Validate requires every subrequest to carry a request ID unique in the
// batch.
func Validate(batch []api.Subrequest) error {
	seen := make(map[string]int, len(batch))
	for i, r := range batch {
		if r.RequestID == "" {
			return fmt.Errorf("subrequest %d: %w", i, ErrMissingRequestID)
		}
		if j, dup := seen[r.RequestID]; dup {
			return fmt.Errorf("subrequests %d and %d: %w %q", j, i, ErrDuplicateRequestID, r.RequestID)
		}
		seen[r.RequestID] = i
	}
	return nil
}

// LoadResponses reads a responses file: a list of {id, headers, body} or
// {id, headers, rawBody} entries.
func LoadResponses(fs billy.Basic, name string) ([]api.Response, error) {
	data, err := util.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("read responses: %w", err)
	}
	resps, err := DecodeResponses(data, FormatOf(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return resps, nil
}

func DecodeResponses(data []byte, f Format) ([]api.Response, error) {
	js, err := toJSON(data, f)
	if err != nil {
		return nil, err
	}
	var resps []api.Response
	if err := json.Unmarshal(js, &resps); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return resps, nil
}

// WriteBatch writes batch to w followed by a newline.
func WriteBatch(w io.Writer, batch []api.Subrequest, f Format, indent bool) error {
	if batch == nil {
		batch = []api.Subrequest{}
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	switch f {
	case FormatYAML:
		v, err := value.Decode(data)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toNode(v)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		if indent {
			var buf bytes.Buffer
			if err := json.Indent(&buf, data, "", "  "); err != nil {
				return err
			}
			data = buf.Bytes()
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		_, err = io.WriteString(w, "\n")
		return err
	}
}

// toJSON normalizes a document to JSON so every format shares the same
// order-preserving decoders.
func toJSON(data []byte, f Format) ([]byte, error) {
	if f != FormatYAML {
		return data, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	v, err := fromNode(&doc)
	if err != nil {
		return nil, err
	}
	return value.Marshal(v), nil
}
