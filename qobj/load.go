package qobj

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// evalContext exposes pi to HCL expressions, so params can read
// [pi / 2, 0, pi].
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"pi": cty.NumberFloatVal(math.Pi),
		},
	}
}

// Load reads a descriptor file, choosing the decoder by extension.
func Load(path string) (*Descriptor, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return DecodeHCL(src, path)
	case ".yaml", ".yml":
		return DecodeYAML(src)
	case ".json":
		return DecodeJSON(src)
	default:
		return nil, fmt.Errorf("unknown descriptor format %q", filepath.Ext(path))
	}
}

// DecodeHCL decodes an HCL descriptor. filename only labels diagnostics.
func DecodeHCL(src []byte, filename string) (*Descriptor, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var desc Descriptor
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &desc); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	return &desc, nil
}

// DecodeYAML decodes a YAML descriptor, rejecting unknown fields.
func DecodeYAML(src []byte) (*Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var desc Descriptor
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("failed to decode YAML descriptor: %w", err)
	}

	return &desc, nil
}

// DecodeJSON decodes a JSON descriptor, rejecting unknown fields.
func DecodeJSON(src []byte) (*Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.DisallowUnknownFields()

	var desc Descriptor
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON descriptor: %w", err)
	}

	return &desc, nil
}
