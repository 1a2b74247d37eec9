package chaosmesh

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalParams serializes a parameter map as block-style YAML with
// two-space indentation, ready to embed under a workflow template's
// spec field. Keys are emitted in sorted order so rendering is
// deterministic.
func MarshalParams(params map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(params); err != nil {
		return "", fmt.Errorf("encoding fault params: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("closing fault params encoder: %w", err)
	}
	return buf.String(), nil
}

// RenderCR renders a standalone chaos CR manifest for server-side
// dry-run validation. Duration is optional.
func RenderCR(kind Kind, name, namespace string, params map[string]any, duration string) (string, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return "", err
	}
	spec := make(map[string]any, len(params)+1)
	for k, v := range params {
		spec[k] = v
	}
	if duration != "" {
		spec["duration"] = duration
	}
	doc := map[string]any{
		"apiVersion": APIVersion,
		"kind":       string(kind),
		"metadata": map[string]any{
			"name":      name,
			"namespace": namespace,
		},
		"spec": spec,
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encoding %s manifest: %w", kind, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("closing %s encoder: %w", kind, err)
	}
	return buf.String(), nil
}
