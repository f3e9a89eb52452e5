package process

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// DecodeYAML reads a definition document. Unknown keys are rejected.
func DecodeYAML(r io.Reader) (*entity.ProcessDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def entity.ProcessDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to decode definition yaml: %w", err)
	}
	if def.Status == "" {
		def.Status = entity.DefinitionStatusDraft
	}
	return &def, nil
}

// EncodeYAML writes def in the same document shape DecodeYAML reads
func EncodeYAML(w io.Writer, def *entity.ProcessDefinition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("failed to encode definition yaml: %w", err)
	}
	return enc.Close()
}
