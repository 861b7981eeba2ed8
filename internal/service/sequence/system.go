package sequence

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed templates/system.yaml
var systemYAML []byte

type systemSequence struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Category    string          `yaml:"category"`
	Steps       []model.StepDef `yaml:"steps"`
}

// SystemSequences decodes the built-in sequence templates.
func SystemSequences() ([]model.Sequence, [][]model.StepDef, error) {
	var doc struct {
		Sequences []systemSequence `yaml:"sequences"`
	}
	if err := yaml.Unmarshal(systemYAML, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode system sequences: %w", err)
	}
	seqs := make([]model.Sequence, 0, len(doc.Sequences))
	defs := make([][]model.StepDef, 0, len(doc.Sequences))
	for _, s := range doc.Sequences {
		steps, err := model.DecodeSteps(s.Steps)
		if err != nil {
			return nil, nil, fmt.Errorf("system sequence %s: %w", s.ID, err)
		}
		raw, err := model.MarshalSteps(steps)
		if err != nil {
			return nil, nil, err
		}
		seqs = append(seqs, model.Sequence{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Category:    s.Category,
			Steps:       raw,
			IsSystem:    true,
		})
		defs = append(defs, s.Steps)
	}
	return seqs, defs, nil
}

// SeedSystem inserts any built-in sequence not yet stored and returns how
// many were created.
func (s *Service) SeedSystem(ctx context.Context) (int, error) {
	seqs, defs, err := SystemSequences()
	if err != nil {
		return 0, err
	}
	created := 0
	for i, seq := range seqs {
		ok, err := s.sequences.EnsureSystem(ctx, seq, defs[i])
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", seq.ID, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}
