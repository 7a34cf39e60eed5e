package migration

import (
	"fmt"

	"github.com/rediwo/redi-migrate/schema"
)

// ProjectState is a snapshot of the declared model state, versioned by
// migration application order. Snapshots are cloned before every mutation so
// forward and backward application never alias a prior snapshot.
type ProjectState struct {
	Models map[string]*schema.Model
}

// NewProjectState creates an empty state snapshot
func NewProjectState() *ProjectState {
	return &ProjectState{
		Models: make(map[string]*schema.Model),
	}
}

// Clone returns a deep copy of the snapshot
func (s *ProjectState) Clone() *ProjectState {
	c := NewProjectState()
	for name, model := range s.Models {
		c.Models[name] = model.Clone()
	}
	return c
}

// Model returns the model with the given name
func (s *ProjectState) Model(name string) (*schema.Model, error) {
	model, ok := s.Models[name]
	if !ok {
		return nil, fmt.Errorf("model %s not found in project state", name)
	}
	return model, nil
}

// AddModel adds a model to the snapshot
func (s *ProjectState) AddModel(model *schema.Model) error {
	if _, exists := s.Models[model.Name]; exists {
		return fmt.Errorf("model %s already exists in project state", model.Name)
	}
	s.Models[model.Name] = model
	return nil
}

// RemoveModel removes a model from the snapshot
func (s *ProjectState) RemoveModel(name string) error {
	if _, exists := s.Models[name]; !exists {
		return fmt.Errorf("model %s not found in project state", name)
	}
	delete(s.Models, name)
	return nil
}
