package parser

import (
	"encoding/json"
	"fmt"

	"github.com/openworld/physync/internal/entity"
	"github.com/openworld/physync/pkg/core"
)

// ParseEntityAdd parses an entity:add notification.
// [0] entity JSON
func (p *Parser) ParseEntityAdd(data []string) (entity.Definition, error) {
	if err := requireArgs(data, 1, "entity:add"); err != nil {
		return entity.Definition{}, err
	}
	cleanArgs(data)

	var spec EntitySpec
	if err := json.Unmarshal([]byte(data[0]), &spec); err != nil {
		return entity.Definition{}, fmt.Errorf("error unmarshalling entity: %w", err)
	}
	def, err := spec.Definition()
	if err != nil {
		return entity.Definition{}, err
	}

	p.logger.Debug("Parsed entity",
		"id", def.ID,
		"name", def.Name,
		"shape", def.Shape.Type)
	return def, nil
}

// ParseEntityEdit parses an entity:edit notification.
// [0] entity id, [1] property JSON, [2] server step (optional)
func (p *Parser) ParseEntityEdit(data []string) (ParsedEdit, error) {
	var edit ParsedEdit
	if err := requireArgs(data, 2, "entity:edit"); err != nil {
		return edit, err
	}
	cleanArgs(data)

	id, err := core.ParseEntityID(data[0])
	if err != nil {
		return edit, err
	}
	edit.EntityID = id

	if err := json.Unmarshal([]byte(data[1]), &edit.Properties); err != nil {
		return edit, fmt.Errorf("error unmarshalling properties: %w", err)
	}
	if edit.Properties.Empty() {
		return edit, fmt.Errorf("entity:edit for %s carries no properties", id)
	}

	if len(data) > 2 && data[2] != "" {
		step, err := parseUintFromFloat(data[2])
		if err != nil {
			return edit, fmt.Errorf("error parsing step: %w", err)
		}
		edit.Step = uint32(step)
	}
	return edit, nil
}

// ParseEntityID parses the single id argument of entity:delete and
// entity:bump.
func (p *Parser) ParseEntityID(data []string) (core.EntityID, error) {
	if err := requireArgs(data, 1, "entity id"); err != nil {
		return core.EntityID{}, err
	}
	cleanArgs(data)
	return core.ParseEntityID(data[0])
}
