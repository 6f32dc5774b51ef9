package domain

import "github.com/google/uuid"

// CmsSlot is a configurable element inside a CMS block.
type CmsSlot struct {
	ID     uuid.UUID                  `json:"id"`
	Type   string                     `json:"type"`
	Slot   string                     `json:"slot"`
	Config map[string]SlotConfigValue `json:"config"`

	changed map[string]struct{}
}

// CmsBlock groups slots of a section.
type CmsBlock struct {
	ID    uuid.UUID `json:"id"`
	Slots []CmsSlot `json:"slots"`
}

// CmsSection groups blocks of a page.
type CmsSection struct {
	ID     uuid.UUID  `json:"id"`
	Blocks []CmsBlock `json:"blocks"`
}

// CmsPage is the layout assigned to a product, edited alongside it.
type CmsPage struct {
	ID       uuid.UUID    `json:"id"`
	Name     string       `json:"name"`
	Sections []CmsSection `json:"sections"`
}

// SetSlotValue changes one config value of a slot. It reports false when
// the page has no slot with slotID.
func (p *CmsPage) SetSlotValue(slotID uuid.UUID, key string, value SlotConfigValue) bool {
	for si := range p.Sections {
		for bi := range p.Sections[si].Blocks {
			slots := p.Sections[si].Blocks[bi].Slots
			for i := range slots {
				if slots[i].ID != slotID {
					continue
				}
				if slots[i].Config == nil {
					slots[i].Config = make(map[string]SlotConfigValue)
				}
				if slots[i].changed == nil {
					slots[i].changed = make(map[string]struct{})
				}
				slots[i].Config[key] = value
				slots[i].changed[key] = struct{}{}
				return true
			}
		}
	}
	return false
}

// SlotOverrides collects the changed slot config values that carry a
// non-empty value, keyed by slot id. Slots without such values are omitted.
func (p *CmsPage) SlotOverrides() map[string]map[string]SlotConfigValue {
	overrides := make(map[string]map[string]SlotConfigValue)
	if p == nil {
		return overrides
	}
	for _, section := range p.Sections {
		for _, block := range section.Blocks {
			for _, slot := range block.Slots {
				cfg := make(map[string]SlotConfigValue)
				for key := range slot.changed {
					v, ok := slot.Config[key]
					if !ok || isEmptyValue(v.Value) {
						continue
					}
					cfg[key] = v
				}
				if len(cfg) > 0 {
					overrides[slot.ID.String()] = cfg
				}
			}
		}
	}
	return overrides
}

func isEmptyValue(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case bool:
		return !typed
	case float64:
		return typed == 0
	case int:
		return typed == 0
	}
	return false
}

// Clone returns a deep copy, including which slot values were changed.
func (p *CmsPage) Clone() *CmsPage {
	if p == nil {
		return nil
	}
	c := *p
	c.Sections = make([]CmsSection, len(p.Sections))
	for si, section := range p.Sections {
		c.Sections[si] = CmsSection{ID: section.ID, Blocks: make([]CmsBlock, len(section.Blocks))}
		for bi, block := range section.Blocks {
			slots := make([]CmsSlot, len(block.Slots))
			for i, slot := range block.Slots {
				slots[i] = slot
				if slot.Config != nil {
					slots[i].Config = make(map[string]SlotConfigValue, len(slot.Config))
					for k, v := range slot.Config {
						slots[i].Config[k] = v
					}
				}
				if slot.changed != nil {
					slots[i].changed = make(map[string]struct{}, len(slot.changed))
					for k := range slot.changed {
						slots[i].changed[k] = struct{}{}
					}
				}
			}
			c.Sections[si].Blocks[bi] = CmsBlock{ID: block.ID, Slots: slots}
		}
	}
	return &c
}
