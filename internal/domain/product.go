package domain

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateMedia is returned when a media item is already assigned.
	ErrDuplicateMedia = errors.New("a media item with this id exists")
	// ErrMediaNotFound is returned when a media item is not assigned.
	ErrMediaNotFound = errors.New("media item is not assigned to the product")
	// ErrPurchaseBounds is returned when min purchase exceeds max purchase.
	ErrPurchaseBounds = errors.New("minimum purchase exceeds maximum purchase")
)

// ProductMedia links a media item to a product.
type ProductMedia struct {
	ID       uuid.UUID `json:"id"`
	MediaID  uuid.UUID `json:"mediaId"`
	Position int       `json:"position"`
	URL      string    `json:"url,omitempty"`
}

// Visibility assigns a product to a sales channel.
type Visibility struct {
	ID             uuid.UUID `json:"id"`
	SalesChannelID uuid.UUID `json:"salesChannelId"`
	Visibility     int       `json:"visibility"`
}

// Translated holds the fields resolved in the active content language.
type Translated struct {
	Name           *string `json:"name"`
	MetaTitle      *string `json:"metaTitle"`
	AdditionalText *string `json:"additionalText"`
}

// SlotConfigValue is one configured value of a CMS slot.
type SlotConfigValue struct {
	Source string `json:"source"`
	Value  any    `json:"value"`
}

// Product is the working copy of a product aggregate: the root record plus
// its media, advanced prices, visibilities, categories and tags.
type Product struct {
	ID             uuid.UUID  `json:"id"`
	ParentID       *uuid.UUID `json:"parentId"`
	ProductNumber  string     `json:"productNumber"`
	Active         *bool      `json:"active"`
	TaxID          *uuid.UUID `json:"taxId"`
	ManufacturerID *uuid.UUID `json:"manufacturerId"`
	FeatureSetID   *uuid.UUID `json:"featureSetId"`
	CoverID        *uuid.UUID `json:"coverId"`
	Stock          int        `json:"stock"`
	AvailableStock int        `json:"availableStock"`
	MinPurchase    *int       `json:"minPurchase"`
	MaxPurchase    *int       `json:"maxPurchase"`
	ReleaseDate    *time.Time `json:"releaseDate"`
	ChildCount     int        `json:"childCount"`

	Name           *string    `json:"name"`
	MetaTitle      *string    `json:"metaTitle"`
	AdditionalText *string    `json:"additionalText"`
	Translated     Translated `json:"translated"`

	Price          []Price         `json:"price"`
	PurchasePrices []Price         `json:"purchasePrices"`
	Prices         []AdvancedPrice `json:"prices"`
	Media          []ProductMedia  `json:"media"`
	Cover          *ProductMedia   `json:"cover,omitempty"`
	Manufacturer   *Manufacturer   `json:"manufacturer,omitempty"`
	Visibilities   []Visibility    `json:"visibilities"`
	CategoryIDs    []uuid.UUID     `json:"categoryIds"`
	TagIDs         []uuid.UUID     `json:"tagIds"`

	CustomFields map[string]any                        `json:"customFields"`
	SlotConfig   map[string]map[string]SlotConfigValue `json:"slotConfig"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	origin *Product
}

// NewProduct allocates an empty, not yet persisted product.
func NewProduct() *Product {
	return &Product{ID: uuid.New()}
}

// IsNew reports whether the product has never been persisted.
func (p *Product) IsNew() bool {
	return p.origin == nil
}

// MarkPersisted records the current state as the persisted baseline.
func (p *Product) MarkPersisted() {
	snapshot := p.Clone()
	snapshot.origin = nil
	p.origin = snapshot
}

// HasChanges reports whether the product differs from its persisted baseline.
// A product that was never persisted always has changes.
func (p *Product) HasChanges() bool {
	if p.origin == nil {
		return true
	}
	current := p.Clone()
	current.origin = nil
	return !reflect.DeepEqual(current, p.origin)
}

// DiscardChanges restores the persisted baseline.
func (p *Product) DiscardChanges() {
	if p.origin == nil {
		return
	}
	origin := p.origin
	*p = *origin.Clone()
	p.origin = origin
}

// Clone returns a deep copy sharing no mutable state with p. The persisted
// baseline is carried over; it is never modified in place.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.ParentID = cloneUUID(p.ParentID)
	c.Active = cloneBool(p.Active)
	c.TaxID = cloneUUID(p.TaxID)
	c.ManufacturerID = cloneUUID(p.ManufacturerID)
	c.FeatureSetID = cloneUUID(p.FeatureSetID)
	c.CoverID = cloneUUID(p.CoverID)
	c.MinPurchase = cloneInt(p.MinPurchase)
	c.MaxPurchase = cloneInt(p.MaxPurchase)
	if p.ReleaseDate != nil {
		rd := *p.ReleaseDate
		c.ReleaseDate = &rd
	}
	c.Name = cloneString(p.Name)
	c.MetaTitle = cloneString(p.MetaTitle)
	c.AdditionalText = cloneString(p.AdditionalText)
	c.Translated = Translated{
		Name:           cloneString(p.Translated.Name),
		MetaTitle:      cloneString(p.Translated.MetaTitle),
		AdditionalText: cloneString(p.Translated.AdditionalText),
	}
	c.Price = clonePrices(p.Price)
	c.PurchasePrices = clonePrices(p.PurchasePrices)
	if p.Prices != nil {
		c.Prices = make([]AdvancedPrice, len(p.Prices))
		for i, ap := range p.Prices {
			c.Prices[i] = ap
			c.Prices[i].QuantityEnd = cloneInt(ap.QuantityEnd)
			c.Prices[i].Price = clonePrices(ap.Price)
		}
	}
	if p.Media != nil {
		c.Media = append([]ProductMedia{}, p.Media...)
	}
	if p.Cover != nil {
		cover := *p.Cover
		c.Cover = &cover
	}
	if p.Manufacturer != nil {
		m := *p.Manufacturer
		c.Manufacturer = &m
	}
	if p.Visibilities != nil {
		c.Visibilities = append([]Visibility{}, p.Visibilities...)
	}
	if p.CategoryIDs != nil {
		c.CategoryIDs = append([]uuid.UUID{}, p.CategoryIDs...)
	}
	if p.TagIDs != nil {
		c.TagIDs = append([]uuid.UUID{}, p.TagIDs...)
	}
	if p.CustomFields != nil {
		c.CustomFields = make(map[string]any, len(p.CustomFields))
		for k, v := range p.CustomFields {
			c.CustomFields[k] = v
		}
	}
	if p.SlotConfig != nil {
		c.SlotConfig = cloneSlotConfig(p.SlotConfig)
	}
	return &c
}

// Duplicate copies p into a new, unsaved and inactive product numbered
// productNumber. Media, advanced prices and visibilities get new ids and the
// cover follows its media. Variants of p are not copied; a duplicated
// variant keeps its parent. The name falls back to the translated one so
// the copy is named in the content language it is saved in.
func (p *Product) Duplicate(productNumber string) *Product {
	c := p.Clone()
	c.origin = nil
	c.ID = uuid.New()
	c.ProductNumber = productNumber
	inactive := false
	c.Active = &inactive
	c.ChildCount = 0
	c.Version = 0
	c.CreatedAt, c.UpdatedAt = time.Time{}, time.Time{}
	if c.Name == nil {
		c.Name = cloneString(c.Translated.Name)
	}

	c.CoverID, c.Cover = nil, nil
	for i := range c.Media {
		old := c.Media[i].ID
		c.Media[i].ID = uuid.New()
		if p.CoverID != nil && *p.CoverID == old {
			c.setCover(c.Media[i])
		}
	}
	for i := range c.Prices {
		c.Prices[i].ID = uuid.New()
	}
	for i := range c.Visibilities {
		c.Visibilities[i].ID = uuid.New()
	}
	return c
}

// IsVariant reports whether the product has a parent.
func (p *Product) IsVariant() bool {
	return p != nil && p.ParentID != nil && *p.ParentID != uuid.Nil
}

// DisplayName returns the translated name, the base name or fallback.
func (p *Product) DisplayName(fallback string) string {
	if p == nil {
		return fallback
	}
	if p.Translated.Name != nil && *p.Translated.Name != "" {
		return *p.Translated.Name
	}
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	return fallback
}

// InheritedTitle resolves the title of a variant: its own translated name,
// its own name, the parent's translated name, the parent's name, else "".
func InheritedTitle(product, parent *Product) string {
	if product != nil {
		if product.Translated.Name != nil {
			return *product.Translated.Name
		}
		if product.Name != nil {
			return *product.Name
		}
	}
	if parent != nil {
		if parent.Translated.Name != nil {
			return *parent.Translated.Name
		}
		if parent.Name != nil {
			return *parent.Name
		}
	}
	return ""
}

// ValidatePurchase checks the purchase quantity bounds are consistent.
func (p *Product) ValidatePurchase() error {
	if p.MinPurchase == nil || p.MaxPurchase == nil || *p.MaxPurchase == 0 {
		return nil
	}
	if *p.MinPurchase > *p.MaxPurchase {
		return fmt.Errorf("%w: %d > %d", ErrPurchaseBounds, *p.MinPurchase, *p.MaxPurchase)
	}
	return nil
}

// NormalizeListPrices applies NormalizeListPrices to every advanced price
// row and to the base price.
func (p *Product) NormalizeListPrices() {
	for i := range p.Prices {
		NormalizeListPrices(p.Prices[i].Price)
	}
	NormalizeListPrices(p.Price)
}

// HasMedia reports whether mediaID is assigned.
func (p *Product) HasMedia(mediaID uuid.UUID) bool {
	for _, m := range p.Media {
		if m.MediaID == mediaID {
			return true
		}
	}
	return false
}

// AddMedia assigns a media item after the last position. The first media
// item of a product becomes its cover at position 0. Assigning an already
// used media item fails with ErrDuplicateMedia and leaves the product
// unchanged.
func (p *Product) AddMedia(mediaID uuid.UUID, url string) (ProductMedia, error) {
	if p.HasMedia(mediaID) {
		return ProductMedia{}, ErrDuplicateMedia
	}
	pm := ProductMedia{ID: uuid.New(), MediaID: mediaID, URL: url}
	for _, m := range p.Media {
		if m.Position >= pm.Position {
			pm.Position = m.Position + 1
		}
	}
	if len(p.Media) == 0 {
		pm.Position = 0
		p.setCover(pm)
	}
	p.Media = append(p.Media, pm)
	return pm, nil
}

// RemoveMedia unassigns a media item and clears the cover when it pointed at it.
func (p *Product) RemoveMedia(mediaID uuid.UUID) error {
	for i, m := range p.Media {
		if m.MediaID != mediaID {
			continue
		}
		if (p.CoverID != nil && *p.CoverID == m.ID) || (p.Cover != nil && p.Cover.ID == m.ID) {
			p.CoverID = nil
			p.Cover = nil
		}
		p.Media = slices.Delete(slices.Clone(p.Media), i, i+1)
		return nil
	}
	return ErrMediaNotFound
}

// SetCover makes the product media holding mediaID the cover.
func (p *Product) SetCover(mediaID uuid.UUID) error {
	for _, m := range p.Media {
		if m.MediaID == mediaID {
			p.setCover(m)
			return nil
		}
	}
	return ErrMediaNotFound
}

func (p *Product) setCover(m ProductMedia) {
	id := m.ID
	p.CoverID = &id
	p.Cover = &m
}

func cloneUUID(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneSlotConfig(in map[string]map[string]SlotConfigValue) map[string]map[string]SlotConfigValue {
	out := make(map[string]map[string]SlotConfigValue, len(in))
	for slotID, cfg := range in {
		inner := make(map[string]SlotConfigValue, len(cfg))
		for k, v := range cfg {
			inner[k] = v
		}
		out[slotID] = inner
	}
	return out
}
