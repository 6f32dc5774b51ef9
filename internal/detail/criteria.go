package detail

import (
	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/domain"
)

// ProductCriteria is the association graph loaded with an edited product.
func ProductCriteria() criteria.Criteria {
	byPosition := criteria.New(1, criteria.DefaultLimit).WithSorting(criteria.Sort("position", criteria.Asc, false))

	c := criteria.New(1, 1).
		WithAssociation("media", byPosition).
		WithAssociation("properties", criteria.New(1, criteria.DefaultLimit).WithSorting(criteria.Sort("name", criteria.Asc, false))).
		WithAssociation("prices", criteria.New(1, criteria.DefaultLimit).WithSorting(criteria.Sort("quantityStart", criteria.Asc, true))).
		WithAssociation("tags", criteria.New(1, criteria.DefaultLimit).WithSorting(criteria.Sort("name", criteria.Asc, false))).
		WithAssociation("seoUrls", criteria.New(1, criteria.DefaultLimit).WithFilter(criteria.Equals("isCanonical", true))).
		WithAssociation("crossSellings", byPosition.WithAssociation("assignedProducts", byPosition))

	for _, path := range []string{
		"cover",
		"categories",
		"visibilities.salesChannel",
		"options.group",
		"unit",
		"manufacturer",
		"customFieldSets",
		"featureSet",
	} {
		c = c.AddAssociation(path)
	}
	return c
}

// TaxCriteria loads every tax ordered for the tax select.
func TaxCriteria() criteria.Criteria {
	return criteria.New(1, 500).WithSorting(criteria.Sort("position", criteria.Asc, false))
}

// CurrencyCriteria loads every currency.
func CurrencyCriteria() criteria.Criteria {
	return criteria.New(1, 500)
}

// CustomFieldSetCriteria loads the custom field sets attached to products
// with their fields in configured order.
func CustomFieldSetCriteria() criteria.Criteria {
	fields := criteria.New(1, 100).WithSorting(criteria.Sort("config.customFieldPosition", criteria.Asc, true))
	return criteria.New(1, 100).
		WithFilter(criteria.Equals("relations.entityName", "product")).
		WithAssociation("customFields", fields)
}

// DefaultFeatureSetCriteria finds the oldest feature set named like a default.
func DefaultFeatureSetCriteria() criteria.Criteria {
	return criteria.New(1, 1).
		WithFilter(criteria.EqualsAny("name", domain.DefaultFeatureSetNames)).
		WithSorting(criteria.Sort("createdAt", criteria.Asc, false))
}

// AdvancedModeCriteria finds the advanced mode setting of a user.
func AdvancedModeCriteria(userID uuid.UUID) criteria.Criteria {
	return criteria.New(1, 1).WithFilter(
		criteria.Equals("key", domain.AdvancedModeSettingKey),
		criteria.Equals("userId", userID),
	)
}
