package repository

// Gross amount of the system default currency inside the price JSON array.
const defaultGrossExpr = "(SELECT (e->>'gross')::numeric FROM jsonb_array_elements(p.price) e " +
	"JOIN currency dc ON dc.id = (e->>'currencyId')::uuid AND dc.is_system_default LIMIT 1)"

var productSchema = &entitySchema{
	entity: "product",
	alias:  "p",
	selectList: "p.id, p.parent_id, p.product_number, p.active, p.tax_id, p.manufacturer_id, p.feature_set_id, p.cover_id, " +
		"p.stock, p.available_stock, p.min_purchase, p.max_purchase, p.release_date, " +
		"pt.name, pt.meta_title, pt.additional_text, " +
		"COALESCE(pt.name, ptd.name), COALESCE(pt.meta_title, ptd.meta_title), COALESCE(pt.additional_text, ptd.additional_text), " +
		"p.price, p.purchase_prices, p.custom_fields, p.slot_config, p.version, p.created_at, p.updated_at, " +
		"(SELECT COUNT(*) FROM product child WHERE child.parent_id = p.id)",
	from: "product p " +
		"LEFT JOIN product_translation pt ON pt.product_id = p.id AND pt.language_id = $1 " +
		"LEFT JOIN product_translation ptd ON ptd.product_id = p.id AND ptd.language_id = $2 " +
		"LEFT JOIN product_manufacturer m ON m.id = p.manufacturer_id",
	translated: true,
	columns: map[string]column{
		"id":                {"p.id", kindUUID},
		"parentId":          {"p.parent_id", kindUUID},
		"productNumber":     {"p.product_number", kindText},
		"active":            {"p.active", kindBool},
		"taxId":             {"p.tax_id", kindUUID},
		"manufacturerId":    {"p.manufacturer_id", kindUUID},
		"manufacturer.id":   {"p.manufacturer_id", kindUUID},
		"manufacturer.name": {"m.name", kindText},
		"featureSetId":      {"p.feature_set_id", kindUUID},
		"coverId":           {"p.cover_id", kindUUID},
		"stock":             {"p.stock", kindInt},
		"availableStock":    {"p.available_stock", kindInt},
		"minPurchase":       {"p.min_purchase", kindInt},
		"maxPurchase":       {"p.max_purchase", kindInt},
		"releaseDate":       {"p.release_date", kindTime},
		"createdAt":         {"p.created_at", kindTime},
		"updatedAt":         {"p.updated_at", kindTime},
		"name":              {"COALESCE(pt.name, ptd.name)", kindText},
		"price":             {defaultGrossExpr, kindNumeric},
		"childCount":        {"(SELECT COUNT(*) FROM product child WHERE child.parent_id = p.id)", kindInt},
	},
	collections: map[string]collection{
		"media.id":                     {"product_media", "product_id", "id", kindUUID},
		"media.mediaId":                {"product_media", "product_id", "media_id", kindUUID},
		"categories.id":                {"product_category", "product_id", "category_id", kindUUID},
		"tags.id":                      {"product_tag", "product_id", "tag_id", kindUUID},
		"visibilities.salesChannel.id": {"product_visibility", "product_id", "sales_channel_id", kindUUID},
		"visibilities.salesChannelId":  {"product_visibility", "product_id", "sales_channel_id", kindUUID},
	},
	termColumns: []string{"p.product_number", "COALESCE(pt.name, ptd.name)", "m.name"},
	defaultSort: "p.created_at DESC, p.id",
}

var productMediaSchema = &entitySchema{
	entity:     "product_media",
	alias:      "pm",
	selectList: "pm.id, pm.product_id, pm.media_id, pm.position, pm.url",
	from:       "product_media pm",
	columns: map[string]column{
		"id":       {"pm.id", kindUUID},
		"mediaId":  {"pm.media_id", kindUUID},
		"position": {"pm.position", kindInt},
	},
	defaultSort: "pm.position, pm.id",
}

var productPriceSchema = &entitySchema{
	entity:     "product_price",
	alias:      "pp",
	selectList: "pp.id, pp.product_id, pp.rule_id, pp.quantity_start, pp.quantity_end, pp.price",
	from:       "product_price pp",
	columns: map[string]column{
		"id":            {"pp.id", kindUUID},
		"ruleId":        {"pp.rule_id", kindUUID},
		"quantityStart": {"pp.quantity_start", kindInt},
		"quantityEnd":   {"pp.quantity_end", kindInt},
	},
	defaultSort: "pp.quantity_start, pp.id",
}

var currencySchema = &entitySchema{
	entity:     "currency",
	alias:      "c",
	selectList: "c.id, c.iso_code, c.name, c.short_name, c.symbol, c.factor, c.position, c.is_system_default",
	from:       "currency c",
	columns: map[string]column{
		"id":              {"c.id", kindUUID},
		"isoCode":         {"c.iso_code", kindText},
		"name":            {"c.name", kindText},
		"position":        {"c.position", kindInt},
		"isSystemDefault": {"c.is_system_default", kindBool},
	},
	termColumns: []string{"c.iso_code", "c.name"},
	defaultSort: "c.position, c.iso_code",
}

var taxSchema = &entitySchema{
	entity:     "tax",
	alias:      "t",
	selectList: "t.id, t.name, t.tax_rate, t.position",
	from:       "tax t",
	columns: map[string]column{
		"id":       {"t.id", kindUUID},
		"name":     {"t.name", kindText},
		"taxRate":  {"t.tax_rate", kindNumeric},
		"position": {"t.position", kindInt},
	},
	termColumns: []string{"t.name"},
	defaultSort: "t.position, t.name",
}

var customFieldSetSchema = &entitySchema{
	entity: "custom_field_set",
	alias:  "cfs",
	selectList: "cfs.id, cfs.name, cfs.active, " +
		"COALESCE((SELECT array_agg(r.entity_name ORDER BY r.entity_name) FROM custom_field_set_relation r WHERE r.set_id = cfs.id), '{}')",
	from: "custom_field_set cfs",
	columns: map[string]column{
		"id":     {"cfs.id", kindUUID},
		"name":   {"cfs.name", kindText},
		"active": {"cfs.active", kindBool},
	},
	collections: map[string]collection{
		"relations.entityName": {"custom_field_set_relation", "set_id", "entity_name", kindText},
	},
	termColumns: []string{"cfs.name"},
	defaultSort: "cfs.name",
}

var customFieldSchema = &entitySchema{
	entity:     "custom_field",
	alias:      "cf",
	selectList: "cf.id, cf.set_id, cf.name, cf.type, cf.config",
	from:       "custom_field cf",
	columns: map[string]column{
		"id":                         {"cf.id", kindUUID},
		"name":                       {"cf.name", kindText},
		"type":                       {"cf.type", kindText},
		"config.customFieldPosition": {"(cf.config->>'customFieldPosition')", kindText},
	},
	defaultSort: "cf.name",
}

var featureSetSchema = &entitySchema{
	entity:     "product_feature_set",
	alias:      "fs",
	selectList: "fs.id, fs.name, fs.description, fs.created_at",
	from:       "product_feature_set fs",
	columns: map[string]column{
		"id":        {"fs.id", kindUUID},
		"name":      {"fs.name", kindText},
		"createdAt": {"fs.created_at", kindTime},
	},
	defaultSort: "fs.created_at, fs.id",
}

var userConfigSchema = &entitySchema{
	entity:     "user_config",
	alias:      "uc",
	selectList: "uc.id, uc.user_id, uc.key, uc.value",
	from:       "user_config uc",
	columns: map[string]column{
		"id":     {"uc.id", kindUUID},
		"userId": {"uc.user_id", kindUUID},
		"key":    {"uc.key", kindText},
	},
	defaultSort: "uc.key",
}
