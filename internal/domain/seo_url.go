package domain

import "github.com/google/uuid"

// SeoURL is a storefront URL of a product in one language and sales channel.
type SeoURL struct {
	ID             uuid.UUID  `json:"id"`
	LanguageID     uuid.UUID  `json:"languageId"`
	SalesChannelID *uuid.UUID `json:"salesChannelId"`
	ForeignKey     uuid.UUID  `json:"foreignKey"`
	RouteName      string     `json:"routeName"`
	PathInfo       string     `json:"pathInfo"`
	SeoPathInfo    string     `json:"seoPathInfo"`
	IsCanonical    bool       `json:"isCanonical"`
	IsModified     bool       `json:"isModified"`
}

// PrepareForUpdate fills an empty path from def and marks the URL as
// modified only when it carries its own path.
func (u *SeoURL) PrepareForUpdate(def SeoURL) {
	if u.SeoPathInfo == "" {
		u.SeoPathInfo = def.SeoPathInfo
		u.IsModified = false
		return
	}
	u.IsModified = true
}
