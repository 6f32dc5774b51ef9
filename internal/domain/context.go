package domain

import "github.com/google/uuid"

// APIContext carries the request scope every repository call runs under. It
// is passed explicitly to controllers instead of living in shared state.
type APIContext struct {
	LanguageID       uuid.UUID
	SystemLanguageID uuid.UUID
	UserID           uuid.UUID
}

// NewAPIContext creates a context bound to the system language.
func NewAPIContext(systemLanguageID, userID uuid.UUID) APIContext {
	return APIContext{
		LanguageID:       systemLanguageID,
		SystemLanguageID: systemLanguageID,
		UserID:           userID,
	}
}

// IsSystemDefaultLanguage reports whether the active language is the system language.
func (c APIContext) IsSystemDefaultLanguage() bool {
	return c.LanguageID == c.SystemLanguageID
}

// WithLanguage returns a copy using another content language.
func (c APIContext) WithLanguage(languageID uuid.UUID) APIContext {
	c.LanguageID = languageID
	return c
}

// WithDefaultLanguage returns a copy reset to the system language.
func (c APIContext) WithDefaultLanguage() APIContext {
	c.LanguageID = c.SystemLanguageID
	return c
}
