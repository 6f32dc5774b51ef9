package seo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/domain"
)

// ProductRoute is the storefront route product SEO URLs point at.
const ProductRoute = "frontend.detail.page"

// Updater writes canonical SEO URLs.
type Updater interface {
	UpdateCanonicalURL(ctx context.Context, url domain.SeoURL, languageID uuid.UUID) error
}

// Service stores SEO URLs in postgres.
type Service struct {
	db     db.DBTX
	logger *zap.Logger
}

// NewService creates an SEO URL service.
func NewService(q db.DBTX, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: q, logger: logger}
}

// CanonicalURLs lists the canonical URLs of a product in one language,
// the sales channel independent default first.
func (s *Service) CanonicalURLs(ctx context.Context, foreignKey, languageID uuid.UUID) ([]domain.SeoURL, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, language_id, sales_channel_id, foreign_key, route_name, path_info, seo_path_info, is_canonical, is_modified
		FROM seo_url
		WHERE foreign_key = $1 AND language_id = $2 AND is_canonical
		ORDER BY sales_channel_id NULLS FIRST, id`, foreignKey, languageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seo urls: %w", err)
	}
	defer rows.Close()

	urls := make([]domain.SeoURL, 0)
	for rows.Next() {
		var u domain.SeoURL
		if err := rows.Scan(&u.ID, &u.LanguageID, &u.SalesChannelID, &u.ForeignKey, &u.RouteName,
			&u.PathInfo, &u.SeoPathInfo, &u.IsCanonical, &u.IsModified); err != nil {
			return nil, fmt.Errorf("failed to scan seo url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate seo urls: %w", err)
	}
	return urls, nil
}

// UpdateCanonicalURL stores url as the canonical URL of its foreign key in
// languageID, replacing the previous canonical entry.
func (s *Service) UpdateCanonicalURL(ctx context.Context, url domain.SeoURL, languageID uuid.UUID) error {
	if url.ID == uuid.Nil {
		url.ID = uuid.New()
	}
	if url.RouteName == "" {
		url.RouteName = ProductRoute
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO seo_url (id, language_id, sales_channel_id, foreign_key, route_name, path_info, seo_path_info, is_canonical, is_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		ON CONFLICT (foreign_key, language_id, COALESCE(sales_channel_id, '00000000-0000-0000-0000-000000000000'::uuid), route_name)
			WHERE is_canonical
		DO UPDATE SET seo_path_info = EXCLUDED.seo_path_info,
			path_info = EXCLUDED.path_info,
			is_modified = EXCLUDED.is_modified,
			updated_at = NOW()`,
		url.ID, languageID, url.SalesChannelID, url.ForeignKey, url.RouteName, url.PathInfo, url.SeoPathInfo, url.IsModified)
	if err != nil {
		return fmt.Errorf("failed to update canonical seo url: %w", err)
	}

	s.logger.Debug("updated canonical seo url",
		zap.Stringer("foreign_key", url.ForeignKey),
		zap.Stringer("language_id", languageID),
		zap.String("seo_path_info", url.SeoPathInfo),
		zap.Bool("modified", url.IsModified),
	)
	return nil
}
