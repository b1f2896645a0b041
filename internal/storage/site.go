package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sitebuilder/internal/document"
	"sitebuilder/internal/domain"
)

// SiteStore implements domain.SiteStore using SQLite.
type SiteStore struct {
	db *DB
}

func NewSiteStore(db *DB) *SiteStore {
	return &SiteStore{db: db}
}

func (s *SiteStore) CreateSite(site *domain.Site) error {
	now := time.Now()
	site.CreatedAt = now
	site.UpdatedAt = now
	_, err := s.db.conn.Exec(
		`INSERT INTO sites (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		site.ID, site.Name, site.CreatedAt, site.UpdatedAt,
	)
	return err
}

func (s *SiteStore) GetSite(id string) (*domain.Site, error) {
	site := &domain.Site{}
	err := s.db.conn.QueryRow(
		`SELECT id, name, created_at, updated_at FROM sites WHERE id = ?`, id,
	).Scan(&site.ID, &site.Name, &site.CreatedAt, &site.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get site %s: %w", id, domain.ErrSiteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

func (s *SiteStore) ListSites() ([]domain.Site, error) {
	rows, err := s.db.conn.Query(`SELECT id, name, created_at, updated_at FROM sites ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []domain.Site
	for rows.Next() {
		var site domain.Site
		if err := rows.Scan(&site.ID, &site.Name, &site.CreatedAt, &site.UpdatedAt); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *SiteStore) UpdateSite(site *domain.Site) error {
	site.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE sites SET name = ?, updated_at = ? WHERE id = ?`,
		site.Name, site.UpdatedAt, site.ID,
	)
	return err
}

func (s *SiteStore) DeleteSite(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM sites WHERE id = ?`, id)
	return err
}

const pageColumns = `id, site_id, name, slug, sort_order, data_json, publish_cron, published_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*domain.Page, error) {
	var (
		p         domain.Page
		data      string
		published sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.SiteID, &p.Name, &p.Slug, &p.Order, &data, &p.PublishCron, &published, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if published.Valid {
		t := published.Time
		p.PublishedAt = &t
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("page %s data: %w", p.ID, err)
	}
	p.Data = doc
	return &p, nil
}

func (s *SiteStore) CreatePage(p *domain.Page) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	data, err := encodeDocument(p.Data)
	if err != nil {
		return fmt.Errorf("encode page data: %w", err)
	}
	_, err = s.db.conn.Exec(
		`INSERT INTO pages (id, site_id, name, slug, sort_order, data_json, publish_cron, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SiteID, p.Name, p.Slug, p.Order, data, p.PublishCron, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *SiteStore) GetPage(id string) (*domain.Page, error) {
	p, err := scanPage(s.db.conn.QueryRow(`SELECT `+pageColumns+` FROM pages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get page %s: %w", id, domain.ErrPageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return p, nil
}

func (s *SiteStore) listPages(query string, args ...any) ([]domain.Page, error) {
	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, rows.Err()
}

func (s *SiteStore) ListPages(siteID string) ([]domain.Page, error) {
	return s.listPages(`SELECT `+pageColumns+` FROM pages WHERE site_id = ? ORDER BY sort_order ASC`, siteID)
}

// ListScheduledPages returns every page with a publish schedule.
func (s *SiteStore) ListScheduledPages() ([]domain.Page, error) {
	return s.listPages(`SELECT ` + pageColumns + ` FROM pages WHERE publish_cron != '' ORDER BY site_id, sort_order`)
}

func (s *SiteStore) UpdatePage(p *domain.Page) error {
	p.UpdatedAt = time.Now()
	data, err := encodeDocument(p.Data)
	if err != nil {
		return fmt.Errorf("encode page data: %w", err)
	}
	_, err = s.db.conn.Exec(
		`UPDATE pages SET name = ?, slug = ?, sort_order = ?, data_json = ?, publish_cron = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Slug, p.Order, data, p.PublishCron, p.UpdatedAt, p.ID,
	)
	return err
}

// SavePageData replaces only the document of a page.
func (s *SiteStore) SavePageData(id string, data document.Serialized) error {
	text, err := encodeDocument(data)
	if err != nil {
		return fmt.Errorf("encode page data: %w", err)
	}
	res, err := s.db.conn.Exec(`UPDATE pages SET data_json = ?, updated_at = ? WHERE id = ?`, text, time.Now(), id)
	if err != nil {
		return fmt.Errorf("save page data: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save page data %s: %w", id, domain.ErrPageNotFound)
	}
	return nil
}

func (s *SiteStore) MarkPublished(id string, at time.Time) error {
	_, err := s.db.conn.Exec(`UPDATE pages SET published_at = ? WHERE id = ?`, at, id)
	return err
}

func (s *SiteStore) DeletePage(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM pages WHERE id = ?`, id)
	return err
}

func (s *SiteStore) DeletePagesBySite(siteID string) error {
	_, err := s.db.conn.Exec(`DELETE FROM pages WHERE site_id = ?`, siteID)
	return err
}
