package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"sitebuilder/internal/document"
	"sitebuilder/internal/domain"
	"sitebuilder/internal/resolver"
	"sitebuilder/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Site Service: sites and their pages
// ─────────────────────────────────────────────────────────────

// SiteService manages the lifecycle of sites and pages.
type SiteService struct {
	store    *storage.SiteStore
	history  *storage.HistoryStore
	resolver *resolver.Resolver
	emitter  EventEmitter
}

func NewSiteService(store *storage.SiteStore, history *storage.HistoryStore, r *resolver.Resolver, emitter EventEmitter) *SiteService {
	return &SiteService{store: store, history: history, resolver: r, emitter: emitter}
}

// ── Sites ──────────────────────────────────────────────────

func (s *SiteService) ListSites() ([]domain.Site, error) {
	return s.store.ListSites()
}

func (s *SiteService) GetSite(id string) (*domain.Site, error) {
	return s.store.GetSite(id)
}

func (s *SiteService) CreateSite(name string) (*domain.Site, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create site: name is required")
	}
	site := &domain.Site{ID: uuid.NewString(), Name: name}
	if err := s.store.CreateSite(site); err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	return site, nil
}

func (s *SiteService) RenameSite(id, name string) error {
	site, err := s.store.GetSite(id)
	if err != nil {
		return err
	}
	site.Name = name
	return s.store.UpdateSite(site)
}

// DeleteSite removes a site with all its pages and their history.
func (s *SiteService) DeleteSite(id string) error {
	pages, err := s.store.ListPages(id)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if err := s.history.ClearPage(p.ID); err != nil {
			return fmt.Errorf("clear history for page %s: %w", p.ID, err)
		}
	}
	if err := s.store.DeletePagesBySite(id); err != nil {
		return err
	}
	return s.store.DeleteSite(id)
}

// ── Pages ──────────────────────────────────────────────────

func (s *SiteService) ListPages(siteID string) ([]domain.Page, error) {
	return s.store.ListPages(siteID)
}

func (s *SiteService) GetPage(id string) (*domain.Page, error) {
	return s.store.GetPage(id)
}

// CreatePage adds a page holding an empty document. The slug is derived
// from name when empty and made unique within the site.
func (s *SiteService) CreatePage(siteID, name, slug string) (*domain.Page, error) {
	if _, err := s.store.GetSite(siteID); err != nil {
		return nil, err
	}
	pages, err := s.store.ListPages(siteID)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		slug = Slugify(name)
	}
	taken := make(map[string]bool, len(pages))
	for _, p := range pages {
		taken[p.Slug] = true
	}
	slug = uniqueSlug(slug, taken)

	page := &domain.Page{
		ID:     uuid.NewString(),
		SiteID: siteID,
		Name:   name,
		Slug:   slug,
		Order:  len(pages),
		Data:   document.Serialize(document.New(s.resolver)),
	}
	if err := s.store.CreatePage(page); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

func (s *SiteService) RenamePage(id, name string) error {
	p, err := s.store.GetPage(id)
	if err != nil {
		return err
	}
	p.Name = name
	return s.store.UpdatePage(p)
}

// SetPublishSchedule sets or clears (empty spec) the page's cron schedule.
func (s *SiteService) SetPublishSchedule(id, spec string) error {
	if spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid publish schedule %q: %w", spec, err)
		}
	}
	p, err := s.store.GetPage(id)
	if err != nil {
		return err
	}
	p.PublishCron = spec
	return s.store.UpdatePage(p)
}

func (s *SiteService) DeletePage(ctx context.Context, id string) error {
	if err := s.history.ClearPage(id); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if err := s.store.DeletePage(id); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventDocumentChanged, map[string]any{"pageId": id, "deleted": true})
	return nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and collapses everything else into dashes.
func Slugify(name string) string {
	slug := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "page"
	}
	return slug
}

func uniqueSlug(slug string, taken map[string]bool) string {
	if !taken[slug] {
		return slug
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", slug, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
