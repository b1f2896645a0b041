package domain

import (
	"errors"
	"time"

	"sitebuilder/internal/document"
)

var (
	ErrSiteNotFound = errors.New("site not found")
	ErrPageNotFound = errors.New("page not found")
)

type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page is one editable document of a site. Data holds the serialized
// document under edit; PublishCron, when set, schedules automatic publishing.
type Page struct {
	ID          string              `json:"id"`
	SiteID      string              `json:"siteId"`
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	Order       int                 `json:"order"`
	Data        document.Serialized `json:"data"`
	PublishCron string              `json:"publishCron"`
	PublishedAt *time.Time          `json:"publishedAt,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type SiteStore interface {
	CreateSite(s *Site) error
	GetSite(id string) (*Site, error)
	ListSites() ([]Site, error)
	UpdateSite(s *Site) error
	DeleteSite(id string) error

	CreatePage(p *Page) error
	GetPage(id string) (*Page, error)
	ListPages(siteID string) ([]Page, error)
	ListScheduledPages() ([]Page, error)
	UpdatePage(p *Page) error
	SavePageData(id string, data document.Serialized) error
	MarkPublished(id string, at time.Time) error
	DeletePage(id string) error
	DeletePagesBySite(siteID string) error
}
