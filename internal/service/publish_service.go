package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sitebuilder/internal/domain"
	"sitebuilder/internal/metrics"
	"sitebuilder/internal/resolver"
	"sitebuilder/internal/storage"
	"sitebuilder/internal/transpile"
)

// ErrPublishInProgress is returned when the page is already being published.
var ErrPublishInProgress = errors.New("publish already in progress")

// ─────────────────────────────────────────────────────────────
// Publish Service: transpiles pages to files
// ─────────────────────────────────────────────────────────────

// PublishOptions configures where and how pages are published.
type PublishOptions struct {
	OutDir      string
	Transpile   transpile.Options
	Rename      map[string]string
	Concurrency int
}

// PublishResult describes the artifacts written for one page.
type PublishResult struct {
	PageID      string    `json:"pageId"`
	StaticPath  string    `json:"staticPath"`
	ShellPath   string    `json:"shellPath"`
	Diagnostics bool      `json:"diagnostics"`
	PublishedAt time.Time `json:"publishedAt"`
}

// PublishService writes the static markup and the interactive shell of a
// page under <OutDir>/<siteID>/<slug>.{tsx,html}.
type PublishService struct {
	sites    *storage.SiteStore
	sources  *DataSourceService
	resolver *resolver.Resolver
	opts     PublishOptions
	emitter  EventEmitter
	log      *logrus.Entry

	running runningGuard

	cronMu    sync.Mutex
	cronSched *cron.Cron
}

func NewPublishService(
	sites *storage.SiteStore,
	sources *DataSourceService,
	r *resolver.Resolver,
	opts PublishOptions,
	emitter EventEmitter,
) *PublishService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	opts.Transpile.Resolver = r
	return &PublishService{
		sites:    sites,
		sources:  sources,
		resolver: r,
		opts:     opts,
		emitter:  emitter,
		log:      logrus.WithField("component", "publish"),
	}
}

// ── Transpile ──────────────────────────────────────────────

// Render transpiles the stored document of page without writing anything.
func (s *PublishService) Render(ctx context.Context, page *domain.Page) transpile.Artifact {
	opts := s.opts.Transpile
	opts.ComponentName = componentName(page.Slug)
	if opts.Title == "" {
		opts.Title = page.Name
	}
	tr := transpile.New(opts)

	var pageCtx json.RawMessage
	if ids := DataSourceIDs(page.Data); len(ids) > 0 && s.sources != nil {
		blob, err := s.sources.Descriptors(ctx, ids)
		if err != nil {
			s.log.WithError(err).WithField("page", page.ID).Warn("build page context")
		} else {
			pageCtx = blob
		}
	}

	art := tr.Both(page.Data, s.opts.Rename, pageCtx)
	metrics.RecordTranspile("static", strings.Contains(art.Static, transpile.DiagnosticMarker))
	metrics.RecordTranspile("shell", strings.Contains(art.Shell, transpile.DiagnosticMarker))
	return art
}

// componentName turns a slug into an exported component name.
func componentName(slug string) string {
	var b strings.Builder
	upper := true
	for _, r := range slug {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if b.Len() == 0 && unicode.IsDigit(r) {
			b.WriteString("Page")
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "Page"
	}
	return b.String()
}

// ── Publish ────────────────────────────────────────────────

// Publish writes the artifacts of pageID. Only one publish per page runs
// at a time; a concurrent call gets ErrPublishInProgress.
func (s *PublishService) Publish(ctx context.Context, pageID string) (res *PublishResult, err error) {
	if !s.running.TryLock(pageID) {
		return nil, fmt.Errorf("page %s: %w", pageID, ErrPublishInProgress)
	}
	defer s.running.Unlock(pageID)

	start := time.Now()
	defer func() { metrics.RecordPublish(err, time.Since(start)) }()

	page, err := s.sites.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	art := s.Render(ctx, page)

	dir := filepath.Join(s.opts.OutDir, page.SiteID)
	res = &PublishResult{
		PageID:      page.ID,
		StaticPath:  filepath.Join(dir, page.Slug+".tsx"),
		ShellPath:   filepath.Join(dir, page.Slug+".html"),
		Diagnostics: strings.Contains(art.Static, transpile.DiagnosticMarker) || strings.Contains(art.Shell, transpile.DiagnosticMarker),
		PublishedAt: time.Now(),
	}
	if err := writeFileAtomic(res.StaticPath, []byte(art.Static)); err != nil {
		return nil, fmt.Errorf("write static markup: %w", err)
	}
	if err := writeFileAtomic(res.ShellPath, []byte(art.Shell)); err != nil {
		return nil, fmt.Errorf("write shell: %w", err)
	}
	if err := s.sites.MarkPublished(page.ID, res.PublishedAt); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"page": page.ID, "slug": page.Slug})
	if res.Diagnostics {
		log.Warn("published with diagnostics")
	} else {
		log.Info("published")
	}
	s.emitter.Emit(ctx, EventPagePublished, res)
	return res, nil
}

// PublishAll publishes every page of siteID concurrently. It returns the
// results of the pages that succeeded and the first error.
func (s *PublishService) PublishAll(ctx context.Context, siteID string) ([]PublishResult, error) {
	pages, err := s.sites.ListPages(siteID)
	if err != nil {
		return nil, err
	}

	results := make([]*PublishResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, p := range pages {
		g.Go(func() error {
			res, err := s.Publish(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("publish %s: %w", p.Slug, err)
			}
			results[i] = res
			return nil
		})
	}
	err = g.Wait()

	out := make([]PublishResult, 0, len(pages))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, err
}

// Running lists the pages currently being published.
func (s *PublishService) Running() []string {
	return s.running.Running()
}

// ── Schedule ───────────────────────────────────────────────

// StartSchedule (re)builds the cron schedule from the pages' publish
// expressions. It returns the number of scheduled pages.
func (s *PublishService) StartSchedule(ctx context.Context) (int, error) {
	s.stopSchedule()

	pages, err := s.sites.ListScheduledPages()
	if err != nil {
		return 0, fmt.Errorf("list scheduled pages: %w", err)
	}
	if len(pages) == 0 {
		return 0, nil
	}

	c := cron.New()
	scheduled := 0
	for _, p := range pages {
		pageID := p.ID
		_, err := c.AddFunc(p.PublishCron, func() {
			if _, err := s.Publish(ctx, pageID); err != nil {
				s.log.WithError(err).WithField("page", pageID).Error("scheduled publish failed")
			}
		})
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"page": p.ID, "expr": p.PublishCron}).Warn("invalid publish schedule")
			continue
		}
		scheduled++
	}
	c.Start()

	s.cronMu.Lock()
	s.cronSched = c
	s.cronMu.Unlock()
	s.log.WithField("pages", scheduled).Info("publish schedule started")
	return scheduled, nil
}

func (s *PublishService) stopSchedule() {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}

// Stop halts the schedule and waits for publishes in flight.
func (s *PublishService) Stop(ctx context.Context) {
	s.stopSchedule()
	s.running.WaitAll(ctx)
}
