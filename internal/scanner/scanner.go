package scanner

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/openshare-counts/internal/logger"
	"github.com/samvad-hq/openshare-counts/pkg/counter"
	"github.com/samvad-hq/openshare-counts/pkg/providers"
	"github.com/samvad-hq/openshare-counts/pkg/publishers"
)

const (
	countAttr    = "data-open-share-count"
	countURLAttr = "data-open-share-count-url"
	countSelect  = "[data-open-share-count]:not([data-open-share-node])"
	nodeAttr     = "data-open-share-node"
)

// CountNode is the outcome of one count element.
type CountNode struct {
	Type   string   `json:"type"`
	URL    string   `json:"url"`
	Count  int64    `json:"count"`
	Failed []string `json:"failed,omitempty"`
	Stale  bool     `json:"stale,omitempty"`
}

// Report summarises a page scan.
type Report struct {
	Page    string      `json:"page"`
	Counts  []CountNode `json:"counts"`
	Shares  []ShareNode `json:"shares"`
	Skipped int         `json:"skipped"`
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPublisher sets the destination for counted and loaded events.
func WithPublisher(pub EventPublisher) Option {
	return func(s *Scanner) { s.publisher = pub }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scanner) { s.log = log }
}

// WithCounterOptions passes options to every resolver built by the scanner.
func WithCounterOptions(opts ...counter.Option) Option {
	return func(s *Scanner) { s.counterOpts = append(s.counterOpts, opts...) }
}

// WithShareTypes replaces the accepted share types.
func WithShareTypes(types ...string) Option {
	return func(s *Scanner) {
		s.shareTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.shareTypes[t] = struct{}{}
		}
	}
}

// Scanner initializes open share nodes in HTML documents. Count nodes have
// their text replaced with the resolved count.
type Scanner struct {
	registry    *providers.Registry
	counterOpts []counter.Option
	publisher   EventPublisher
	shareTypes  map[string]struct{}
	log         logger.Logger
}

// New builds a Scanner resolving counts against reg.
func New(reg *providers.Registry, opts ...Option) *Scanner {
	s := &Scanner{registry: reg}
	WithShareTypes(DefaultShareTypes...)(s)
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Ensure(s.log)
	return s
}

// nodeSink keeps the latest count written for a node.
type nodeSink struct {
	mu      sync.Mutex
	count   int64
	written bool
}

func (n *nodeSink) WriteCount(count int64) {
	n.mu.Lock()
	n.count, n.written = count, true
	n.mu.Unlock()
}

type countJob struct {
	sel  *goquery.Selection
	node CountNode
	res  *counter.Resolver
	sink *nodeSink
}

// Scan initializes every uninitialized node in html and returns the rendered
// document. Invalid nodes are logged and left untouched.
func (s *Scanner) Scan(ctx context.Context, page string, html []byte) (Report, []byte, error) {
	if s == nil || s.registry == nil {
		return Report{}, nil, fmt.Errorf("scanner is not initialized")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Report{}, nil, fmt.Errorf("parse html: %w", err)
	}

	report := Report{Page: page}

	doc.Find(shareSelect).Each(func(_ int, sel *goquery.Selection) {
		node, err := s.initShareNode(sel)
		if err != nil {
			report.Skipped++
			s.log.WarnObj("share node skipped", "node_error", map[string]any{
				"page":  page,
				"error": err.Error(),
			})
			return
		}
		report.Shares = append(report.Shares, node)
	})

	var jobs []*countJob
	doc.Find(countSelect).Each(func(_ int, sel *goquery.Selection) {
		job, err := s.countJob(sel)
		if err != nil {
			report.Skipped++
			s.log.WarnObj("count node skipped", "node_error", map[string]any{
				"page":  page,
				"error": err.Error(),
			})
			return
		}
		jobs = append(jobs, job)
	})

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *countJob) {
			defer wg.Done()
			res, err := job.res.Count(ctx, job.sink)
			job.node.Failed = res.FailedIDs()
			job.node.Stale = res.Stale()
			if err != nil {
				s.log.DebugObj("count node unresolved", "count_error", map[string]any{
					"page":  page,
					"type":  job.node.Type,
					"url":   job.node.URL,
					"error": err.Error(),
				})
			}
		}(job)
	}
	wg.Wait()

	for _, job := range jobs {
		job.sel.SetAttr(nodeAttr, job.node.Type)
		if job.sink.written {
			job.node.Count = job.sink.count
			job.sel.SetText(strconv.FormatInt(job.sink.count, 10))
			s.publish(ctx, publishers.NewCountedEvent(job.node.Type, job.node.URL, job.node.Count, job.node.Failed, job.node.Stale))
		}
		report.Counts = append(report.Counts, job.node)
	}

	out, err := doc.Html()
	if err != nil {
		return report, nil, fmt.Errorf("render html: %w", err)
	}

	s.publish(ctx, publishers.NewLoadedEvent(page, len(report.Counts)+len(report.Shares)))
	s.log.InfoObj("page scanned", "scan_result", map[string]any{
		"page":    page,
		"counts":  len(report.Counts),
		"shares":  len(report.Shares),
		"skipped": report.Skipped,
	})
	return report, []byte(out), nil
}

func (s *Scanner) countJob(sel *goquery.Selection) (*countJob, error) {
	typ, _ := sel.Attr(countAttr)
	url, _ := sel.Attr(countURLAttr)
	typ = strings.TrimSpace(typ)

	res, err := counter.New(s.registry, typ, url, append(s.counterOpts, counter.WithLogger(s.log))...)
	if err != nil {
		return nil, fmt.Errorf("count node %q: %w", typ, err)
	}
	return &countJob{
		sel:  sel,
		node: CountNode{Type: typ, URL: strings.TrimSpace(url)},
		res:  res,
		sink: &nodeSink{},
	}, nil
}

func (s *Scanner) publish(ctx context.Context, evt publishers.Event) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.ErrorObj("event publish failed", "publish_error", map[string]any{
			"event_id":   evt.ID,
			"event_type": evt.Type,
			"error":      err.Error(),
		})
	}
}
