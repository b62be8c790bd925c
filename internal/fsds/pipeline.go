// Package fsds retrieves financial statements from the SEC Financial
// Statement Data Sets: quarterly zip archives of every XBRL filing's
// submissions (sub.txt), numeric facts (num.txt) and tag definitions
// (tag.txt).
//
// Archives: https://www.sec.gov/dera/data/financial-statement-data-sets
// Fair access: every request carries a User-Agent with a contact address
// and requests are spaced by a shared rate limiter.
package fsds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/secfacts/internal/config"
	"github.com/seenimoa/secfacts/internal/infra"
	"github.com/seenimoa/secfacts/internal/logging"
	"github.com/seenimoa/secfacts/pkg/models"
)

// FilerResolver maps a ticker to a filer.
type FilerResolver interface {
	Resolve(ctx context.Context, ticker string) (models.FilerIdentity, error)
}

// DatasetFetcher returns the archive for a period.
type DatasetFetcher interface {
	Fetch(ctx context.Context, p models.DatasetPeriod) (*models.CachedDataset, error)
}

// forgetter is implemented by fetchers that can drop a bad archive.
type forgetter interface {
	Forget(p models.DatasetPeriod)
}

// batchFetcher is implemented by fetchers that can download in parallel.
type batchFetcher interface {
	FetchAll(ctx context.Context, periods []models.DatasetPeriod, limit int) ([]FetchResult, error)
}

// Options controls a Service.
type Options struct {
	FailurePolicy       string // config.FailFast or config.BestEffort
	PrefetchConcurrency int    // parallel downloads for annual plans; <=1 disables
	IncludeDimensional  bool
	RequestTimeout      time.Duration // zero means no deadline
}

// Request is one statement query.
type Request struct {
	Ticker    string
	Frequency models.Frequency
	Years     int
	AsOf      time.Time // zero means now
	RequestID string    // empty means generate one
}

// PeriodIssue records why a planned period contributed nothing.
type PeriodIssue struct {
	Period string `json:"period"`
	Reason string `json:"reason"`
}

// Diagnostics describes how a result was produced.
type Diagnostics struct {
	RequestID     string        `json:"request_id"`
	AsOf          time.Time     `json:"as_of"`
	Planned       int           `json:"planned"`
	Read          int           `json:"read"`
	Skipped       []PeriodIssue `json:"skipped,omitempty"`
	Failed        []PeriodIssue `json:"failed,omitempty"`
	Dropped       DropCounts    `json:"dropped"`
	Filings       int           `json:"filings"`
	Facts         int           `json:"facts"`
	FiscalPeriods int           `json:"fiscal_periods"`
	QuarterEnds   int           `json:"quarter_ends"`
	StoppedEarly  bool          `json:"stopped_early"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Result is the outcome of a statement query.
type Result struct {
	Filer       models.FilerIdentity   `json:"filer"`
	Frequency   models.Frequency       `json:"frequency"`
	Years       int                    `json:"years"`
	Statements  models.Statements      `json:"statements"`
	Periods     []models.DatasetPeriod `json:"periods"`
	Diagnostics Diagnostics            `json:"diagnostics"`
}

// Service runs the statement pipeline: resolve, plan, fetch, parse,
// extract and aggregate.
type Service struct {
	resolver FilerResolver
	fetcher  DatasetFetcher
	catalog  *Catalog
	taxonomy *Taxonomy
	opts     Options
	clock    infra.Clock
	log      logrus.FieldLogger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithCatalog clamps asOf to the latest published archive.
func WithCatalog(c *Catalog) ServiceOption {
	return func(s *Service) { s.catalog = c }
}

// WithClock sets the clock used for the default asOf.
func WithClock(c infra.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// NewService wires a Service. A nil taxonomy means DefaultTaxonomy.
func NewService(resolver FilerResolver, fetcher DatasetFetcher, taxonomy *Taxonomy, opts Options, sopts ...ServiceOption) *Service {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.FailFast
	}
	s := &Service{
		resolver: resolver,
		fetcher:  fetcher,
		taxonomy: taxonomy,
		opts:     opts,
		clock:    infra.SystemClock{},
		log:      logrus.StandardLogger(),
	}
	for _, o := range sopts {
		o(s)
	}
	return s
}

// Taxonomy returns the tag table in use.
func (s *Service) Taxonomy() *Taxonomy { return s.taxonomy }

// GetFinancialStatements returns the three statements for ticker over the
// last years years, as of now.
func (s *Service) GetFinancialStatements(ctx context.Context, ticker string, freq models.Frequency, years int) (*Result, error) {
	return s.Run(ctx, Request{Ticker: ticker, Frequency: freq, Years: years})
}

// Run executes one request. Errors:
//   - ErrInvalidYears for a window outside 1..5
//   - *TickerNotFoundError (ErrTickerNotFound) when the ticker is unknown
//   - *FetchError when an archive fails under the fail_fast policy;
//     facts already collected are discarded
//   - *NoDataError (ErrNoDataFound) when nothing matched; the returned
//     Result is non-nil and carries three empty tables
//
// A period whose archive is not published (HTTP 404) is skipped under both
// policies. Cancellation is checked between periods.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.Years < MinYears || req.Years > MaxYears {
		return nil, ErrInvalidYears
	}
	if req.Frequency != models.Quarterly {
		req.Frequency = models.Annual
	}
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	diag := Diagnostics{RequestID: req.RequestID}
	if diag.RequestID == "" {
		diag.RequestID = uuid.NewString()
	}
	log := s.log.WithFields(logrus.Fields{
		logging.FieldRequestID: diag.RequestID,
		logging.FieldTicker:    req.Ticker,
		logging.FieldComponent: "pipeline",
	})

	filer, err := s.resolver.Resolve(ctx, req.Ticker)
	if err != nil {
		log.WithError(err).Info("ticker not resolved")
		return nil, err
	}
	log = log.WithField("cik", filer.PaddedCIK())

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	if s.catalog != nil {
		clamped, err := s.catalog.ClampAsOf(ctx, asOf)
		if err != nil {
			log.WithError(err).Warn("dataset catalog unavailable, planning from requested date")
		}
		asOf = clamped
	}
	diag.AsOf = asOf

	periods, err := Plan(req.Frequency, req.Years, asOf)
	if err != nil {
		return nil, err
	}
	diag.Planned = len(periods)

	result := &Result{
		Filer:      filer,
		Frequency:  req.Frequency,
		Years:      req.Years,
		Statements: models.NewStatements(),
		Periods:    periods,
	}
	form := req.Frequency.FormType()
	log.WithFields(logrus.Fields{"form": form, "periods": len(periods), "as_of": asOf.Format("2006-01-02")}).
		Info("statement request planned")

	prefetched := s.prefetch(ctx, req.Frequency, periods)

	acc := NewAccumulator()
	var firstErr error
	for i, p := range periods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plog := log.WithField(logging.FieldPeriod, p.String())

		var ds *models.CachedDataset
		if prefetched != nil {
			ds, err = prefetched[i].Dataset, prefetched[i].Err
		} else {
			ds, err = s.fetcher.Fetch(ctx, p)
		}
		var parsed *ParsedDataset
		if err == nil {
			parsed, err = ParseForFiler(ds.Raw, filer.FilerID)
			if err != nil {
				// A broken table would otherwise be served from cache until it expires.
				if fg, ok := s.fetcher.(forgetter); ok {
					fg.Forget(p)
				}
				err = &FetchError{Period: p, Err: err}
			}
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var fe *FetchError
			if errors.As(err, &fe) && fe.Unavailable() {
				plog.Info("archive not published, skipping")
				diag.Skipped = append(diag.Skipped, PeriodIssue{Period: p.String(), Reason: "not published"})
				continue
			}
			if s.opts.FailurePolicy != config.BestEffort {
				plog.WithError(err).Error("dataset failed, aborting request")
				return nil, err
			}
			plog.WithError(err).Warn("dataset failed, continuing")
			diag.Failed = append(diag.Failed, PeriodIssue{Period: p.String(), Reason: err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		diag.Read++
		diag.Dropped.Sub += parsed.Dropped.Sub
		diag.Dropped.Num += parsed.Dropped.Num
		diag.Dropped.Tag += parsed.Dropped.Tag

		facts := Extract(filer, form, s.taxonomy, parsed.Submissions, parsed.Facts, parsed.Tags,
			ExtractOptions{IncludeDimensional: s.opts.IncludeDimensional})
		filings := CountFilings(parsed.Submissions, filer.FilerID, form)
		acc.AddFilings(filings)
		acc.Add(facts)
		plog.WithFields(logrus.Fields{"filings": filings, "facts": len(facts), "dropped": parsed.Dropped.Total()}).
			Debug("dataset extracted")

		if req.Frequency == models.Quarterly && acc.Quarters() >= req.Years*4 {
			diag.StoppedEarly = i < len(periods)-1
			break
		}
	}

	result.Statements = Aggregate(acc.Facts(), s.taxonomy)
	diag.Filings = acc.Filings()
	diag.Facts = result.Statements.Len()
	diag.FiscalPeriods = acc.Periods()
	diag.QuarterEnds = acc.Quarters()
	diag.Elapsed = time.Since(start)
	result.Diagnostics = diag

	if result.Statements.Empty() {
		if diag.Read == 0 && firstErr != nil {
			return nil, firstErr
		}
		nd := &NoDataError{Filer: filer, Form: form}
		switch {
		case diag.Read == 0:
			nd.Hint = HintNoPeriods
		case acc.Filings() == 0:
			nd.Hint = HintNoFilings
		default:
			nd.Hint = HintTagMismatch
		}
		log.WithField("hint", nd.Hint).Info("no data found")
		return result, nd
	}

	log.WithFields(logrus.Fields{
		"balance_sheet":    len(result.Statements.BalanceSheet),
		"income_statement": len(result.Statements.IncomeStatement),
		"cash_flow":        len(result.Statements.CashFlow),
		"elapsed":          diag.Elapsed.Round(time.Millisecond),
	}).Info("statements built")
	return result, nil
}

// prefetch downloads an annual plan in parallel. Quarterly plans are read
// one at a time so the early stop saves downloads.
func (s *Service) prefetch(ctx context.Context, freq models.Frequency, periods []models.DatasetPeriod) []FetchResult {
	if freq != models.Annual || s.opts.PrefetchConcurrency <= 1 || len(periods) < 2 {
		return nil
	}
	bf, ok := s.fetcher.(batchFetcher)
	if !ok {
		return nil
	}
	results, err := bf.FetchAll(ctx, periods, s.opts.PrefetchConcurrency)
	if err != nil {
		// The loop reports the cancellation.
		return nil
	}
	return results
}

// Stack is the set of components built from configuration.
type Stack struct {
	HTTP     *infra.HTTPClient
	Resolver *Resolver
	Fetcher  *Fetcher
	Catalog  *Catalog
	Taxonomy *Taxonomy
	Service  *Service
}

// Build wires every pipeline component from cfg. All SEC traffic shares one
// HTTP client and therefore one rate limiter.
func Build(cfg *config.Config, log logrus.FieldLogger) (*Stack, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	clock := infra.SystemClock{}

	client := infra.NewHTTPClient(
		infra.WithTimeout(cfg.SEC.Timeout()),
		infra.WithRateLimiter(infra.NewRateLimiter(cfg.SEC.MinInterval())),
		infra.WithHeader("User-Agent", cfg.SEC.Identity()),
		infra.WithLogger(log),
	)

	taxonomy := DefaultTaxonomy()
	if cfg.Pipeline.TagsFile != "" {
		t, err := LoadTaxonomyFile(cfg.Pipeline.TagsFile)
		if err != nil {
			return nil, err
		}
		taxonomy = t
	}

	fopts := []FetcherOption{WithFetcherLogger(log)}
	if cfg.Cache.Dir != "" {
		store, err := NewDiskStore(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		fopts = append(fopts, WithDiskStore(store))
	}

	st := &Stack{HTTP: client, Taxonomy: taxonomy}
	st.Resolver = NewResolver(client, cfg.SEC.TickersURL, cfg.Cache.TickerTTL, clock, log)
	st.Fetcher = NewFetcher(client, cfg.SEC.DatasetsURL, NewDatasetCache(cfg.Cache.DatasetTTL, clock), clock, fopts...)

	sopts := []ServiceOption{WithLogger(log), WithClock(clock)}
	if cfg.SEC.CatalogURL != "" {
		st.Catalog = NewCatalog(client, cfg.SEC.CatalogURL, cfg.Cache.TickerTTL, clock)
		sopts = append(sopts, WithCatalog(st.Catalog))
	}
	st.Service = NewService(st.Resolver, st.Fetcher, taxonomy, Options{
		FailurePolicy:       cfg.Pipeline.FailurePolicy,
		PrefetchConcurrency: cfg.Pipeline.PrefetchConcurrency,
		IncludeDimensional:  cfg.Pipeline.IncludeDimensional,
		RequestTimeout:      cfg.Pipeline.RequestTimeout(),
	}, sopts...)
	return st, nil
}

// String summarises a result for logs and the CLI footer.
func (r *Result) String() string {
	return fmt.Sprintf("%s (%s) %s: %d balance sheet, %d income statement, %d cash flow rows from %d/%d datasets",
		r.Filer.Ticker, r.Filer.PaddedCIK(), r.Frequency,
		len(r.Statements.BalanceSheet), len(r.Statements.IncomeStatement), len(r.Statements.CashFlow),
		r.Diagnostics.Read, r.Diagnostics.Planned)
}
