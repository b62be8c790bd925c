package fsds

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/secfacts/internal/infra"
	"github.com/seenimoa/secfacts/internal/logging"
	"github.com/seenimoa/secfacts/pkg/models"
)

// Column layouts as published by SEC.
const (
	subHeader = "adsh\tcik\tname\tsic\tcountryba\tform\tperiod\tfy\tfp\tfiled"
	numHeader = "adsh\ttag\tversion\tddate\tqtrs\tuom\tsegments\tcoreg\tvalue\tfootnote"
	tagHeader = "tag\tversion\tcustom\tabstract\tdatatype\tiord\tcrdr\ttlabel\tdoc"
)

const (
	appleCIK     = 320193
	microsoftCIK = 789019
)

var testNow = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

func rows(header string, lines ...string) []byte {
	return []byte(strings.Join(append([]string{header}, lines...), "\n") + "\n")
}

// subRow builds a sub.txt line.
func subRow(adsh string, cik int, name, form, period, fy, fp, filed string) string {
	return strings.Join([]string{adsh, strconv.Itoa(cik), name, "3571", "US", form, period, fy, fp, filed}, "\t")
}

// numRow builds a num.txt line with no segments or co-registrant.
func numRow(adsh, tag, ddate, qtrs, value string) string {
	return strings.Join([]string{adsh, tag, "us-gaap/2023", ddate, qtrs, "USD", "", "", value, ""}, "\t")
}

func tagRow(tag, label string) string {
	return strings.Join([]string{tag, "us-gaap/2023", "0", "0", "monetary", "I", "D", label, label + " documentation"}, "\t")
}

// buildArchive zips the three tables, plus a pre.txt member to be ignored.
func buildArchive(t *testing.T, sub, num, tag []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range []struct {
		name string
		data []byte
	}{
		{"sub.txt", sub}, {"num.txt", num}, {"tag.txt", tag}, {"pre.txt", []byte("adsh\treport\n")},
	} {
		if m.data == nil {
			continue
		}
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = w.Write(m.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// appleArchive is a dataset with one Apple 10-K reporting Assets = 100 and
// one Microsoft 10-K that must never leak into Apple's results.
func appleArchive(t *testing.T) []byte {
	return buildArchive(t,
		rows(subHeader,
			subRow("0000320193-23-000106", appleCIK, "APPLE INC", "10-K", "20230930", "2023", "FY", "20231103"),
			subRow("0000789019-23-000095", microsoftCIK, "MICROSOFT CORP", "10-K", "20230630", "2023", "FY", "20230727"),
		),
		rows(numHeader,
			numRow("0000320193-23-000106", "Assets", "20230930", "0", "100"),
			numRow("0000789019-23-000095", "Assets", "20230630", "0", "999"),
		),
		rows(tagHeader, tagRow("Assets", "Assets")),
	)
}

const tickersJSON = `{
 "0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
 "1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"},
 "2": {"cik_str": 1067983, "ticker": "BRK-B", "title": "BERKSHIRE HATHAWAY INC"},
 "3": {"cik_str": 1067983, "ticker": "BRK-A", "title": "BERKSHIRE HATHAWAY INC"},
 "4": {"cik_str": 1000001, "ticker": "NEWCO", "title": "New Co"}
}`

// fakeSEC serves company_tickers.json and archives under /dera/<period>.zip.
type fakeSEC struct {
	*httptest.Server

	mu       sync.Mutex
	archives map[string][]byte // period -> zip
	status   map[string]int    // period -> forced status
	hits     map[string]int    // path -> count
	agents   []string
	delay    time.Duration
}

func newFakeSEC(t *testing.T) *fakeSEC {
	t.Helper()
	f := &fakeSEC{
		archives: make(map[string][]byte),
		status:   make(map[string]int),
		hits:     make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSEC) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.agents = append(f.agents, r.Header.Get("User-Agent"))
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	if r.URL.Path == "/files/company_tickers.json" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tickersJSON))
		return
	}
	period := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/dera/"), ".zip")

	f.mu.Lock()
	status, forced := f.status[period]
	data, ok := f.archives[period]
	f.mu.Unlock()
	switch {
	case forced:
		w.WriteHeader(status)
	case ok:
		w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSEC) setArchive(period string, data []byte) {
	f.mu.Lock()
	f.archives[period] = data
	f.mu.Unlock()
}

func (f *fakeSEC) setStatus(period string, status int) {
	f.mu.Lock()
	f.status[period] = status
	f.mu.Unlock()
}

func (f *fakeSEC) setDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

func (f *fakeSEC) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeSEC) tickersURL() string  { return f.URL + "/files/company_tickers.json" }
func (f *fakeSEC) datasetsURL() string { return f.URL + "/dera" }

func (f *fakeSEC) client() *infra.HTTPClient {
	return infra.NewHTTPClient(
		infra.WithHeader("User-Agent", "secfacts-test test@example.org"),
		infra.WithLogger(quietLog()),
	)
}

func quietLog() logrus.FieldLogger { return logging.Discard() }

func (f *fakeSEC) resolver(clock infra.Clock) *Resolver {
	return NewResolver(f.client(), f.tickersURL(), time.Hour, clock, quietLog())
}

func (f *fakeSEC) fetcher(clock infra.Clock, opts ...FetcherOption) *Fetcher {
	opts = append([]FetcherOption{WithFetcherLogger(quietLog())}, opts...)
	return NewFetcher(f.client(), f.datasetsURL(), NewDatasetCache(time.Hour, clock), clock, opts...)
}

func period(s string) models.DatasetPeriod {
	p, err := models.ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fptr(v float64) *float64 { return &v }
