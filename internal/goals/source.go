package goals

import (
	"context"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const BundledSource = "goals.json"

type SourceType string

const (
	SourceLocal  SourceType = "local"
	SourceSheets SourceType = "sheets"
)

var ErrFetch = errors.New("goal source fetch failed")

//go:embed data/goals.json
var bundledJSON []byte

// Bundled returns the catalog compiled into the binary.
func Bundled() (*Catalog, error) {
	var list []Goal
	if err := json.Unmarshal(bundledJSON, &list); err != nil {
		return nil, fmt.Errorf("decode bundled goals: %w", err)
	}
	return NewCatalog(list)
}

// ParseCSV reads a header row followed by goal rows. Columns are matched by
// name (id, text, difficulty, weight); the separator is ';' only when the
// input has semicolons and no commas.
func ParseCSV(r io.Reader) ([]Goal, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(raw)

	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if strings.Contains(text, ";") && !strings.Contains(text, ",") {
		cr.Comma = ';'
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := map[string]int{}
	for i, h := range records[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	out := make([]Goal, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		g := Goal{
			ID:   field(rec, "id"),
			Text: norm.NFC.String(field(rec, "text")),
		}
		if d := field(rec, "difficulty"); d != "" {
			if g.Difficulty, err = strconv.Atoi(d); err != nil {
				return nil, fmt.Errorf("%w: %q difficulty %q", ErrInvalidGoal, g.ID, d)
			}
		}
		if w := field(rec, "weight"); w != "" {
			f, err := strconv.ParseFloat(w, 64)
			if err != nil || math.IsNaN(f) || f < 0 || f > MaxWeight {
				return nil, fmt.Errorf("%w: %q weight %q", ErrInvalidGoal, g.ID, w)
			}
			g.Weight = int(f)
		}
		out = append(out, g)
	}
	return out, nil
}

// Fetcher loads a CSV goal list over HTTP.
type Fetcher struct {
	Client *http.Client
	Logger *zap.Logger
}

func NewFetcher(logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}
	list, err := ParseCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	cat, err := NewCatalog(list)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return cat, nil
}

// Resolved is the outcome of loading a goal source.
type Resolved struct {
	Catalog  *Catalog
	Source   string
	Type     SourceType
	Fallback bool
}

// Resolve loads the requested source. A failed remote load falls back to the
// bundled catalog and reports Fallback instead of an error.
func (f *Fetcher) Resolve(ctx context.Context, typ SourceType, url string) (Resolved, error) {
	if typ == SourceSheets && url != "" {
		cat, err := f.Fetch(ctx, url)
		if err == nil {
			return Resolved{Catalog: cat, Source: url, Type: SourceSheets}, nil
		}
		if f.Logger != nil {
			f.Logger.Warn("remote goals unavailable, using bundled",
				zap.String("url", url), zap.Error(err))
		}
		cat, berr := Bundled()
		if berr != nil {
			return Resolved{}, berr
		}
		return Resolved{Catalog: cat, Source: BundledSource, Type: SourceLocal, Fallback: true}, nil
	}

	cat, err := Bundled()
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Catalog: cat, Source: BundledSource, Type: SourceLocal}, nil
}
