package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/2beens/fit45/internal/challenge"
	"github.com/2beens/fit45/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	cacheSize       = 8 * 1024 * 1024
	maxSheetBytes   = 2 * 1024 * 1024
	defaultCacheTTL = 15 * time.Minute
)

type DayContent struct {
	Routine challenge.Routine `json:"routine"`
	Day
	// set when the requested day is past the end of the plan
	Bonus bool `json:"bonus"`
}

// Fetcher downloads CSV exports of workout sheets and caches the parsed plans per URL.
type Fetcher struct {
	httpClient    *http.Client
	cache         *freecache.Cache
	cacheTTL      time.Duration
	defaultSheets map[challenge.Routine]string
}

func NewFetcher(defaultSheets map[challenge.Routine]string, timeout, cacheTTL time.Duration) *Fetcher {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:         freecache.NewCache(cacheSize),
		cacheTTL:      cacheTTL,
		defaultSheets: defaultSheets,
	}
}

func (f *Fetcher) Day(ctx context.Context, routine challenge.Routine, customSheetURL *string, day int) (_ *DayContent, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "plan.day")
	span.SetAttributes(attribute.String("routine", string(routine)), attribute.Int("day", day))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sheetURL, err := f.sheetURL(routine, customSheetURL)
	if err != nil {
		return nil, err
	}

	p, err := f.plan(ctx, sheetURL)
	if err != nil {
		return nil, err
	}

	d, bonus, err := p.Day(day)
	if err != nil {
		return nil, err
	}
	return &DayContent{
		Routine: routine,
		Day:     d,
		Bonus:   bonus,
	}, nil
}

func (f *Fetcher) sheetURL(routine challenge.Routine, customSheetURL *string) (string, error) {
	if routine == challenge.RoutineCustom {
		if customSheetURL == nil || *customSheetURL == "" {
			return "", fmt.Errorf("%w: custom routine without a sheet", ErrUnavailable)
		}
		return *customSheetURL, nil
	}
	sheetURL, ok := f.defaultSheets[routine]
	if !ok || sheetURL == "" {
		return "", fmt.Errorf("%w: no sheet for routine %s", ErrUnavailable, routine)
	}
	return sheetURL, nil
}

func (f *Fetcher) plan(ctx context.Context, sheetURL string) (*Plan, error) {
	cacheKey := []byte(sheetURL)
	if cached, err := f.cache.Get(cacheKey); err == nil {
		var p Plan
		if err := json.Unmarshal(cached, &p); err == nil {
			return &p, nil
		}
		log.Warnf("plan: drop corrupted cache entry for %s", sheetURL)
		f.cache.Del(cacheKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sheetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Errorf("plan: close response body: %s", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: sheet responded with %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSheetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet: %w", ErrUnavailable, err)
	}
	if len(body) > maxSheetBytes {
		return nil, fmt.Errorf("%w: sheet larger than %d bytes", ErrUnavailable, maxSheetBytes)
	}

	p, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(p); err == nil {
		if err := f.cache.Set(cacheKey, encoded, int(f.cacheTTL.Seconds())); err != nil {
			log.Debugf("plan: cache set: %s", err)
		}
	}
	return p, nil
}
