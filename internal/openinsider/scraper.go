package openinsider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"insider-trade-bot-go/internal/config"
	"insider-trade-bot-go/internal/models"
)

// ScraperInterface defines the insider-data source consumed by the control
// surface.
type ScraperInterface interface {
	Scrape(ctx context.Context, pageURL string) (models.InsiderData, error)
}

// Scraper fetches a filtered OpenInsider results page and parses the
// transaction table into structured records.
type Scraper struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Scraper implements the interface
var _ ScraperInterface = (*Scraper)(nil)

// NewScraper creates a new OpenInsider scraper.
func NewScraper(cfg *config.Scraper, logger *zap.Logger) *Scraper {
	client := resty.New().SetTimeout(30 * time.Second)

	// OpenInsider is a small site; keep the request rate polite.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Scraper{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// Scrape downloads the page and returns transactions grouped by ticker, in
// page order. A ticker may appear in many rows; rows that cannot be parsed
// are skipped without aborting the page.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (models.InsiderData, error) {
	s.logger.Info("Scraping insider data", zap.String("url", pageURL))

	resp, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch insider data: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse insider page: %w", err)
	}

	table := doc.Find("table.tinytable").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("insider trading table not found on page")
	}

	data := make(models.InsiderData)
	rows := table.Find("tbody tr")
	s.logger.Info("Found rows in insider table", zap.Int("count", rows.Length()))

	rows.Each(func(i int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() < 12 {
			return
		}

		ticker := strings.TrimSpace(cols.Eq(2).Text())
		if ticker == "" {
			return
		}

		price, err1 := parseNumber(cols.Eq(7).Text())
		qty, err2 := parseNumber(cols.Eq(8).Text())
		ownChange, err3 := parseNumber(cols.Eq(9).Text())
		totalValue, err4 := parseNumber(cols.Eq(10).Text())
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			s.logger.Debug("Skipping unparsable insider row",
				zap.Int("row", i), zap.String("ticker", ticker))
			return
		}

		data[ticker] = append(data[ticker], models.InsiderTransaction{
			CompanyName: strings.TrimSpace(cols.Eq(3).Text()),
			InsiderName: strings.TrimSpace(cols.Eq(4).Text()),
			Title:       strings.TrimSpace(cols.Eq(5).Text()),
			TradeType:   strings.TrimSpace(cols.Eq(6).Text()),
			Price:       price,
			Quantity:    int64(qty),
			OwnChange:   ownChange,
			TotalValue:  totalValue,
		})
	})

	s.logger.Info("Scraped insider data", zap.Int("tickers", len(data)))
	return data, nil
}

// fetch executes the GET with rate limiting and retry on 429/5xx, backing
// off exponentially between attempts.
func (s *Scraper) fetch(ctx context.Context, pageURL string) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, err = s.client.R().SetContext(ctx).Get(pageURL)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := true
		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			shouldRetry = statusCode == http.StatusTooManyRequests || statusCode >= 500
		}
		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s", resp.Status())
		}

		retryAfter := time.Duration(math.Pow(2, float64(i))) * time.Second
		s.logger.Warn("Insider page fetch failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// parseNumber strips the $, %, + and thousands-separator decoration
// OpenInsider puts on its numeric cells.
func parseNumber(text string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", "%", "", "+", "").Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return 0, fmt.Errorf("empty numeric cell")
	}
	return strconv.ParseFloat(cleaned, 64)
}
