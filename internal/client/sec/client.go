package sec

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"

	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/httpclient"
	"github.com/xampla/insider-bot/internal/models"
)

var ErrNotForm4 = errors.New("document is not a form 4 ownership document")

// SeenFunc reports whether an accession was already processed.
type SeenFunc func(ctx context.Context, accession string) (bool, error)

type Client struct {
	baseURL   string
	dataURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	ciks      map[string]string
	minValue  decimal.Decimal
	seen      SeenFunc
	logger    *zap.Logger
}

// New builds an EDGAR client. EDGAR asks for at most 10 requests per second
// and a descriptive User-Agent.
func New(cfg config.SECConfig, httpClient *http.Client, seen SeenFunc, logger *zap.Logger) *Client {
	rps := cfg.RequestsPerS
	if rps <= 0 || rps > 10 {
		rps = 8
	}
	if httpClient == nil {
		httpClient = httpclient.New(cfg.Timeout)
	}
	ciks := map[string]string{}
	for sym, cik := range cfg.CIKs {
		ciks[strings.ToUpper(strings.TrimSpace(sym))] = strings.TrimSpace(cik)
	}
	minValue := decimal.NewFromInt(50_000)
	if cfg.MinValueUSD > 0 {
		minValue = decimal.NewFromFloat(cfg.MinValueUSD)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		dataURL:   strings.TrimRight(cfg.DataURL, "/"),
		userAgent: cfg.UserAgent,
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		ciks:      ciks,
		minValue:  minValue,
		seen:      seen,
		logger:    logger,
	}
}

// Document is one processed accession and the purchases kept from it.
type Document struct {
	Filing  Filing
	URL     string
	Filings []models.InsiderFiling
}

func (d Document) Record() models.ProcessedDocument {
	return models.ProcessedDocument{
		AccessionNumber: d.Filing.AccessionNumber,
		Symbol:          d.Filing.Symbol,
		URL:             d.URL,
		Transactions:    len(d.Filings),
	}
}

// Fetch returns qualifying purchases for symbols filed in [from, to].
func (c *Client) Fetch(ctx context.Context, symbols []string, from, to time.Time) ([]models.InsiderFiling, error) {
	docs, err := c.Documents(ctx, symbols, from, to)
	var out []models.InsiderFiling
	for _, d := range docs {
		out = append(out, d.Filings...)
	}
	return out, err
}

// Documents walks each symbol's recent Form 4 accessions. Per-symbol and
// per-document failures are logged and skipped; only cancellation is returned.
func (c *Client) Documents(ctx context.Context, symbols []string, from, to time.Time) ([]Document, error) {
	var out []Document
	for _, raw := range symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		cik, ok := c.ciks[symbol]
		if !ok {
			c.warn("sec: no cik for symbol", zap.String("symbol", symbol))
			continue
		}
		refs, err := c.Form4Filings(ctx, symbol, cik, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.warn("sec: list filings failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		for _, ref := range refs {
			if c.seen != nil {
				done, err := c.seen(ctx, ref.AccessionNumber)
				if err == nil && done {
					continue
				}
			}
			doc, err := c.Document(ctx, ref)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				c.warn("sec: form 4 fetch failed", zap.String("symbol", symbol), zap.String("accession", ref.AccessionNumber), zap.Error(err))
				continue
			}
			out = append(out, doc)
		}
	}
	return out, nil
}

// Form4Filings lists Form 4 accessions for one issuer with filing date in [from, to].
func (c *Client) Form4Filings(ctx context.Context, symbol, cik string, from, to time.Time) ([]Filing, error) {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, padCIK(cik))
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	var sub submissions
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	r := sub.Filings.Recent
	lo, hi := from.Format("2006-01-02"), to.Format("2006-01-02")
	var out []Filing
	for i, form := range r.Form {
		if form != "4" || i >= len(r.FilingDate) || i >= len(r.AccessionNumber) {
			continue
		}
		date := r.FilingDate[i]
		if date < lo || date > hi {
			continue
		}
		f := Filing{Symbol: symbol, CIK: cik, AccessionNumber: r.AccessionNumber[i], FilingDate: date}
		if i < len(r.PrimaryDocument) {
			f.PrimaryDocument = r.PrimaryDocument[i]
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FilingDate != out[j].FilingDate {
			return out[i].FilingDate < out[j].FilingDate
		}
		return out[i].AccessionNumber < out[j].AccessionNumber
	})
	return out, nil
}

// Document resolves the raw XML for an accession and parses it.
func (c *Client) Document(ctx context.Context, ref Filing) (Document, error) {
	urls, err := c.xmlCandidates(ctx, ref)
	if err != nil {
		return Document{}, err
	}
	var lastErr error = ErrNotForm4
	for _, u := range urls {
		body, err := c.get(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		filings, err := ParseForm4(body, ref, c.minValue)
		if err != nil {
			lastErr = err
			continue
		}
		return Document{Filing: ref, URL: u, Filings: filings}, nil
	}
	return Document{}, lastErr
}

func (c *Client) xmlCandidates(ctx context.Context, ref Filing) ([]string, error) {
	dir := fmt.Sprintf("%s/Archives/edgar/data/%s/%s", c.baseURL, trimCIK(ref.CIK), strings.ReplaceAll(ref.AccessionNumber, "-", ""))
	var urls []string
	body, err := c.get(ctx, dir+"/index.json")
	if err == nil {
		var idx directoryIndex
		if jerr := json.Unmarshal(body, &idx); jerr == nil {
			for _, it := range idx.Directory.Item {
				if strings.HasSuffix(strings.ToLower(it.Name), ".xml") {
					urls = append(urls, dir+"/"+it.Name)
				}
			}
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(urls) == 0 && ref.PrimaryDocument != "" {
		// primaryDocument often points at the xsl-rendered copy; the raw XML sits beside it.
		urls = append(urls, dir+"/"+path.Base(ref.PrimaryDocument))
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no xml documents for %s: %v", ref.AccessionNumber, err)
	}
	return urls, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, application/xml, text/xml")
	return httpclient.Do(c.http, req)
}

func (c *Client) warn(msg string, fields ...zap.Field) {
	if c.logger != nil {
		c.logger.Warn(msg, fields...)
	}
}

// ParseForm4 keeps open-market purchases whose value is at least minValue.
func ParseForm4(data []byte, ref Filing, minValue decimal.Decimal) ([]models.InsiderFiling, error) {
	var doc ownershipDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotForm4, err)
	}
	if len(doc.Owners) == 0 {
		return nil, fmt.Errorf("%w: no reporting owner", ErrNotForm4)
	}
	owner := doc.Owners[0]
	name := strings.Join(strings.Fields(owner.ID.Name), " ")
	title := ownerTitle(owner.Relationship.OfficerTitle, owner.Relationship.IsDirector, owner.Relationship.IsOfficer, owner.Relationship.IsTenPercentOwner, owner.Relationship.OtherText)

	filingDate, _ := time.Parse("2006-01-02", ref.FilingDate)
	var out []models.InsiderFiling
	for i, tx := range doc.Transactions {
		code := strings.ToUpper(strings.TrimSpace(tx.Coding.Code))
		if code != models.TransactionPurchase {
			continue
		}
		txDate, err := parseDate(tx.Date.Value)
		if err != nil {
			continue
		}
		shares, err := parseNumber(tx.Amounts.Shares.Value)
		if err != nil {
			continue
		}
		price, err := parseNumber(tx.Amounts.Price.Value)
		if err != nil {
			continue
		}
		if shares.Mul(price).LessThan(minValue) {
			continue
		}
		owned, _ := parseNumber(tx.Post.SharesOwned.Value)
		raw, _ := json.Marshal(map[string]any{
			"source":    "edgar_form4",
			"accession": ref.AccessionNumber,
			"index":     i,
			"owner_cik": strings.TrimSpace(owner.ID.CIK),
		})
		f, err := models.NewInsiderFiling(models.FilingInput{
			FilingID:         fmt.Sprintf("%s-%d", ref.AccessionNumber, i),
			Symbol:           ref.Symbol,
			CompanyName:      strings.TrimSpace(doc.Issuer.Name),
			CompanyCIK:       ref.CIK,
			InsiderName:      name,
			InsiderTitle:     title,
			TransactionDate:  txDate,
			TransactionCode:  code,
			Shares:           shares,
			PricePerShare:    price.Round(2),
			OwnershipType:    strings.TrimSpace(tx.Nature.DirectOrIndirect.Value),
			SharesOwnedAfter: owned,
			FilingDate:       filingDate,
			AccessionNumber:  ref.AccessionNumber,
			Raw:              datatypes.JSON(raw),
		})
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func ownerTitle(officerTitle, isDirector, isOfficer, isTenPct, other string) string {
	if t := strings.TrimSpace(officerTitle); t != "" {
		return t
	}
	switch {
	case truthy(isDirector):
		return "Director"
	case truthy(isOfficer):
		return "Officer"
	case truthy(isTenPct):
		return "10% Owner"
	case strings.TrimSpace(other) != "":
		return strings.TrimSpace(other)
	}
	return ""
}

func truthy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true"
}

func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, errors.New("empty number")
	}
	return decimal.NewFromString(s)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

func padCIK(cik string) string {
	cik = trimCIK(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

func trimCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	if cik == "" {
		return "0"
	}
	return cik
}
