package sec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/models"
)

const form4XML = `<?xml version="1.0"?>
<ownershipDocument>
  <issuer>
    <issuerCik>0000320193</issuerCik>
    <issuerName>Apple Inc.</issuerName>
    <issuerTradingSymbol>AAPL</issuerTradingSymbol>
  </issuer>
  <reportingOwner>
    <reportingOwnerId>
      <rptOwnerCik>0001111111</rptOwnerCik>
      <rptOwnerName>Roe  Jane</rptOwnerName>
    </reportingOwnerId>
    <reportingOwnerRelationship>
      <isDirector>0</isDirector>
      <isOfficer>1</isOfficer>
      <officerTitle>Chief Financial Officer</officerTitle>
    </reportingOwnerRelationship>
  </reportingOwner>
  <nonDerivativeTable>
    <nonDerivativeTransaction>
      <transactionDate><value>2026-03-02</value></transactionDate>
      <transactionCoding><transactionFormType>4</transactionFormType><transactionCode>P</transactionCode></transactionCoding>
      <transactionAmounts>
        <transactionShares><value>2,000</value></transactionShares>
        <transactionPricePerShare><value>50.004</value></transactionPricePerShare>
      </transactionAmounts>
      <postTransactionAmounts><sharesOwnedFollowingTransaction><value>12000</value></sharesOwnedFollowingTransaction></postTransactionAmounts>
      <ownershipNature><directOrIndirectOwnership><value>I</value></directOrIndirectOwnership></ownershipNature>
    </nonDerivativeTransaction>
    <nonDerivativeTransaction>
      <transactionDate><value>2026-03-02</value></transactionDate>
      <transactionCoding><transactionCode>S</transactionCode></transactionCoding>
      <transactionAmounts>
        <transactionShares><value>5000</value></transactionShares>
        <transactionPricePerShare><value>51</value></transactionPricePerShare>
      </transactionAmounts>
      <ownershipNature><directOrIndirectOwnership><value>D</value></directOrIndirectOwnership></ownershipNature>
    </nonDerivativeTransaction>
    <nonDerivativeTransaction>
      <transactionDate><value>2026-03-02</value></transactionDate>
      <transactionCoding><transactionCode>P</transactionCode></transactionCoding>
      <transactionAmounts>
        <transactionShares><value>100</value></transactionShares>
        <transactionPricePerShare><value>10</value></transactionPricePerShare>
      </transactionAmounts>
      <ownershipNature><directOrIndirectOwnership><value>D</value></directOrIndirectOwnership></ownershipNature>
    </nonDerivativeTransaction>
  </nonDerivativeTable>
</ownershipDocument>`

const submissionsJSON = `{
  "cik": "320193",
  "name": "Apple Inc.",
  "filings": {"recent": {
    "accessionNumber": ["0000320193-26-000010", "0000320193-26-000009", "0000320193-26-000001"],
    "filingDate":      ["2026-03-04", "2026-03-03", "2026-01-05"],
    "form":            ["4", "8-K", "4"],
    "primaryDocument": ["xslF345X05/wk-form4_1.xml", "a8k.htm", "xslF345X05/wk-form4_0.xml"]
  }}
}`

const indexJSON = `{"directory": {"name": "/Archives/edgar/data/320193/000032019326000010", "item": [
  {"name": "0000320193-26-000010-index.htm", "type": "text.gif"},
  {"name": "wk-form4_1.xml", "type": "text.gif"}
]}}`

func newServer(t *testing.T, hits map[string]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "insider-bot test@example.com" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		hits[r.URL.Path]++
		switch r.URL.Path {
		case "/submissions/CIK0000320193.json":
			_, _ = w.Write([]byte(submissionsJSON))
		case "/Archives/edgar/data/320193/000032019326000010/index.json":
			_, _ = w.Write([]byte(indexJSON))
		case "/Archives/edgar/data/320193/000032019326000010/wk-form4_1.xml":
			_, _ = w.Write([]byte(form4XML))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newClient(url string, seen SeenFunc) *Client {
	return New(config.SECConfig{
		BaseURL:      url,
		DataURL:      url,
		UserAgent:    "insider-bot test@example.com",
		Timeout:      5 * time.Second,
		RequestsPerS: 10,
		MinValueUSD:  50_000,
		CIKs:         map[string]string{"aapl": "0000320193"},
	}, nil, seen, nil)
}

func TestFetchParsesPurchasesAboveMinimum(t *testing.T) {
	hits := map[string]int{}
	srv := newServer(t, hits)
	defer srv.Close()

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	docs, err := newClient(srv.URL, nil).Documents(context.Background(), []string{"AAPL", "ZZZZ"}, from, to)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs=%d want=1", len(docs))
	}
	if len(docs[0].Filings) != 1 {
		t.Fatalf("filings=%d want=1", len(docs[0].Filings))
	}
	f := docs[0].Filings[0]
	if f.FilingID != "0000320193-26-000010-0" || f.Symbol != "AAPL" {
		t.Fatalf("filing=%+v", f)
	}
	if f.InsiderName != "Roe Jane" || f.InsiderTitle != "Chief Financial Officer" {
		t.Fatalf("insider=%q title=%q", f.InsiderName, f.InsiderTitle)
	}
	if f.OwnershipType != models.OwnershipIndirect || !f.TotalValue.Equal(decimal.NewFromInt(100_000)) {
		t.Fatalf("ownership=%s value=%s", f.OwnershipType, f.TotalValue)
	}
	if !f.FilingDate.Equal(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("filing date=%v", f.FilingDate)
	}
	if rec := docs[0].Record(); rec.AccessionNumber != "0000320193-26-000010" || rec.Transactions != 1 {
		t.Fatalf("record=%+v", rec)
	}
	if hits["/Archives/edgar/data/320193/000032019326000001/index.json"] != 0 {
		t.Fatalf("filing outside the window was fetched")
	}
}

func TestFetchSkipsProcessedAccessions(t *testing.T) {
	hits := map[string]int{}
	srv := newServer(t, hits)
	defer srv.Close()

	seen := func(ctx context.Context, acc string) (bool, error) { return acc == "0000320193-26-000010", nil }
	out, err := newClient(srv.URL, seen).Fetch(context.Background(), []string{"AAPL"},
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(out) != 0 || hits["/Archives/edgar/data/320193/000032019326000010/index.json"] != 0 {
		t.Fatalf("out=%d hits=%v want processed accession skipped", len(out), hits)
	}
}

func TestParseForm4RejectsOtherXML(t *testing.T) {
	_, err := ParseForm4([]byte(`<informationTable></informationTable>`), Filing{}, decimal.Zero)
	if !errors.Is(err, ErrNotForm4) {
		t.Fatalf("err=%v want ErrNotForm4", err)
	}
}

func TestOwnerTitleFallbacks(t *testing.T) {
	if got := ownerTitle("", "1", "0", "0", ""); got != "Director" {
		t.Fatalf("got=%q want Director", got)
	}
	if got := ownerTitle("", "false", "0", "true", ""); got != "10% Owner" {
		t.Fatalf("got=%q want 10%% Owner", got)
	}
	if got := padCIK("320193"); got != "0000320193" {
		t.Fatalf("pad=%q", got)
	}
}
