package classifier

import (
	"sort"
	"strings"

	"github.com/xampla/insider-bot/internal/config"
)

// Tier numbers. TierUnknown means the symbol is tracked but not classified.
const (
	TierUnknown = 0
	Tier1       = 1
	Tier2       = 2
	Tier3       = 3
	Tier4       = 4
)

// Classifier maps a symbol to its liquidity tier and sector.
type Classifier interface {
	Tier(symbol string) (tier int, known bool)
	Sector(symbol string) string
}

// Static is a table-backed Classifier.
type Static struct {
	tiers   map[string]int
	sectors map[string]string
}

func NewStatic(tiers map[int][]string, sectors map[string]string) *Static {
	s := &Static{
		tiers:   map[string]int{},
		sectors: map[string]string{},
	}
	for tier, symbols := range tiers {
		for _, sym := range symbols {
			sym = normalize(sym)
			if sym == "" {
				continue
			}
			s.tiers[sym] = tier
		}
	}
	for sym, sector := range sectors {
		sym = normalize(sym)
		sector = strings.ToLower(strings.TrimSpace(sector))
		if sym == "" || sector == "" {
			continue
		}
		s.sectors[sym] = sector
	}
	return s
}

// FromConfig builds the classifier from the universe config, falling back to the seed sectors.
func FromConfig(cfg config.UniverseConfig) *Static {
	sectors := DefaultSectors()
	for sym, sector := range cfg.Sectors {
		sectors[normalize(sym)] = sector
	}
	return NewStatic(map[int][]string{
		Tier1: cfg.Tier1,
		Tier2: cfg.Tier2,
		Tier3: cfg.Tier3,
		Tier4: cfg.Tier4,
	}, sectors)
}

func (s *Static) Tier(symbol string) (int, bool) {
	if s == nil {
		return TierUnknown, false
	}
	tier, ok := s.tiers[normalize(symbol)]
	return tier, ok
}

func (s *Static) Sector(symbol string) string {
	if s == nil {
		return ""
	}
	return s.sectors[normalize(symbol)]
}

// Symbols returns the symbols of the given tiers in sorted order.
func (s *Static) Symbols(tiers ...int) []string {
	if s == nil {
		return nil
	}
	want := map[int]bool{}
	for _, t := range tiers {
		want[t] = true
	}
	var out []string
	for sym, tier := range s.tiers {
		if want[tier] {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

func DefaultSectors() map[string]string {
	return map[string]string{
		"AAPL":  "technology",
		"NVDA":  "technology",
		"MSFT":  "technology",
		"GOOGL": "communication",
		"AMZN":  "consumer_discretionary",
		"META":  "communication",
		"TSLA":  "consumer_discretionary",
		"JPM":   "financials",
		"JNJ":   "healthcare",
		"V":     "financials",
		"PG":    "consumer_staples",
		"UNH":   "healthcare",
		"HD":    "consumer_discretionary",
		"MA":    "financials",
		"DIS":   "communication",
		"NFLX":  "communication",
		"CRM":   "technology",
		"DDOG":  "technology",
		"ZS":    "technology",
		"CRWD":  "technology",
		"TEAM":  "technology",
		"ALGN":  "healthcare",
		"ROKU":  "communication",
		"ADBE":  "technology",
		"PFE":   "healthcare",
		"KO":    "consumer_staples",
		"TMO":   "healthcare",
		"ABT":   "healthcare",
		"PLTR":  "technology",
		"RBLX":  "communication",
		"FUBO":  "communication",
		"SOFI":  "financials",
		"OPEN":  "real_estate",
		"COIN":  "financials",
		"HOOD":  "financials",
		"LCID":  "consumer_discretionary",
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
