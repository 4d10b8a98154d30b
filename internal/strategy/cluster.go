package strategy

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/xampla/insider-bot/internal/models"
)

type PurchaseLister interface {
	ListPurchasesBySymbolDate(ctx context.Context, symbol string, date time.Time) ([]models.InsiderFiling, error)
}

// Cluster is the set of distinct insiders buying one symbol on one transaction date.
type Cluster struct {
	Symbol   string
	Date     time.Time
	Insiders []string
}

func (c Cluster) Size() int {
	return len(c.Insiders)
}

func (c Cluster) IsCluster() bool {
	return len(c.Insiders) >= 2
}

// Others counts insiders other than name.
func (c Cluster) Others(name string) int {
	key := insiderKey(name)
	n := 0
	for _, in := range c.Insiders {
		if in != key {
			n++
		}
	}
	return n
}

// ClusterDetector answers both the multi-insider bonus and the cluster flag.
type ClusterDetector struct {
	Repo PurchaseLister
}

func (d *ClusterDetector) Detect(ctx context.Context, symbol string, date time.Time) (Cluster, error) {
	out := Cluster{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Date: date}
	if d == nil || d.Repo == nil {
		return out, nil
	}
	items, err := d.Repo.ListPurchasesBySymbolDate(ctx, out.Symbol, date)
	if err != nil {
		return out, err
	}
	seen := map[string]struct{}{}
	for _, f := range items {
		if !f.IsPurchase() {
			continue
		}
		key := insiderKey(f.InsiderName)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Insiders = append(out.Insiders, key)
	}
	sort.Strings(out.Insiders)
	return out, nil
}

// withFiler makes sure the filer itself is counted even before its filing is stored.
func (c Cluster) withFiler(name string) Cluster {
	key := insiderKey(name)
	if key == "" {
		return c
	}
	for _, in := range c.Insiders {
		if in == key {
			return c
		}
	}
	c.Insiders = append(append([]string(nil), c.Insiders...), key)
	sort.Strings(c.Insiders)
	return c
}

func MultiInsiderBonus(others int) int {
	switch {
	case others >= 2:
		return 2
	case others == 1:
		return 1
	default:
		return 0
	}
}

func insiderKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
