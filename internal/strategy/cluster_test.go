package strategy

import (
	"context"
	"testing"

	"github.com/xampla/insider-bot/internal/models"
)

func TestClusterDetectorDistinctInsiders(t *testing.T) {
	store := newStubStore()
	store.purchases = []models.InsiderFiling{
		filing("a-0", "Alice Smith", "Director", 1000, 50, "D"),
		filing("a-1", "alice  smith", "Director", 1000, 50, "D"),
		filing("b-0", "Bob", "CEO", 1000, 50, "D"),
	}
	d := &ClusterDetector{Repo: store}
	c, err := d.Detect(context.Background(), "ddog", txDate)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if c.Size() != 2 || !c.IsCluster() {
		t.Fatalf("size=%d want=2", c.Size())
	}
	if got := c.Others("Bob"); got != 1 {
		t.Fatalf("others=%d want=1", got)
	}
	if got := c.withFiler("Zed").Size(); got != 3 {
		t.Fatalf("withFiler size=%d want=3", got)
	}
}

func TestMultiInsiderBonus(t *testing.T) {
	for others, want := range map[int]int{0: 0, 1: 1, 2: 2, 5: 2} {
		if got := MultiInsiderBonus(others); got != want {
			t.Fatalf("MultiInsiderBonus(%d)=%d want=%d", others, got, want)
		}
	}
}
