package scraper

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-kabum/models"
)

// repeatGuard remembers recently seen product codes so the loop can notice a
// site that keeps serving the same page. It only reports; products are kept.
type repeatGuard struct {
	seen *lru.Cache[string, struct{}]
}

func newRepeatGuard(size int) *repeatGuard {
	if size <= 0 {
		return &repeatGuard{}
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return &repeatGuard{}
	}
	return &repeatGuard{seen: cache}
}

// Observe records the page's product codes and reports whether every code
// was already seen. Pages without any code never count as repeated.
func (g *repeatGuard) Observe(products []models.Product) bool {
	if g == nil || g.seen == nil {
		return false
	}
	codes := 0
	repeated := 0
	for i := range products {
		if !products[i].Code.Available() {
			continue
		}
		codes++
		if existed, _ := g.seen.ContainsOrAdd(products[i].Code.String(), struct{}{}); existed {
			repeated++
		}
	}
	return codes > 0 && repeated == codes
}
