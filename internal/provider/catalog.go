package provider

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Search queries the catalog and returns matching shows in page order.
func (p *Provider) Search(ctx context.Context, query string) ([]CatalogItem, error) {
	q := url.Values{}
	q.Set("search_param", "animes")
	q.Set("s", query)

	doc, err := p.getDocument(ctx, p.baseURL+"/?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var items []CatalogItem
	doc.Find(".anime-card-container").Each(func(_ int, card *goquery.Selection) {
		img := card.Find("img")
		item := CatalogItem{
			Title: img.AttrOr("alt", ""),
			Image: img.AttrOr("src", ""),
			URL:   card.Find("a").AttrOr("href", ""),
		}
		if item.URL == "" {
			return
		}
		items = append(items, item)
	})

	p.log.Debug("catalog search", "query", query, "results", len(items))
	return items, nil
}
