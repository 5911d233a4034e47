package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

var numberRe = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// RecentlyAired scrapes one page of the recently-aired listing.
func (p *Provider) RecentlyAired(ctx context.Context, page int) ([]AiredEpisode, error) {
	if page < 1 {
		page = 1
	}

	doc, err := p.getDocument(ctx, fmt.Sprintf("%s/episode/page/%d", p.baseURL, page))
	if err != nil {
		return nil, err
	}

	var episodes []AiredEpisode
	doc.Find(".anime-card-container").Each(func(_ int, card *goquery.Selection) {
		epText, ep, ok := episodeNumber(card.Find(".episodes-card-title a").Text())
		if !ok {
			return
		}

		anime := card.Find(".anime-card-title a")
		episodes = append(episodes, AiredEpisode{
			Title:       anime.Text(),
			Episode:     ep,
			EpisodeText: epText,
			URL:         anime.AttrOr("href", ""),
			Image:       card.Find("img").AttrOr("src", ""),
		})
	})

	return episodes, nil
}

// episodeNumber extracts the first numeric token from an episode card title.
// Fractional recap numbering like "13.5" truncates.
func episodeNumber(text string) (string, int, bool) {
	m := numberRe.FindString(text)
	if m == "" {
		return "", 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return "", 0, false
	}
	return m, int(f), true
}
