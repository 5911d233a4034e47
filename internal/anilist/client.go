// Package anilist is the client for the tracking/metadata service. It speaks
// the service's GraphQL API over plain HTTP; only the two queries and one
// mutation this system needs are implemented.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultEndpoint = "https://graphql.anilist.co/"

// Client is an AniList API client.
type Client struct {
	endpoint   string
	token      string
	username   string
	httpClient *http.Client
}

// NewClient creates a new AniList client. The token is required for the
// progress mutation; queries work without it.
func NewClient(token, username string) *Client {
	return &Client{
		endpoint: defaultEndpoint,
		token:    token,
		username: username,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Anime is a tracked show as the watch-list sees it: the primary title,
// every alternative title, and how far the user has watched. Snapshots are
// read-only; progress changes go through UpdateProgress.
type Anime struct {
	ID                int
	Title             string
	AlternativeTitles []string
	TotalEpisodes     int
	WatchedEpisodes   int
}

const airingTrackedQuery = `
query ($userName: String) {
  MediaListCollection(userName: $userName, type: ANIME, status: CURRENT) {
    lists {
      entries {
        progress
        media {
          id
          status
          episodes
          title { romaji english native }
          synonyms
        }
      }
    }
  }
}`

const searchQuery = `
query ($search: String) {
  Page(page: 1, perPage: 10) {
    media(search: $search, type: ANIME) {
      id
      episodes
      title { romaji english native }
      synonyms
    }
  }
}`

const saveProgressMutation = `
mutation ($mediaId: Int, $progress: Int) {
  SaveMediaListEntry(mediaId: $mediaId, progress: $progress) {
    id
    progress
  }
}`

type mediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type media struct {
	ID       int        `json:"id"`
	Status   string     `json:"status"`
	Episodes int        `json:"episodes"`
	Title    mediaTitle `json:"title"`
	Synonyms []string   `json:"synonyms"`
}

func (m media) toAnime(progress int) Anime {
	primary := m.Title.Romaji
	if primary == "" {
		primary = m.Title.English
	}

	var alts []string
	for _, alt := range append([]string{m.Title.English, m.Title.Native}, m.Synonyms...) {
		if alt != "" && alt != primary {
			alts = append(alts, alt)
		}
	}

	return Anime{
		ID:                m.ID,
		Title:             primary,
		AlternativeTitles: alts,
		TotalEpisodes:     m.Episodes,
		WatchedEpisodes:   progress,
	}
}

// CurrentlyAiringTracked returns the user's currently-watching list filtered
// to shows that are still airing. This is the feed watcher's watch-list
// snapshot.
func (c *Client) CurrentlyAiringTracked(ctx context.Context) ([]Anime, error) {
	var result struct {
		MediaListCollection struct {
			Lists []struct {
				Entries []struct {
					Progress int   `json:"progress"`
					Media    media `json:"media"`
				} `json:"entries"`
			} `json:"lists"`
		} `json:"MediaListCollection"`
	}

	err := c.post(ctx, airingTrackedQuery, map[string]any{"userName": c.username}, &result)
	if err != nil {
		return nil, err
	}

	var out []Anime
	for _, list := range result.MediaListCollection.Lists {
		for _, entry := range list.Entries {
			if entry.Media.Status != "RELEASING" {
				continue
			}
			out = append(out, entry.Media.toAnime(entry.Progress))
		}
	}

	return out, nil
}

// Search looks up shows by name.
func (c *Client) Search(ctx context.Context, query string) ([]Anime, error) {
	var result struct {
		Page struct {
			Media []media `json:"media"`
		} `json:"Page"`
	}

	if err := c.post(ctx, searchQuery, map[string]any{"search": query}, &result); err != nil {
		return nil, err
	}

	out := make([]Anime, 0, len(result.Page.Media))
	for _, m := range result.Page.Media {
		out = append(out, m.toAnime(0))
	}

	return out, nil
}

// UpdateProgress records that the user now has progress watched episodes of
// the given show.
func (c *Client) UpdateProgress(ctx context.Context, mediaID, progress int) error {
	var result struct {
		SaveMediaListEntry struct {
			Progress int `json:"progress"`
		} `json:"SaveMediaListEntry"`
	}

	return c.post(ctx, saveProgressMutation, map[string]any{
		"mediaId":  mediaID,
		"progress": progress,
	}, &result)
}

// post performs a GraphQL request and decodes the data envelope.
func (c *Client) post(ctx context.Context, query string, variables map[string]any, v any) error {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("api error: %s", envelope.Errors[0].Message)
	}

	return json.Unmarshal(envelope.Data, v)
}
