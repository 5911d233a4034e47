package feed

// Item is one feed entry, carrying either a .torrent resource URL or a
// magnet URI. The two variants form a closed set; the acquisition
// coordinator dispatches on them with an explicit type switch. Identity is
// the link value.
type Item interface {
	// Title is the raw release title as published by the feed.
	Title() string
	// Link is the identity of the item: the torrent URL or the magnet URI.
	Link() string

	sealed()
}

// TorrentItem is a feed entry pointing at a .torrent resource.
type TorrentItem struct {
	RawTitle string
	URL      string
}

func (t TorrentItem) Title() string { return t.RawTitle }
func (t TorrentItem) Link() string  { return t.URL }
func (TorrentItem) sealed()         {}

// MagnetItem is a feed entry carrying a magnet URI.
type MagnetItem struct {
	RawTitle string
	URI      string
}

func (m MagnetItem) Title() string { return m.RawTitle }
func (m MagnetItem) Link() string  { return m.URI }
func (MagnetItem) sealed()         {}
