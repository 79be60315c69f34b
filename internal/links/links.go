// Package links turns scanned QR payloads into media references.
//
// A payload is either a web link (open.spotify.com, youtube.com, youtu.be), a Spotify URI
// (spotify:track:<id>), or anything else. [Parse] never fails; text it cannot place comes
// back as [KindUnknown] with the raw text retained.
package links

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind identifies the service a link belongs to.
type Kind string

const (
	KindSpotify Kind = "spotify"
	KindYouTube Kind = "youtube"
	KindUnknown Kind = "unknown"
)

// Subtype identifies the Spotify resource type.
type Subtype string

const (
	SubtypeTrack    Subtype = "track"
	SubtypeAlbum    Subtype = "album"
	SubtypePlaylist Subtype = "playlist"
	SubtypeUnknown  Subtype = "unknown"
)

// Link is a parsed QR payload.
type Link struct {
	Kind    Kind    `json:"type"`
	Subtype Subtype `json:"subtype,omitempty"`
	ID      string  `json:"id,omitempty"`
	Raw     string  `json:"url,omitempty"`
}

// Parse classifies raw scanned text.
func Parse(raw string) Link {
	raw = strings.TrimSpace(raw)

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		if link, ok := parseWeb(raw, u); ok {
			return link
		}
	}

	if link, ok := parseSpotifyURI(raw); ok {
		return link
	}

	return Link{Kind: KindUnknown, Raw: raw}
}

func parseWeb(raw string, u *url.URL) (Link, bool) {
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, "spotify.com"):
		segments := pathSegments(u.Path)
		if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
			segments = segments[1:]
		}
		if len(segments) >= 2 && segments[1] != "" {
			if st := spotifySubtype(segments[0]); st != SubtypeUnknown {
				return Link{Kind: KindSpotify, Subtype: st, ID: segments[1]}, true
			}
		}
		return Link{Kind: KindSpotify, Subtype: SubtypeUnknown, Raw: raw}, true

	case strings.Contains(host, "youtu.be"):
		id := strings.TrimPrefix(u.Path, "/")
		if id == "" {
			return Link{}, false
		}
		return Link{Kind: KindYouTube, ID: id}, true

	case strings.Contains(host, "youtube.com"):
		if id := u.Query().Get("v"); id != "" {
			return Link{Kind: KindYouTube, ID: id}, true
		}
		if segments := pathSegments(u.Path); len(segments) >= 2 && segments[0] == "shorts" && segments[1] != "" {
			return Link{Kind: KindYouTube, ID: segments[1]}, true
		}
	}

	return Link{}, false
}

// parseSpotifyURI handles spotify:<subtype>:<id>.
func parseSpotifyURI(raw string) (Link, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 || parts[0] != "spotify" || parts[2] == "" {
		return Link{}, false
	}

	st := spotifySubtype(parts[1])
	if st == SubtypeUnknown {
		return Link{}, false
	}
	return Link{Kind: KindSpotify, Subtype: st, ID: parts[2]}, true
}

func spotifySubtype(s string) Subtype {
	switch Subtype(s) {
	case SubtypeTrack, SubtypeAlbum, SubtypePlaylist:
		return Subtype(s)
	}
	return SubtypeUnknown
}

func pathSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// OpenURL returns the open.spotify.com page for Spotify links, or the watch page for YouTube links.
func (l Link) OpenURL() string {
	switch {
	case l.Kind == KindSpotify && l.ID != "":
		return fmt.Sprintf("https://open.spotify.com/%s/%s", l.Subtype, l.ID)
	case l.Kind == KindYouTube:
		return "https://www.youtube.com/watch?v=" + url.QueryEscape(l.ID)
	}
	return ""
}

// URI returns the spotify: URI the desktop/mobile apps handle.
func (l Link) URI() string {
	if l.Kind != KindSpotify || l.ID == "" {
		return ""
	}
	return fmt.Sprintf("spotify:%s:%s", l.Subtype, l.ID)
}

// EmbedURL returns the autoplaying iframe URL for YouTube videos.
func (l Link) EmbedURL() string {
	if l.Kind != KindYouTube {
		return ""
	}
	return fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=1", url.PathEscape(l.ID))
}

// Playable reports whether the link can be started in the browser directly:
// Spotify tracks via the playback relay, YouTube videos via the embed.
func (l Link) Playable() bool {
	switch l.Kind {
	case KindSpotify:
		return l.Subtype == SubtypeTrack && l.ID != ""
	case KindYouTube:
		return l.ID != ""
	}
	return false
}

// Resolution is a [Link] plus every derived target, the shape served by /resolve.
type Resolution struct {
	Link
	OpenURL  string `json:"open_url,omitempty"`
	URI      string `json:"uri,omitempty"`
	EmbedURL string `json:"embed_url,omitempty"`
	Playable bool   `json:"playable"`
}

// Resolve parses raw and expands the derived URLs.
func Resolve(raw string) Resolution {
	l := Parse(raw)
	return Resolution{
		Link:     l,
		OpenURL:  l.OpenURL(),
		URI:      l.URI(),
		EmbedURL: l.EmbedURL(),
		Playable: l.Playable(),
	}
}
