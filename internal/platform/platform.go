// Package platform classifies content URLs into video platforms or web.
package platform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/platewise/recipe-cli/internal/model"
)

var (
	youtubeIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	shortsRe    = regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})`)
)

// Classify maps a URL to its platform. Anything that is not a recognized
// video platform is treated as a web page.
func Classify(rawURL string) model.Platform {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.PlatformWeb
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))

	switch {
	case host == "youtube.com" || host == "m.youtube.com" || host == "youtu.be" || host == "music.youtube.com":
		return model.PlatformYouTube
	case host == "tiktok.com" || strings.HasSuffix(host, ".tiktok.com"):
		return model.PlatformTikTok
	case host == "instagram.com" || strings.HasSuffix(host, ".instagram.com"):
		return model.PlatformInstagram
	default:
		return model.PlatformWeb
	}
}

// VideoID extracts the platform-native video identifier from a URL.
// Returns "" when no identifier can be determined (e.g. web pages,
// profile links).
func VideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	switch Classify(rawURL) {
	case model.PlatformYouTube:
		host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
		if host == "youtu.be" {
			id := strings.Trim(u.Path, "/")
			if youtubeIDRe.MatchString(id) {
				return id
			}
			return ""
		}
		if id := u.Query().Get("v"); youtubeIDRe.MatchString(id) {
			return id
		}
		if m := shortsRe.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
		if strings.HasPrefix(u.Path, "/embed/") {
			id := strings.TrimPrefix(u.Path, "/embed/")
			if youtubeIDRe.MatchString(id) {
				return id
			}
		}
		return ""
	case model.PlatformTikTok, model.PlatformInstagram:
		// Last non-empty path segment: /@user/video/123, /reel/abc/.
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 0 {
			return ""
		}
		return parts[len(parts)-1]
	default:
		return ""
	}
}
