package model

// Platform identifies where a content URL points.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformWeb       Platform = "web"
)

// IsVideo reports whether the platform goes through the video orchestrator.
func (p Platform) IsVideo() bool {
	switch p {
	case PlatformYouTube, PlatformTikTok, PlatformInstagram:
		return true
	default:
		return false
	}
}

// HasMetadataAPI reports whether the platform exposes queryable
// duration/category metadata. Only YouTube does; the others get the
// reduced URL-only preflight check.
func (p Platform) HasMetadataAPI() bool {
	return p == PlatformYouTube
}
