package model

// SortMode orders the feed.
type SortMode string

const (
	SortRecency SortMode = "Recency"
	SortLikes   SortMode = "Likes"
)

// DefaultSortMode applies when a session has no stored preference.
const DefaultSortMode = SortRecency

// ParseSortMode accepts the two mode names exactly as the feed page sends them.
func ParseSortMode(s string) (SortMode, bool) {
	switch SortMode(s) {
	case SortRecency, SortLikes:
		return SortMode(s), true
	}
	return "", false
}

// FeedItem is a post enriched for a particular viewer.
type FeedItem struct {
	Post
	AvatarURL string // author's avatar; empty when the author row no longer exists
	Liked     bool   // viewer has liked this post
	CanDelete bool   // viewer is the author or an admin
}

// Feed is the view model for the home and profile pages.
type Feed struct {
	Items    []FeedItem
	Viewer   *User // nil for anonymous viewers
	SortMode SortMode
}
