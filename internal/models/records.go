package models

import "time"

// HistoryEntry is one watch-history row. History is append-heavy and stored
// as a sequence collection; (UserID, VideoID) is the composite upsert key.
type HistoryEntry struct {
	UserID    string    `json:"userId"`
	VideoID   string    `json:"videoId"`
	Title     string    `json:"title,omitempty"`
	Cover     string    `json:"cover,omitempty"`
	Progress  float64   `json:"progress,omitempty"`
	WatchTime time.Time `json:"watchTime"`
}

// DynamicPost is a feed post. Media payloads are captured into the blob
// store and referenced via "indexeddb:" URLs.
type DynamicPost struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"authorId"`
	AuthorName  string     `json:"authorName,omitempty"`
	Content     string     `json:"content"`
	Media       []MediaRef `json:"media,omitempty"`
	PublishTime time.Time  `json:"publishTime"`
	Likes       int        `json:"likes"`
	LikedBy     []string   `json:"likedBy,omitempty"`
	Comments    []Comment  `json:"comments,omitempty"`
}

// MediaRef points at one media item attached to a post.
type MediaRef struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"` // "image" or "video"
	URL    string `json:"url"`
	Stored bool   `json:"stored,omitempty"`

	// DisplayURL is filled on read when URL is a blob reference. Never
	// persisted.
	DisplayURL string `json:"displayUrl,omitempty"`
}
