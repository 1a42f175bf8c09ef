package models

import "time"

// Video is the metadata record for one uploaded video. Binary payloads live
// in the blob store; Cover and Sources hold either external URLs or
// "indexeddb:" blob references (see reference.go).
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	Cover        string    `json:"cover"`
	Sources      []string  `json:"video"`
	Views        int       `json:"views"`
	Likes        int       `json:"likes"`
	LikedBy      []string  `json:"likedBy"`
	Comments     []Comment `json:"comments"`
	Tags         []string  `json:"tags"`
	Category     string    `json:"category"`
	CategoryName string    `json:"categoryName"`
	UploadTime   time.Time `json:"uploadTime"`
	Privacy      string    `json:"privacy,omitempty"`
}

// Comment is a comment on a video.
type Comment struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar,omitempty"`
	Content      string    `json:"content"`
	PublishTime  time.Time `json:"publishTime"`
	Likes        int       `json:"likes"`
	LikedBy      []string  `json:"likedBy"`
}

// Normalize fills optional collection fields and reconciles the category
// pair (code + localized name). Idempotent.
func (v *Video) Normalize() {
	if v.LikedBy == nil {
		v.LikedBy = []string{}
	}
	if v.Comments == nil {
		v.Comments = []Comment{}
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	v.Category, v.CategoryName = NormalizeCategory(v.Category, v.CategoryName)
}
