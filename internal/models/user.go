// Package models defines the record types persisted by the document store
// and the blob store: users, videos, comments, history entries, dynamic
// posts and their media references.
package models

import "time"

// User is a platform account. Relationship fields hold record IDs, never
// embedded records.
type User struct {
	ID            string        `json:"id"`
	Username      string        `json:"username"`
	Email         string        `json:"email"`
	Password      string        `json:"password"`
	Avatar        string        `json:"avatar"`
	Signature     string        `json:"signature,omitempty"`
	RegisterTime  time.Time     `json:"registerTime"`
	Followers     []string      `json:"followers"`
	Following     []string      `json:"following"`
	Favorites     []string      `json:"favorites"`
	Videos        []string      `json:"videos"`
	Dynamic       []string      `json:"dynamic"`
	SearchHistory []SearchEntry `json:"searchHistory,omitempty"`
}

// SearchEntry is one remembered search query.
type SearchEntry struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// Normalize fills optional collection fields that older records may be
// missing. Idempotent.
func (u *User) Normalize() {
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}
	if u.Favorites == nil {
		u.Favorites = []string{}
	}
	if u.Videos == nil {
		u.Videos = []string{}
	}
	if u.Dynamic == nil {
		u.Dynamic = []string{}
	}
}
