package docstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streamflix/flixstore/internal/models"
)

// seedIfEmpty populates canonical sample records when the primary user
// collection has no data. Idempotent bootstrap: a store that already has
// users is never reseeded.
func (s *Store) seedIfEmpty() error {
	if len(s.GetAllItems(CollectionUsers)) > 0 {
		return nil
	}
	s.logger.Info("empty user collection, seeding sample data")

	now := time.Now().UTC()

	users := []models.User{
		{
			ID:           "user_1",
			Username:     "StreamFlix_user",
			Email:        "user@streamflix.com",
			Password:     "123456",
			Avatar:       "assets/default-avatar.png",
			Signature:    "StreamFlix official account",
			RegisterTime: now,
			Followers:    []string{},
			Following:    []string{},
			Favorites:    []string{},
			Videos:       []string{"video_1", "video_2"},
			Dynamic:      []string{},
		},
		{
			ID:           "user_2",
			Username:     "video_creator",
			Email:        "creator@streamflix.com",
			Password:     "123456",
			Avatar:       "assets/default-avatar.png",
			Signature:    "Loves making videos",
			RegisterTime: now,
			Followers:    []string{"user_1"},
			Following:    []string{"user_1"},
			Favorites:    []string{"video_1"},
			Videos:       []string{"video_3"},
			Dynamic:      []string{},
		},
	}

	videos := []models.Video{
		{
			ID:          "video_1",
			Title:       "Welcome to StreamFlix",
			Description: "A sample video to get you started.",
			AuthorID:    "user_1",
			AuthorName:  "StreamFlix_user",
			Cover:       "assets/demoCover.png",
			Sources:     []string{"assets/demoVideo.mp4"},
			Views:       120,
			Likes:       25,
			LikedBy:     []string{"user_2"},
			Comments: []models.Comment{
				{
					ID:           "comment_1",
					AuthorID:     "user_2",
					AuthorName:   "video_creator",
					AuthorAvatar: "assets/default-avatar.png",
					Content:      "Great video!",
					PublishTime:  now,
					Likes:        2,
					LikedBy:      []string{"user_1"},
				},
			},
			Tags:       []string{"welcome", "sample", "tutorial"},
			Category:   "life",
			UploadTime: now.Add(-7 * 24 * time.Hour),
			Privacy:    "public",
		},
		{
			ID:          "video_2",
			Title:       "JavaScript for beginners",
			Description: "Learn the basics of JavaScript.",
			AuthorID:    "user_1",
			AuthorName:  "StreamFlix_user",
			Cover:       "assets/demoCover.png",
			Sources:     []string{"assets/demoVideo.mp4"},
			Views:       89,
			Likes:       15,
			LikedBy:     []string{},
			Comments:    []models.Comment{},
			Tags:        []string{"javascript", "programming", "tutorial"},
			Category:    "technology",
			UploadTime:  now.Add(-3 * 24 * time.Hour),
			Privacy:     "public",
		},
		{
			ID:          "video_3",
			Title:       "Home cooking, shared",
			Description: "Cook something delicious tonight.",
			AuthorID:    "user_2",
			AuthorName:  "video_creator",
			Cover:       "assets/demoCover.png",
			Sources:     []string{"assets/demoVideo.mp4"},
			Views:       234,
			Likes:       42,
			LikedBy:     []string{"user_1"},
			Comments:    []models.Comment{},
			Tags:        []string{"food", "cooking", "life"},
			Category:    "life",
			UploadTime:  now.Add(-24 * time.Hour),
			Privacy:     "public",
		},
	}

	for i := range users {
		users[i].Normalize()
		rec, err := ToRecord(&users[i])
		if err != nil {
			return fmt.Errorf("encode sample user %s: %w", users[i].ID, err)
		}
		if s.SaveItem(CollectionUsers, users[i].ID, rec) == nil {
			return fmt.Errorf("save sample user %s", users[i].ID)
		}
		s.AddIndex(IndexUser, users[i].ID)
	}

	for i := range videos {
		videos[i].Normalize()
		rec, err := ToRecord(&videos[i])
		if err != nil {
			return fmt.Errorf("encode sample video %s: %w", videos[i].ID, err)
		}
		if s.SaveItem(CollectionVideos, videos[i].ID, rec) == nil {
			return fmt.Errorf("save sample video %s", videos[i].ID)
		}
		s.AddIndex(IndexVideo, videos[i].ID)
	}

	return nil
}

// ToRecord converts a typed model to its schemaless record form.
func ToRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FromRecord decodes a schemaless record into a typed model.
func FromRecord(rec Record, v any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
