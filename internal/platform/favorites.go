package platform

import "github.com/streamflix/flixstore/internal/models"

// AddFavorite adds a video to a user's favorites list. Idempotent.
func (p *Platform) AddFavorite(userID, videoID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := p.UserByID(userID)
	if err != nil {
		return err
	}
	u.Favorites = appendUnique(u.Favorites, videoID)
	return p.saveUser(u)
}

// RemoveFavorite removes a video from a user's favorites list. Idempotent.
func (p *Platform) RemoveFavorite(userID, videoID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := p.UserByID(userID)
	if err != nil {
		return err
	}
	u.Favorites = removeString(u.Favorites, videoID)
	return p.saveUser(u)
}

// IsFavorited reports whether a user has favorited a video.
func (p *Platform) IsFavorited(userID, videoID string) (bool, error) {
	u, err := p.UserByID(userID)
	if err != nil {
		return false, err
	}
	for _, id := range u.Favorites {
		if id == videoID {
			return true, nil
		}
	}
	return false, nil
}

// FavoritesByUser resolves a user's favorites to video records, skipping
// ids whose videos no longer exist.
func (p *Platform) FavoritesByUser(userID string) ([]*models.Video, error) {
	u, err := p.UserByID(userID)
	if err != nil {
		return nil, err
	}
	videos := make([]*models.Video, 0, len(u.Favorites))
	for _, id := range u.Favorites {
		v, err := p.VideoByID(id)
		if err != nil {
			continue
		}
		videos = append(videos, v)
	}
	return videos, nil
}
