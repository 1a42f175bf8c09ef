package platform

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/streamflix/flixstore/internal/blobstore"
	"github.com/streamflix/flixstore/internal/docstore"
	"github.com/streamflix/flixstore/internal/models"
)

// VideoByID returns the video with the given id.
func (p *Platform) VideoByID(id string) (*models.Video, error) {
	rec := p.docs.GetItem(docstore.CollectionVideos, id)
	if rec == nil {
		return nil, ErrVideoNotFound
	}
	var v models.Video
	if err := docstore.FromRecord(rec, &v); err != nil {
		return nil, err
	}
	v.Normalize()
	return &v, nil
}

// Videos returns every video, category pair normalized.
func (p *Platform) Videos() ([]*models.Video, error) {
	recs := p.docs.GetAllItems(docstore.CollectionVideos)
	videos := make([]*models.Video, 0, len(recs))
	for _, rec := range recs {
		var v models.Video
		if err := docstore.FromRecord(rec, &v); err != nil {
			return nil, err
		}
		v.Normalize()
		videos = append(videos, &v)
	}
	return videos, nil
}

// CreateVideo stores a new video record and links it to its author. An
// empty id gets generated.
func (p *Platform) CreateVideo(v *models.Video) (*models.Video, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.ID == "" {
		v.ID = newID("video")
	}
	if v.UploadTime.IsZero() {
		v.UploadTime = time.Now().UTC()
	}
	v.Normalize()

	if err := p.saveVideo(v); err != nil {
		return nil, err
	}
	p.docs.AddIndex(docstore.IndexVideo, v.ID)

	if v.AuthorID != "" {
		author, err := p.UserByID(v.AuthorID)
		if err == nil {
			author.Videos = appendUnique(author.Videos, v.ID)
			if err := p.saveUser(author); err != nil {
				return nil, err
			}
		}
	}
	p.logger.Info("video created", "video", v.ID, "author", v.AuthorID)
	return v, nil
}

// UpdateVideo overwrites an existing video record.
func (p *Platform) UpdateVideo(v *models.Video) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.docs.GetItem(docstore.CollectionVideos, v.ID) == nil {
		return ErrVideoNotFound
	}
	v.Normalize()
	return p.saveVideo(v)
}

// DeleteVideo removes a video record, its index entry, its author linkage
// and any blob-store payloads its cover or sources reference. Blob cleanup
// is best effort; a degraded blob store never blocks the delete.
func (p *Platform) DeleteVideo(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, err := p.VideoByID(id)
	if err != nil {
		return err
	}

	if !p.docs.DeleteItem(docstore.CollectionVideos, id) {
		return ErrVideoNotFound
	}
	p.docs.RemoveIndex(docstore.IndexVideo, id)

	if v.AuthorID != "" {
		if author, err := p.UserByID(v.AuthorID); err == nil {
			author.Videos = removeString(author.Videos, id)
			author.Favorites = removeString(author.Favorites, id)
			if err := p.saveUser(author); err != nil {
				return err
			}
		}
	}

	refs := append([]string{v.Cover}, v.Sources...)
	for _, ref := range refs {
		p.deleteBlobRef(ctx, ref)
	}
	return nil
}

// VideosByUser returns a user's uploads, newest first.
func (p *Platform) VideosByUser(authorID string) ([]*models.Video, error) {
	videos, err := p.Videos()
	if err != nil {
		return nil, err
	}
	matched := make([]*models.Video, 0)
	for _, v := range videos {
		if v.AuthorID == authorID {
			matched = append(matched, v)
		}
	}
	sortByUploadDesc(matched)
	return matched, nil
}

// VideosByCategory matches the category given as either the canonical code
// or the localized label.
func (p *Platform) VideosByCategory(category string) ([]*models.Video, error) {
	videos, err := p.Videos()
	if err != nil {
		return nil, err
	}
	matched := make([]*models.Video, 0)
	for _, v := range videos {
		if models.CategoryMatches(v.Category, v.CategoryName, category) {
			matched = append(matched, v)
		}
	}
	sortByUploadDesc(matched)
	return matched, nil
}

// PopularVideos returns up to limit videos ordered by view count.
func (p *Platform) PopularVideos(limit int) ([]*models.Video, error) {
	videos, err := p.Videos()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].Views > videos[j].Views
	})
	if limit > 0 && len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

// RecommendedVideos returns up to limit videos in random order, excluding
// the one currently playing.
func (p *Platform) RecommendedVideos(excludeID string, limit int) ([]*models.Video, error) {
	videos, err := p.Videos()
	if err != nil {
		return nil, err
	}
	pool := make([]*models.Video, 0, len(videos))
	for _, v := range videos {
		if v.ID != excludeID {
			pool = append(pool, v)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

// SearchVideos matches titles, descriptions and tags case-insensitively.
func (p *Platform) SearchVideos(query string) ([]*models.Video, error) {
	videos, err := p.Videos()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []*models.Video{}, nil
	}
	matched := make([]*models.Video, 0)
	for _, v := range videos {
		if videoMatches(v, query) {
			matched = append(matched, v)
		}
	}
	return matched, nil
}

// IncrementViews bumps a video's view counter by one.
func (p *Platform) IncrementViews(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, err := p.VideoByID(id)
	if err != nil {
		return err
	}
	v.Views++
	return p.saveVideo(v)
}

// ToggleLike adds or removes a user's like on a video and returns the new
// liked state.
func (p *Platform) ToggleLike(videoID, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, err := p.VideoByID(videoID)
	if err != nil {
		return false, err
	}

	liked := false
	for _, uid := range v.LikedBy {
		if uid == userID {
			liked = true
			break
		}
	}
	if liked {
		v.LikedBy = removeString(v.LikedBy, userID)
		if v.Likes > 0 {
			v.Likes--
		}
	} else {
		v.LikedBy = append(v.LikedBy, userID)
		v.Likes++
	}
	if err := p.saveVideo(v); err != nil {
		return liked, err
	}
	return !liked, nil
}

// AddComment appends a comment to a video. An empty comment id gets
// generated.
func (p *Platform) AddComment(videoID string, c models.Comment) (*models.Comment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, err := p.VideoByID(videoID)
	if err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = newID("comment")
	}
	if c.PublishTime.IsZero() {
		c.PublishTime = time.Now().UTC()
	}
	if c.LikedBy == nil {
		c.LikedBy = []string{}
	}
	v.Comments = append(v.Comments, c)
	if err := p.saveVideo(v); err != nil {
		return nil, err
	}
	return &c, nil
}

// StoreVideoAsset captures a binary payload into the blob store, routing by
// size: payloads larger than the configured chunk size take the chunked
// path. Returns the "indexeddb:" reference to persist in the video record.
func (p *Platform) StoreVideoAsset(ctx context.Context, table string, data []byte, contentType, authorID string) (string, error) {
	if p.blobs == nil {
		return "", ErrBlobsUnavailable
	}

	id := newID("media")
	if table == blobstore.TableVideos && len(data) > p.chunkSize {
		err := p.blobs.StoreLarge(ctx, id, data, p.chunkSize,
			blobstore.WithLargeContentType(contentType),
			blobstore.WithLargeAuthor(authorID))
		if err != nil {
			return "", err
		}
		return models.BlobRef(id), nil
	}

	err := p.blobs.StoreSmall(ctx, table, id, data,
		blobstore.WithContentType(contentType),
		blobstore.WithAuthor(authorID))
	if err != nil {
		return "", err
	}
	return models.BlobRef(id), nil
}

// LoadAsset resolves an "indexeddb:" reference to its payload, trying the
// small tables first and falling back to the chunked path.
func (p *Platform) LoadAsset(ctx context.Context, ref string) ([]byte, string, error) {
	id, ok := models.ParseBlobRef(ref)
	if !ok {
		return nil, "", errors.New("platform: not a blob reference")
	}
	if p.blobs == nil {
		return nil, "", ErrBlobsUnavailable
	}

	for _, table := range []string{blobstore.TableVideos, blobstore.TableImages} {
		blob, err := p.blobs.GetSmall(ctx, table, id)
		if err == nil {
			return blob.Data, blob.Type, nil
		}
		if !errors.Is(err, blobstore.ErrNotFound) {
			return nil, "", err
		}
	}

	large, err := p.blobs.GetLarge(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return large.Data, large.Type, nil
}

// deleteBlobRef removes the payload behind a blob reference. Unreferenced
// values and plain URLs are ignored.
func (p *Platform) deleteBlobRef(ctx context.Context, ref string) {
	id, ok := models.ParseBlobRef(ref)
	if !ok || p.blobs == nil {
		return
	}
	for _, table := range []string{blobstore.TableVideos, blobstore.TableImages} {
		if err := p.blobs.DeleteSmall(ctx, table, id); err != nil {
			p.logger.Warn("blob cleanup failed", "id", id, "table", table, "error", err)
		}
	}
	if err := p.blobs.DeleteLarge(ctx, id); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		p.logger.Warn("blob cleanup failed", "id", id, "error", err)
	}
}

func (p *Platform) saveVideo(v *models.Video) error {
	rec, err := docstore.ToRecord(v)
	if err != nil {
		return err
	}
	if p.docs.SaveItem(docstore.CollectionVideos, v.ID, rec) == nil {
		return ErrPersistFailed
	}
	return nil
}

func videoMatches(v *models.Video, query string) bool {
	if strings.Contains(strings.ToLower(v.Title), query) ||
		strings.Contains(strings.ToLower(v.Description), query) {
		return true
	}
	for _, tag := range v.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func sortByUploadDesc(videos []*models.Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].UploadTime.After(videos[j].UploadTime)
	})
}
