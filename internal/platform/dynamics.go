package platform

import (
	"context"
	"sort"
	"time"

	"github.com/streamflix/flixstore/internal/blobstore"
	"github.com/streamflix/flixstore/internal/docstore"
	"github.com/streamflix/flixstore/internal/models"
)

// MediaInput is one attachment for a new dynamic post. Either Data (an
// inline payload to capture into the blob store) or URL (kept as-is) is
// set.
type MediaInput struct {
	Type        string // "image" or "video"
	URL         string
	Data        []byte
	ContentType string
}

// CreateDynamic publishes a feed post. Inline media payloads are captured
// into the blob store and replaced with "indexeddb:" references; when the
// blob store is unavailable the payload is dropped and only URL-backed
// media survives, matching the degraded behavior of the original client.
func (p *Platform) CreateDynamic(ctx context.Context, post *models.DynamicPost, media []MediaInput) (*models.DynamicPost, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if post.ID == "" {
		post.ID = newID("dynamic")
	}
	if post.PublishTime.IsZero() {
		post.PublishTime = time.Now().UTC()
	}
	if post.LikedBy == nil {
		post.LikedBy = []string{}
	}

	for _, m := range media {
		ref, err := p.captureMedia(ctx, m, post.AuthorID)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			continue
		}
		post.Media = append(post.Media, *ref)
	}

	if err := p.saveDynamic(post); err != nil {
		return nil, err
	}

	if author, err := p.UserByID(post.AuthorID); err == nil {
		author.Dynamic = appendUnique(author.Dynamic, post.ID)
		if err := p.saveUser(author); err != nil {
			return nil, err
		}
	}
	return post, nil
}

// captureMedia turns one media input into a persisted reference. Returns
// nil when the input carries nothing usable.
func (p *Platform) captureMedia(ctx context.Context, m MediaInput, authorID string) (*models.MediaRef, error) {
	if len(m.Data) == 0 {
		if m.URL == "" {
			return nil, nil
		}
		return &models.MediaRef{Type: m.Type, URL: m.URL}, nil
	}

	if p.blobs == nil {
		p.logger.Warn("blob store unavailable, dropping inline media", "type", m.Type)
		if m.URL == "" {
			return nil, nil
		}
		return &models.MediaRef{Type: m.Type, URL: m.URL}, nil
	}

	table := blobstore.TableImages
	if m.Type == "video" {
		table = blobstore.TableVideos
	}
	ref, err := p.StoreVideoAsset(ctx, table, m.Data, m.ContentType, authorID)
	if err != nil {
		return nil, err
	}
	id, _ := models.ParseBlobRef(ref)
	return &models.MediaRef{ID: id, Type: m.Type, URL: ref, Stored: true}, nil
}

// UpdateDynamic overwrites an existing post record.
func (p *Platform) UpdateDynamic(post *models.DynamicPost) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.docs.GetItem(docstore.CollectionDynamics, post.ID) == nil {
		return ErrDynamicNotFound
	}
	return p.saveDynamic(post)
}

// DeleteDynamic removes a post, its author linkage and any blob payloads
// its media references.
func (p *Platform) DeleteDynamic(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	post, err := p.DynamicByID(id)
	if err != nil {
		return err
	}
	if !p.docs.DeleteItem(docstore.CollectionDynamics, id) {
		return ErrDynamicNotFound
	}

	if author, err := p.UserByID(post.AuthorID); err == nil {
		author.Dynamic = removeString(author.Dynamic, id)
		if err := p.saveUser(author); err != nil {
			return err
		}
	}

	for _, m := range post.Media {
		if m.Stored {
			p.deleteBlobRef(ctx, m.URL)
		}
	}
	return nil
}

// DynamicByID returns one post.
func (p *Platform) DynamicByID(id string) (*models.DynamicPost, error) {
	rec := p.docs.GetItem(docstore.CollectionDynamics, id)
	if rec == nil {
		return nil, ErrDynamicNotFound
	}
	var post models.DynamicPost
	if err := docstore.FromRecord(rec, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DynamicsByUser returns a user's posts, newest first.
func (p *Platform) DynamicsByUser(userID string) ([]*models.DynamicPost, error) {
	return p.dynamicsWhere(func(post *models.DynamicPost) bool {
		return post.AuthorID == userID
	})
}

// DynamicsFeed returns posts by the users someone follows (plus their own),
// newest first.
func (p *Platform) DynamicsFeed(userID string) ([]*models.DynamicPost, error) {
	u, err := p.UserByID(userID)
	if err != nil {
		return nil, err
	}
	authors := map[string]bool{userID: true}
	for _, id := range u.Following {
		authors[id] = true
	}
	return p.dynamicsWhere(func(post *models.DynamicPost) bool {
		return authors[post.AuthorID]
	})
}

func (p *Platform) dynamicsWhere(match func(*models.DynamicPost) bool) ([]*models.DynamicPost, error) {
	posts := make([]*models.DynamicPost, 0)
	for _, rec := range p.docs.GetAllItems(docstore.CollectionDynamics) {
		var post models.DynamicPost
		if err := docstore.FromRecord(rec, &post); err != nil {
			return nil, err
		}
		if match(&post) {
			posts = append(posts, &post)
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PublishTime.After(posts[j].PublishTime)
	})
	return posts, nil
}

// ResolveMedia fills DisplayURL on each media reference. Plain URLs pass
// through; blob references are verified against the blob store and keep
// their reference URL, resolved or not, so a broken reference still renders
// a placeholder rather than disappearing.
func (p *Platform) ResolveMedia(ctx context.Context, posts []*models.DynamicPost) {
	for _, post := range posts {
		for i := range post.Media {
			m := &post.Media[i]
			m.DisplayURL = m.URL
			if _, ok := models.ParseBlobRef(m.URL); !ok {
				continue
			}
			if _, _, err := p.LoadAsset(ctx, m.URL); err != nil {
				p.logger.Warn("media reference unresolved", "url", m.URL, "error", err)
			}
		}
	}
}

func (p *Platform) saveDynamic(post *models.DynamicPost) error {
	rec, err := docstore.ToRecord(post)
	if err != nil {
		return err
	}
	if p.docs.SaveItem(docstore.CollectionDynamics, post.ID, rec) == nil {
		return ErrPersistFailed
	}
	return nil
}
