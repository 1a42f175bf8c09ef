package platform

import (
	"strings"
	"time"

	"github.com/streamflix/flixstore/internal/docstore"
	"github.com/streamflix/flixstore/internal/models"
)

// UserByID returns the account with the given id.
func (p *Platform) UserByID(id string) (*models.User, error) {
	rec := p.docs.GetItem(docstore.CollectionUsers, id)
	if rec == nil {
		return nil, ErrUserNotFound
	}
	var u models.User
	if err := docstore.FromRecord(rec, &u); err != nil {
		return nil, err
	}
	u.Normalize()
	return &u, nil
}

// Users returns every account.
func (p *Platform) Users() ([]*models.User, error) {
	recs := p.docs.GetAllItems(docstore.CollectionUsers)
	users := make([]*models.User, 0, len(recs))
	for _, rec := range recs {
		var u models.User
		if err := docstore.FromRecord(rec, &u); err != nil {
			return nil, err
		}
		u.Normalize()
		users = append(users, &u)
	}
	return users, nil
}

// Login authenticates by username (or email) and password.
func (p *Platform) Login(username, password string) (*models.User, error) {
	users, err := p.Users()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if (u.Username == username || u.Email == username) && u.Password == password {
			return u, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// Register creates a new account. Username and email must be unused; an
// empty id gets generated.
func (p *Platform) Register(u *models.User) (*models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.Users()
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if other.Username == u.Username || (u.Email != "" && other.Email == u.Email) {
			return nil, ErrUserExists
		}
	}

	if u.ID == "" {
		u.ID = newID("user")
	}
	if u.RegisterTime.IsZero() {
		u.RegisterTime = time.Now().UTC()
	}
	if u.Avatar == "" {
		u.Avatar = "assets/default-avatar.png"
	}
	u.Normalize()

	if err := p.saveUser(u); err != nil {
		return nil, err
	}
	p.docs.AddIndex(docstore.IndexUser, u.ID)
	p.logger.Info("user registered", "user", u.ID, "username", u.Username)
	return u, nil
}

// UpdateUser overwrites an existing account record.
func (p *Platform) UpdateUser(u *models.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.docs.GetItem(docstore.CollectionUsers, u.ID) == nil {
		return ErrUserNotFound
	}
	u.Normalize()
	return p.saveUser(u)
}

// MergeUser applies a partial update: the given fields overwrite the stored
// record field by field, leaving the rest intact.
func (p *Platform) MergeUser(id string, fields docstore.Record) (*models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.docs.GetItem(docstore.CollectionUsers, id)
	if rec == nil {
		return nil, ErrUserNotFound
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	if p.docs.SaveItem(docstore.CollectionUsers, id, rec) == nil {
		return nil, ErrPersistFailed
	}

	var u models.User
	if err := docstore.FromRecord(rec, &u); err != nil {
		return nil, err
	}
	u.Normalize()
	return &u, nil
}

// Follow adds target to follower's following list and vice versa.
// Idempotent.
func (p *Platform) Follow(followerID, targetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	follower, err := p.UserByID(followerID)
	if err != nil {
		return err
	}
	target, err := p.UserByID(targetID)
	if err != nil {
		return err
	}

	follower.Following = appendUnique(follower.Following, targetID)
	target.Followers = appendUnique(target.Followers, followerID)

	if err := p.saveUser(follower); err != nil {
		return err
	}
	return p.saveUser(target)
}

// Unfollow removes the relationship added by Follow. Idempotent.
func (p *Platform) Unfollow(followerID, targetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	follower, err := p.UserByID(followerID)
	if err != nil {
		return err
	}
	target, err := p.UserByID(targetID)
	if err != nil {
		return err
	}

	follower.Following = removeString(follower.Following, targetID)
	target.Followers = removeString(target.Followers, followerID)

	if err := p.saveUser(follower); err != nil {
		return err
	}
	return p.saveUser(target)
}

// SearchUsers matches usernames and signatures case-insensitively.
func (p *Platform) SearchUsers(query string) ([]*models.User, error) {
	users, err := p.Users()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []*models.User{}, nil
	}
	matched := make([]*models.User, 0)
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), query) ||
			strings.Contains(strings.ToLower(u.Signature), query) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

func (p *Platform) saveUser(u *models.User) error {
	rec, err := docstore.ToRecord(u)
	if err != nil {
		return err
	}
	if p.docs.SaveItem(docstore.CollectionUsers, u.ID, rec) == nil {
		return ErrPersistFailed
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	kept := list[:0]
	for _, s := range list {
		if s != v {
			kept = append(kept, s)
		}
	}
	return kept
}
