package client

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Cache mirrors activities and profiles read through a Client.
//
// Reads fill the cache, mutations issued through the Cache invalidate the
// entries they touch, and comments pushed over the websocket are appended
// in place. A failed mutation leaves the cache untouched.
type Cache struct {
	client *Client
	sf     singleflight.Group

	mu         sync.RWMutex
	gen        uint64
	activities map[uuid.UUID]*domain.Activity
	profiles   map[string]*domain.Profile
}

func NewCache(c *Client) *Cache {
	return &Cache{
		client:     c,
		activities: make(map[uuid.UUID]*domain.Activity),
		profiles:   make(map[string]*domain.Profile),
	}
}

// Activity returns the cached activity or loads it; concurrent loads share one request.
func (c *Cache) Activity(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	c.mu.RLock()
	a, ok := c.activities[id]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return cloneActivity(a), nil
	}

	v, err, _ := c.sf.Do("activity:"+id.String(), func() (any, error) {
		return c.client.GetActivity(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	loaded, ok := v.(*domain.Activity)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	c.mu.Lock()
	if c.gen == gen {
		c.activities[id] = cloneActivity(loaded)
	}
	c.mu.Unlock()

	return cloneActivity(loaded), nil
}

func (c *Cache) Profile(ctx context.Context, username string) (*domain.Profile, error) {
	c.mu.RLock()
	p, ok := c.profiles[username]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return cloneProfile(p), nil
	}

	v, err, _ := c.sf.Do("profile:"+username, func() (any, error) {
		return c.client.GetProfile(ctx, username)
	})
	if err != nil {
		return nil, err
	}
	loaded, ok := v.(*domain.Profile)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	c.mu.Lock()
	if c.gen == gen {
		c.profiles[username] = cloneProfile(loaded)
	}
	c.mu.Unlock()

	return cloneProfile(loaded), nil
}

// Replace stores a fresh copy of a.
func (c *Cache) Replace(a *domain.Activity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activities[a.ID] = cloneActivity(a)
}

func (c *Cache) ReplaceProfile(p *domain.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[p.Username] = cloneProfile(p)
}

// Invalidate drops the activity. A load already in flight is neither stored
// nor shared with readers that arrive afterwards.
func (c *Cache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.activities, id)
	c.sf.Forget("activity:" + id.String())
}

func (c *Cache) InvalidateProfile(usernames ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, name := range usernames {
		delete(c.profiles, name)
		c.sf.Forget("profile:" + name)
	}
}

// Append adds a pushed comment to its cached activity. Unknown activities
// and comments already present are ignored.
func (c *Cache) Append(comment domain.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.activities[comment.ActivityID]
	if !ok {
		return
	}
	if slices.ContainsFunc(a.Comments, func(existing domain.Comment) bool { return existing.ID == comment.ID }) {
		return
	}
	a.Comments = append(a.Comments, comment)
}

func (c *Cache) Attend(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Attend(ctx, id); err != nil {
		return err
	}
	c.Invalidate(id)
	return nil
}

func (c *Cache) Unattend(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Unattend(ctx, id); err != nil {
		return err
	}
	c.Invalidate(id)
	return nil
}

func (c *Cache) CreateActivity(ctx context.Context, input ActivityInput) (*domain.Activity, error) {
	a, err := c.client.CreateActivity(ctx, input)
	if err != nil {
		return nil, err
	}
	c.Replace(a)
	return a, nil
}

func (c *Cache) UpdateActivity(ctx context.Context, id uuid.UUID, input ActivityInput) (*domain.Activity, error) {
	a, err := c.client.UpdateActivity(ctx, id, input)
	if err != nil {
		return nil, err
	}
	c.Invalidate(id)
	return a, nil
}

func (c *Cache) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	if err := c.client.DeleteActivity(ctx, id); err != nil {
		return err
	}
	c.Invalidate(id)
	return nil
}

func (c *Cache) PostComment(ctx context.Context, activityID uuid.UUID, body string) (*domain.Comment, error) {
	comment, err := c.client.PostComment(ctx, activityID, body)
	if err != nil {
		return nil, err
	}
	c.Append(*comment)
	return comment, nil
}

// Follow invalidates both sides since both counters move.
func (c *Cache) Follow(ctx context.Context, username string) error {
	if err := c.client.Follow(ctx, username); err != nil {
		return err
	}
	c.InvalidateProfile(username, c.client.Username())
	return nil
}

func (c *Cache) Unfollow(ctx context.Context, username string) error {
	if err := c.client.Unfollow(ctx, username); err != nil {
		return err
	}
	c.InvalidateProfile(username, c.client.Username())
	return nil
}

func (c *Cache) UpdateProfile(ctx context.Context, input ProfileInput) (*domain.Profile, error) {
	p, err := c.client.UpdateProfile(ctx, input)
	if err != nil {
		return nil, err
	}
	c.InvalidateProfile(p.Username)
	return p, nil
}

func (c *Cache) UploadPhoto(ctx context.Context, filename string, r io.Reader) (*domain.Photo, error) {
	photo, err := c.client.UploadPhoto(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	c.InvalidateProfile(c.client.Username())
	return photo, nil
}

func (c *Cache) SetMainPhoto(ctx context.Context, id uuid.UUID) error {
	if err := c.client.SetMainPhoto(ctx, id); err != nil {
		return err
	}
	c.InvalidateProfile(c.client.Username())
	return nil
}

func (c *Cache) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	if err := c.client.DeletePhoto(ctx, id); err != nil {
		return err
	}
	c.InvalidateProfile(c.client.Username())
	return nil
}

func cloneActivity(a *domain.Activity) *domain.Activity {
	cp := *a
	cp.Attendees = slices.Clone(a.Attendees)
	cp.Comments = slices.Clone(a.Comments)
	return &cp
}

func cloneProfile(p *domain.Profile) *domain.Profile {
	cp := *p
	cp.Photos = slices.Clone(p.Photos)
	return &cp
}
