// Package fakes provides in-memory repositories and collaborators shared by
// service, handler and client tests.
//
// The stores enforce the same key constraints as the schema so duplicate and
// missing-reference paths behave like postgres.
package fakes

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/events"
	"github.com/vedran77/activities/internal/repository"
)

var (
	_ repository.UserRepository     = UserRepo{}
	_ repository.ActivityRepository = ActivityRepo{}
	_ repository.FollowRepository   = FollowRepo{}
	_ repository.CommentRepository  = CommentRepo{}
	_ repository.PhotoRepository    = PhotoRepo{}
	_ events.Publisher              = (*Publisher)(nil)
)

type attendanceKey struct{ activity, user uuid.UUID }
type edgeKey struct{ observer, target uuid.UUID }

// Store backs every fake repository; hand the same Store to each of them.
type Store struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*domain.User
	activities map[uuid.UUID]*domain.Activity
	attendance map[attendanceKey]*domain.AttendanceRecord
	follows    map[edgeKey]*domain.FollowEdge
	edgeOrder  []edgeKey
	comments   []domain.Comment
	photos     map[uuid.UUID]*domain.Photo
}

func NewStore() *Store {
	return &Store{
		users:      make(map[uuid.UUID]*domain.User),
		activities: make(map[uuid.UUID]*domain.Activity),
		attendance: make(map[attendanceKey]*domain.AttendanceRecord),
		follows:    make(map[edgeKey]*domain.FollowEdge),
		photos:     make(map[uuid.UUID]*domain.Photo),
	}
}

func (m *Store) AddUser(username string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &domain.User{ID: uuid.New(), Email: username + "@example.com", Username: username, DisplayName: strings.ToUpper(username)}
	m.users[u.ID] = u
	return u
}

func (m *Store) User(id uuid.UUID) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (m *Store) Roster(activityID uuid.UUID) []domain.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AttendanceRecord
	for k, rec := range m.attendance {
		if k.activity == activityID {
			out = append(out, *rec)
		}
	}
	return out
}

// --- users ---

type UserRepo struct{ *Store }

func (r UserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return r.User(id), nil
}

func (r UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (r UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username }), nil
}

func (r UserRepo) find(match func(*domain.User) bool) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r UserRepo) UpdateProfile(_ context.Context, id uuid.UUID, displayName string, bio *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.DisplayName = displayName
		u.Bio = bio
	}
	return nil
}

// --- activities ---

type ActivityRepo struct{ *Store }

func (r ActivityRepo) CreateWithHost(_ context.Context, a *domain.Activity, host *domain.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[host.UserID]; !ok {
		return repository.ErrMissingReference
	}
	cp := *a
	r.activities[a.ID] = &cp
	rec := *host
	r.attendance[attendanceKey{host.ActivityID, host.UserID}] = &rec
	return nil
}

func (r ActivityRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.activities[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (r ActivityRepo) List(_ context.Context, viewerID uuid.UUID, filter domain.ActivityFilter) ([]domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Activity
	for _, a := range r.activities {
		rec, going := r.attendance[attendanceKey{a.ID, viewerID}]
		if filter.IsGoing && !going {
			continue
		}
		if filter.IsHost && (!going || !rec.IsHost) {
			continue
		}
		if filter.After != nil && !afterCursor(a, *filter.After, filter.AfterID) {
			continue
		}
		if filter.StartDate != nil && a.Date.Before(*filter.StartDate) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// afterCursor mirrors the row comparison (date, id) > (after, afterID).
func afterCursor(a *domain.Activity, after time.Time, afterID *uuid.UUID) bool {
	if !a.Date.Equal(after) {
		return a.Date.After(after)
	}
	return afterID != nil && bytes.Compare(a.ID[:], afterID[:]) > 0
}

func (r ActivityRepo) Update(_ context.Context, a *domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activities[a.ID]; ok {
		cp := *a
		cp.Attendees, cp.Comments = nil, nil
		r.activities[a.ID] = &cp
	}
	return nil
}

func (r ActivityRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.activities, id)
	for k := range r.attendance {
		if k.activity == id {
			delete(r.attendance, k)
		}
	}
	kept := r.comments[:0]
	for _, c := range r.comments {
		if c.ActivityID != id {
			kept = append(kept, c)
		}
	}
	r.comments = kept
	return nil
}

func (r ActivityRepo) AddAttendee(_ context.Context, rec *domain.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activities[rec.ActivityID]; !ok {
		return repository.ErrMissingReference
	}
	k := attendanceKey{rec.ActivityID, rec.UserID}
	if _, ok := r.attendance[k]; ok {
		return repository.ErrDuplicate
	}
	cp := *rec
	r.attendance[k] = &cp
	return nil
}

func (r ActivityRepo) RemoveAttendee(_ context.Context, activityID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := attendanceKey{activityID, userID}
	rec, ok := r.attendance[k]
	if !ok || rec.IsHost {
		return false, nil
	}
	delete(r.attendance, k)
	return true, nil
}

func (r ActivityRepo) GetAttendee(_ context.Context, activityID, userID uuid.UUID) (*domain.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.attendance[attendanceKey{activityID, userID}]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (r ActivityRepo) ListAttendees(_ context.Context, ids []uuid.UUID, viewerID uuid.UUID) (map[uuid.UUID][]domain.Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID][]domain.Attendee)
	for _, id := range ids {
		for k, rec := range r.attendance {
			if k.activity != id {
				continue
			}
			u := r.users[k.user]
			_, following := r.follows[edgeKey{viewerID, k.user}]
			out[id] = append(out[id], domain.Attendee{
				UserID:      u.ID,
				Username:    u.Username,
				DisplayName: u.DisplayName,
				IsHost:      rec.IsHost,
				Following:   following,
				JoinedAt:    rec.JoinedAt,
			})
		}
	}
	return out, nil
}

// --- follows ---

type FollowRepo struct{ *Store }

func (r FollowRepo) Create(_ context.Context, edge *domain.FollowEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := edgeKey{edge.ObserverID, edge.TargetID}
	if _, ok := r.follows[k]; ok {
		return repository.ErrDuplicate
	}
	cp := *edge
	r.follows[k] = &cp
	r.edgeOrder = append(r.edgeOrder, k)
	r.users[edge.ObserverID].FollowingCount++
	r.users[edge.TargetID].FollowersCount++
	return nil
}

func (r FollowRepo) Delete(_ context.Context, observerID, targetID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := edgeKey{observerID, targetID}
	if _, ok := r.follows[k]; !ok {
		return false, nil
	}
	delete(r.follows, k)
	r.users[observerID].FollowingCount--
	r.users[targetID].FollowersCount--
	return true, nil
}

func (r FollowRepo) Exists(_ context.Context, observerID, targetID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.follows[edgeKey{observerID, targetID}]
	return ok, nil
}

func (r FollowRepo) ListProfiles(_ context.Context, userID uuid.UUID, direction domain.FollowDirection, viewerID uuid.UUID) ([]domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Profile
	for _, k := range r.edgeOrder {
		if _, live := r.follows[k]; !live {
			continue
		}
		var other uuid.UUID
		switch {
		case direction == domain.Followers && k.target == userID:
			other = k.observer
		case direction == domain.Following && k.observer == userID:
			other = k.target
		default:
			continue
		}
		u := r.users[other]
		_, following := r.follows[edgeKey{viewerID, other}]
		out = append(out, domain.Profile{
			Username:       u.Username,
			DisplayName:    u.DisplayName,
			FollowersCount: u.FollowersCount,
			FollowingCount: u.FollowingCount,
			Following:      following,
		})
	}
	return out, nil
}

func (r FollowRepo) ReconcileCounts(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	followers := make(map[uuid.UUID]int)
	following := make(map[uuid.UUID]int)
	for k := range r.follows {
		followers[k.target]++
		following[k.observer]++
	}
	var fixed int64
	for id, u := range r.users {
		if u.FollowersCount != followers[id] || u.FollowingCount != following[id] {
			u.FollowersCount, u.FollowingCount = followers[id], following[id]
			fixed++
		}
	}
	return fixed, nil
}

// --- comments ---

type CommentRepo struct{ *Store }

func (r CommentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activities[c.ActivityID]; !ok {
		return repository.ErrMissingReference
	}
	r.comments = append(r.comments, *c)
	return nil
}

func (r CommentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comments {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r CommentRepo) ListByActivity(_ context.Context, activityID uuid.UUID) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.comments {
		if c.ActivityID == activityID {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- photos ---

type PhotoRepo struct{ *Store }

func (r PhotoRepo) Create(_ context.Context, p *domain.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[p.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	p.IsMain = true
	for _, other := range r.photos {
		if other.UserID == p.UserID && other.IsMain {
			p.IsMain = false
		}
	}
	cp := *p
	r.photos[p.ID] = &cp
	if p.IsMain {
		url := p.URL
		u.ImageURL = &url
	}
	return nil
}

func (r PhotoRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.photos[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r PhotoRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Photo
	for _, p := range r.photos {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r PhotoRepo) SetMain(_ context.Context, userID, photoID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.photos[photoID]
	if !ok || target.UserID != userID {
		return domain.ErrNotFound
	}
	for _, p := range r.photos {
		if p.UserID == userID {
			p.IsMain = false
		}
	}
	target.IsMain = true
	url := target.URL
	r.users[userID].ImageURL = &url
	return nil
}

func (r PhotoRepo) Delete(_ context.Context, userID, photoID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.photos[photoID]
	if !ok || p.UserID != userID || p.IsMain {
		return false, nil
	}
	delete(r.photos, photoID)
	return true, nil
}

// --- collaborators ---

// Publisher records every event it is handed.
type Publisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *Publisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *Publisher) Close() error { return nil }

func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// Notifier records comments, or fails with Err when set.
type Notifier struct {
	Err error

	mu   sync.Mutex
	sent []domain.Comment
}

func (n *Notifier) NotifyNewComment(_ context.Context, c *domain.Comment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, *c)
	return nil
}

// ObjectStore implements storage.Storage in memory.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

func (s *ObjectStore) Write(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *ObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *ObjectStore) URL(key string) string { return "/uploads/" + key }

func (s *ObjectStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (n *Notifier) Sent() []domain.Comment {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Comment(nil), n.sent...)
}

func (s *ObjectStore) Get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

func (s *ObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// DriftCounters overwrites a user's cached counters without touching edges.
func (m *Store) DriftCounters(id uuid.UUID, followers, following int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.FollowersCount, u.FollowingCount = followers, following
	}
}
