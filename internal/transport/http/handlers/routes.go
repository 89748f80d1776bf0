package handlers

import "net/http"

// Set groups the handlers mounted under /api/v1.
type Set struct {
	Auth       *AuthHandler
	Activities *ActivityHandler
	Comments   *CommentHandler
	Profiles   *ProfileHandler
	Photos     *PhotoHandler
}

// Register mounts every API route; auth guards everything but register and login.
func (s Set) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth(h))
	}

	// Public
	mux.HandleFunc("POST /api/v1/auth/register", s.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", s.Auth.Login)
	protected("GET /api/v1/auth/me", s.Auth.Me)

	// Activities
	protected("GET /api/v1/activities", s.Activities.List)
	protected("POST /api/v1/activities", s.Activities.Create)
	protected("GET /api/v1/activities/{id}", s.Activities.Get)
	protected("PUT /api/v1/activities/{id}", s.Activities.Update)
	protected("DELETE /api/v1/activities/{id}", s.Activities.Delete)
	protected("POST /api/v1/activities/{id}/attend", s.Activities.Attend)
	protected("DELETE /api/v1/activities/{id}/attend", s.Activities.Unattend)

	// Comments
	protected("GET /api/v1/activities/{id}/comments", s.Comments.List)
	protected("POST /api/v1/activities/{id}/comments", s.Comments.Post)

	// Profiles
	protected("PUT /api/v1/profiles", s.Profiles.Update)
	protected("GET /api/v1/profiles/{username}", s.Profiles.Get)
	protected("POST /api/v1/profiles/{username}/follow", s.Profiles.Follow)
	protected("DELETE /api/v1/profiles/{username}/follow", s.Profiles.Unfollow)
	protected("GET /api/v1/profiles/{username}/follow", s.Profiles.ListRelated)

	// Photos
	protected("POST /api/v1/photos", s.Photos.Upload)
	protected("POST /api/v1/photos/{id}/main", s.Photos.SetMain)
	protected("DELETE /api/v1/photos/{id}", s.Photos.Delete)
}
