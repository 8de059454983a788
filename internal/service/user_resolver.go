package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"kbmigrate/internal/data"
	"kbmigrate/internal/logger"
)

// UserSource defines the interface for reading source users.
type UserSource interface {
	GetAll(ctx context.Context) ([]*data.User, error)
}

// UserResolver maps source user ids to display names.
type UserResolver struct {
	names   map[int64]string
	missing map[int64]bool
	log     logger.Logger
}

// NewUserResolver loads all users once.
func NewUserResolver(ctx context.Context, src UserSource, log logger.Logger) (*UserResolver, error) {
	users, err := src.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	r := &UserResolver{
		names:   make(map[int64]string, len(users)),
		missing: make(map[int64]bool),
		log:     log,
	}
	for _, u := range users {
		if name := displayName(u); name != "" {
			r.names[u.ID] = name
		}
	}
	return r, nil
}

func displayName(u *data.User) string {
	if login := strings.TrimSpace(data.Str(u.Login)); login != "" {
		return login
	}
	return strings.TrimSpace(data.Str(u.FirstName) + " " + data.Str(u.LastName))
}

// Name returns the login, else "first last", else the decimal id. Each
// unresolvable id is reported once.
func (r *UserResolver) Name(id int64) string {
	if name, ok := r.names[id]; ok {
		return name
	}
	if !r.missing[id] {
		r.missing[id] = true
		r.log.With(map[string]interface{}{"user_id": id}).Warn("user name not resolvable, using id")
	}
	return strconv.FormatInt(id, 10)
}
