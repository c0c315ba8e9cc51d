package users

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByGoogleSub(ctx context.Context, sub string) (User, error)
	// Update writes the mutable profile, role, status and credential fields.
	Update(ctx context.Context, user User) error
	TouchSignIn(ctx context.Context, userID string, at time.Time) error
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	// All returns every user; analytics reduce over it.
	All(ctx context.Context) ([]User, error)
}
