// Package ctxhelper provides helper functions for working with the context
package ctxhelper

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/auth"
	"github.com/gamemixer/gamemixer-api/internal/models"
)

var (
	// KeyUser is the context key for storing the user object associated with the current call
	KeyUser = ctxKey("user")
	// KeyClaims is the context key for the contents of the access token sent with the current call
	KeyClaims = ctxKey("claims")
	// KeyAuthError is the context key for storing the reason why a sent access token has been rejected
	KeyAuthError = ctxKey("authError")
	// KeyLogger is the context key for storing the logger in the context
	KeyLogger = ctxKey("logger")
)

// internal context key
type ctxKey string

// User returns the user from the current context, if available
func User(ctx context.Context) *models.User {
	usr, ok := ctx.Value(KeyUser).(models.User)
	if ok {
		return &usr
	}
	return nil
}

// Claims returns the validated access token contents of the current call, if available
func Claims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(KeyClaims).(*auth.Claims)
	return claims
}

// AuthError returns the error that occurred while checking the access token of the current call, if any
func AuthError(ctx context.Context) error {
	err, _ := ctx.Value(KeyAuthError).(error)
	return err
}

// Logger returns the logger from the current context. If no logger is available, it panics
func Logger(ctx context.Context) *logrus.Entry {
	logger, ok := ctx.Value(KeyLogger).(*logrus.Entry)
	if ok {
		return logger
	}
	panic("No logger in context")
}

// WithLogger returns a copy of the context carrying the given logger
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, KeyLogger, logger)
}
