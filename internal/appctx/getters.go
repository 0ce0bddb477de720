package appctx

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotInContext is returned when a key is absent from the context.
	ErrNotInContext = errors.New("key not found in context")
	// ErrValueWrongType is returned when the context value is the wrong type.
	ErrValueWrongType = errors.New("unexpected type for context key")
)

// GetStringFromContext returns the string value stored at key, if any.
func GetStringFromContext(ctx context.Context, key CTXKey) (string, error) {
	v := ctx.Value(key)
	if v == nil {
		return "", ErrNotInContext
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrValueWrongType
	}
	return s, nil
}

// GetBoolFromContext returns the bool value stored at key, defaulting to false.
func GetBoolFromContext(ctx context.Context, key CTXKey) bool {
	v, ok := ctx.Value(key).(bool)
	return ok && v
}

// GetPartnerID returns the authenticated partner id from the request context.
func GetPartnerID(ctx context.Context) (uuid.UUID, error) {
	v, ok := ctx.Value(PartnerIDCTXKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNotInContext
	}
	return v, nil
}
