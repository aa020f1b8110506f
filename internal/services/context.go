package services

import "context"

type contextKey string

const (
	fileKeyKey    contextKey = "file_key"
	collectionKey contextKey = "collection"
	stageKey      contextKey = "stage"
	requestIDKey  contextKey = "request_id"
)

// WithFileKey annotates context with the storage key of the file being processed.
func WithFileKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, fileKeyKey, key)
}

// FileKeyFromContext extracts the file key if present.
func FileKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(fileKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCollection annotates context with the podcast collection identifier.
func WithCollection(ctx context.Context, collection string) context.Context {
	if collection == "" {
		return ctx
	}
	return context.WithValue(ctx, collectionKey, collection)
}

// CollectionFromContext returns the collection identifier if present.
func CollectionFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(collectionKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
