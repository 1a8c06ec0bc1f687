package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyReceiptID contextKey = "receipt_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithReceiptID adds a receipt group ID to the context
func WithReceiptID(ctx context.Context, receiptID string) context.Context {
	return context.WithValue(ctx, ContextKeyReceiptID, receiptID)
}

// ReceiptIDFromContext extracts the receipt group ID from context
func ReceiptIDFromContext(ctx context.Context) string {
	if receiptID, ok := ctx.Value(ContextKeyReceiptID).(string); ok {
		return receiptID
	}
	return ""
}

// WithTimeout creates a context with the specified timeout; zero means no timeout.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
