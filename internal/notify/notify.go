// Package notify defines the publisher interface for digest completion events.
package notify

import "context"

// Publisher emits a notification after a digest has been stored.
type Publisher interface {
	// Publish sends the payload to the given topic and returns a message ID.
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
