package queue

import "context"

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Delivery is a received message body plus the handle needed to acknowledge it.
type Delivery struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Consumer receives and acknowledges queued messages.
type Consumer interface {
	Receive(ctx context.Context, max int32) ([]Delivery, error)
	Delete(ctx context.Context, receiptHandle string) error
}
