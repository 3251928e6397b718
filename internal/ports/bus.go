package ports

import "context"

// Bus is the publish side of the pub/sub client.
type Bus interface {
	Publish(topic string, payload []byte, retain bool) error
}

// BusClient owns the broker connection. Connectivity changes are reported
// as domain.ConnEvent through the subject handed to the adapter.
type BusClient interface {
	Bus
	Connect(ctx context.Context) error
	Close()
}
