package grpc

import "github.com/google/uuid"

// generateSubscriberID tags a random id with the stream it subscribes to, so
// broker and bus logs show which RPC owns a subscriber.
func generateSubscriberID(stream string) string {
	return stream + "-" + uuid.NewString()
}
