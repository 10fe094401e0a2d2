// Package redis opens the Redis client used by the dedupe transport.
//
// Open parses a redis:// or rediss:// URL, applies the pool settings from
// Config and pings the server, retrying with a linear backoff until the
// attempts run out or the context is done:
//
//	client, err := redis.Open(ctx, redis.Config{URL: "redis://localhost:6379/0"})
//	if err != nil {
//		return err
//	}
//	defer redis.Shutdown(client)(ctx)
//
//	sender := dedupe.New(transport, client)
//
// Zero values in Config fall back to the defaults listed on each field.
package redis
