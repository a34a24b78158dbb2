// Package redis connects to Redis and provides the two Redis-backed pieces of
// the notification engine: Storage, a namespaced byte cache used to cache
// templates, and Locker, a SET NX PX lock that keeps dispatcher ticks from
// overlapping across instances.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	cache := redis.NewStorage(client, cfg.KeyPrefix)
//	locker := redis.NewLocker(client, cfg.KeyPrefix)
//
//	release, ok, err := locker.TryLock(ctx, "dispatcher:tick", time.Minute)
//	if err == nil && ok {
//	    defer release(ctx)
//	}
package redis
