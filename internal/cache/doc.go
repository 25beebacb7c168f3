// Package cache provides the process-wide, in-memory response cache.
//
// Entries live for a fixed time-to-live measured from insertion. Expired
// entries are removed lazily by Get and Has, and actively by a periodic sweep
// started with Run:
//
//	c := cache.New(cache.Config{MaxSizeBytes: 100 << 20, DefaultTTL: time.Hour})
//	go c.Run(ctx) // stops when ctx is cancelled
//
//	c.Set("port:zlib", info, 0) // default TTL
//	if v, ok := c.Get("port:zlib"); ok {
//	    info = v.(*PackageInfo)
//	}
//
// # Size Accounting
//
// The size of each value is estimated as twice the length of its JSON
// encoding. The estimate only decides when to evict; it is not a measure of
// real memory use. When an insert would exceed MaxSizeBytes a single entry,
// the oldest inserted, is evicted before the insert. One large value can
// therefore leave the cache over budget until later inserts evict more.
package cache
