// Package cache provides a namespaced, TTL-based, two-tier key-value cache
// shared by the tool's processes through the filesystem.
//
// # Tiers
//
// Every [Store] keeps an in-process map (the hot tier, guarded by one mutex)
// in front of a disk tier of one locked JSON document per entry (via
// [github.com/DrayChou/gaccode-statusline/lockfile]). [Store.Get] checks the
// map first and promotes disk hits into it; [Store.Set] writes both tiers
// synchronously, so a reader in the same process never sees a stale miss
// right after a peer's Set. Other processes see the disk tier only.
//
// # Keys and namespaces
//
// Keys are "namespace:key", extended to "namespace:key:hash8" when call
// parameters are supplied. Parameters are canonicalized (JSON with sorted
// map keys, no incidental whitespace) before hashing, so two semantically
// identical parameter maps always land on the same slot. Each namespace
// carries a default TTL ("balance" 5m, "subscription" 1h, "session" 24h,
// ...); namespaces outside the table fall back to 5 minutes rather than
// failing, since namespaces are caller-defined categories, not a closed set.
//
// # Expiry
//
// Realized TTLs get ±10% random jitter with a 60 second floor so entries
// seeded together do not all expire in the same instant. Expired entries are
// dropped lazily when a Get touches them and eagerly by
// [Store.CleanupExpired], which also removes disk entries that no longer
// parse.
//
// # Failure handling
//
// Any storage error degrades to "absent": callers cannot distinguish a
// genuine miss from a broken disk, and [Store.Set] reports success as a
// bool. Decisions about degraded mode belong to the caller.
package cache
