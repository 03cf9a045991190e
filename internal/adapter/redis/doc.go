// Package redis implements the presence bus on Redis.
//
// Presence events travel over Pub/Sub channels ("presence:events:{topic}"),
// authoritative snapshots live in hashes ("presence:roster:{topic}") keyed
// by member id with JSON payloads carrying arrival timestamps. All client
// traffic passes through a metrics hook and a circuit breaker hook.
package redis
