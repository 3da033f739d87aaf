// Package social holds the tracker's domain model: platforms, tracked
// accounts, the per-group registry and the error taxonomy shared by fetchers,
// storage drivers and the tracker itself.
package social
