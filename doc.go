// Package storage is the root of the session persistence module.
//
// Sessions are read, written, destroyed and garbage collected through session.Store,
// which implements the session.Handler lifecycle a web framework calls. A Store
// delegates to a session.Collection:
//
//   - drivers.MongoCollection, one document per session in MongoDB
//   - drivers.RedisCollection, one hash per session plus a modified-time index
//   - supabase.Collection, one row per session in a Supabase table
//   - drivers.MemoryCollection, for tests and single-process use
//
// Usage:
//
//	coll := drivers.NewMongoCollection(client.Database("app").Collection("sessions"))
//	store, err := session.NewStore(session.WithCollection(coll))
//	payload, err := store.Read(ctx, id)
package storage
