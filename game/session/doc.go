// Package session keeps simulation sessions in memory and, optionally, in a
// persistent store.
//
// Manager is the thread-safe registry. Sessions get random 4-character hex IDs
// unless the caller picks one, and lookups ignore case. With a
// SessionPersistence attached, the manager saves sessions on create and
// access and loads unknown IDs from the store on demand.
//
// Two stores are provided:
//   - FilePersistence writes one JSON file per session
//   - SQLitePersistence keeps sessions in a sessions table
//
// Both store the layout next to the simulation state. Restoring a session
// rebuilds the board from that layout and the saved carts.
//
// Usage:
//
//	store, err := session.NewSQLitePersistence("sessions/sessions.db", configManager)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(store)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Printf("Warning: %v", err)
//	}
//
//	sess, err := manager.Create("", layout)
package session
