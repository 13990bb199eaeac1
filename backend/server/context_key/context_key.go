// Package contextKey defines the typed keys under which request-scoped
// identity data is stored, so that no two packages can collide on a raw string.
package contextKey

type key string

// UserIDKey holds the authenticated caller's user id (hex string).
const UserIDKey = key("user_id")

// RoleKey holds the authenticated caller's role.
const RoleKey = key("role")
