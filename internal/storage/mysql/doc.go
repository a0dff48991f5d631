// Package mysql persists swap history in MySQL (or a JSON log for local
// runs) and owns the embedded schema migrations shared with the task store.
package mysql
