// Package models defines the persistent entities of the qrtune relay.
//
// The only entity is [Scan]: one QR payload submitted to /resolve (or the CLI/TUI resolver),
// classified with the links package and stored for the history views.
//
// Entities implement [Model] providing ID generation, timestamps, validation, and soft delete support.
// The [Repository] interface defines standard CRUD operations for database access.
package models
