// Package models defines the core domain models for the grocer points backend.
//
// # Models
//
//   - User: a registered account holding a distributable pool of points
//   - Grocer: a participating merchant that receives allocated points
//   - Allocation: the current (user, grocer) point assignment
//
// # Design Principles
//
//  1. **Single authoritative balance**: User.AvailablePoints is the only mutable
//     per-user quantity; there is no separately persisted initial grant.
//  2. **Derived totals stay consistent**: Grocer.ReceivedPoints always equals the
//     sum of allocation points referencing that grocer. Only the storage layer's
//     reallocation transaction may move points between the two.
//  3. **Avoid circular references**: models reference each other by ID strings,
//     never by pointers.
package models
