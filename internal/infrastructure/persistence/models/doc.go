// Package models contains GORM persistence models. Domain types carry no
// ORM tags; repositories convert between the two with ToDomain/FromDomain.
//
//   - base.go: columns shared by tenant-scoped aggregates
//   - procurement.go: purchase orders, lines, deliveries, delivery lines
//   - outbox.go: transactional outbox rows
package models
