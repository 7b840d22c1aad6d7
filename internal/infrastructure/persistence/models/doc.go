// Package models contains GORM persistence models. They are kept apart from
// the domain types, which carry no ORM tags; ToDomain/FromDomain convert
// between the two.
package models
