// Package models contains the GORM persistence models.
//
// Domain types stay free of storage tags; each model converts with
// ToDomain and FromDomain. Column types are written so that the same models
// migrate on postgres and on the sqlite databases used in tests.
package models
