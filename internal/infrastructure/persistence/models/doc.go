// Package models maps the bcsync tables for gorm.
// Domain types stay free of gorm tags; every model converts with ToDomain and FromDomain.
package models
