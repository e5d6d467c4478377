package models

import (
	"time"
)

// Property is the canonical, stored form of one rental listing. ID is the
// stable dedup key across fetches; everything else may change on
// re-observation.
type Property struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Price        int       `json:"price" db:"price"`
	Address      string    `json:"address" db:"address"`
	Neighborhood string    `json:"neighborhood" db:"neighborhood"`
	Rooms        float64   `json:"rooms" db:"rooms"`
	Floor        int       `json:"floor" db:"floor"`
	SizeSqm      int       `json:"size_sqm" db:"size_sqm"`
	Images       []string  `json:"images" db:"images"`
	Amenities    []string  `json:"amenities" db:"amenities"`
	ContactName  string    `json:"contact_name" db:"contact_name"`
	Phone        string    `json:"phone" db:"phone"`
	Description  string    `json:"description" db:"description"`
	URL          string    `json:"url" db:"url"`
	FirstSeen    time.Time `json:"first_seen" db:"first_seen"`
	LastSeen     time.Time `json:"last_seen" db:"last_seen"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	IsNotified   bool      `json:"is_notified" db:"is_notified"`
}
