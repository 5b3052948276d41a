// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// ContentItineraryTable represents the 'content.itinerary' table
type ContentItineraryTable struct {
	Table     string
	ID        string
	OwnerID   string
	Title     string
	CreatedAt string
}

// ContentItinerary is the schema definition for content.itinerary
var ContentItinerary = ContentItineraryTable{
	Table:     "content.itinerary",
	ID:        "id",
	OwnerID:   "ownerid",
	Title:     "title",
	CreatedAt: "createdat",
}
