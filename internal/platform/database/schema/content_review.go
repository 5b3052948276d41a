// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// ContentReviewTable represents the 'content.review' table
type ContentReviewTable struct {
	Table     string
	ID        string
	OwnerID   string
	Rating    string
	Body      string
	CreatedAt string
}

// ContentReview is the schema definition for content.review
var ContentReview = ContentReviewTable{
	Table:     "content.review",
	ID:        "id",
	OwnerID:   "ownerid",
	Rating:    "rating",
	Body:      "body",
	CreatedAt: "createdat",
}
