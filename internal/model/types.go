package model

import "time"

// User represents the subset of X user fields used to resolve an account.
type User struct {
	ID        string
	Username  string
	Name      string
	CreatedAt time.Time
}

// Post represents the subset of X post fields the export reads.
type Post struct {
	ID           string
	AuthorID     string
	Text         string
	CreatedAt    time.Time
	RetweetCount int
	LikeCount    int
	ReplyCount   int
	QuoteCount   int
}

// Record is the flattened tabular form of one Post.
type Record struct {
	User         string
	Date         string
	Text         string
	RetweetCount int
	LikeCount    int
	ReplyCount   int
	QuoteCount   int
}

// DateLayout is the layout of Record.Date.
const DateLayout = time.RFC3339
