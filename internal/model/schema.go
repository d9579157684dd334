package model

import "strconv"

// Schema names the columns of the exported table. Consumers read Version
// from the object metadata to notice column changes.
type Schema struct {
	Version int
	Columns []string
}

// RecordSchema is the current export layout.
var RecordSchema = Schema{
	Version: 1,
	Columns: []string{"user", "date", "text", "retweet_count", "like_count", "reply_count", "quote_count"},
}

// Row returns r's values in RecordSchema column order.
func (r Record) Row() []string {
	return []string{
		r.User,
		r.Date,
		r.Text,
		strconv.Itoa(r.RetweetCount),
		strconv.Itoa(r.LikeCount),
		strconv.Itoa(r.ReplyCount),
		strconv.Itoa(r.QuoteCount),
	}
}
