package jobs

import "xetl/internal/model"

// ToRecords flattens posts into records, one per post, in the same order.
func ToRecords(handle string, posts []model.Post) []model.Record {
	out := make([]model.Record, 0, len(posts))
	for _, p := range posts {
		out = append(out, model.Record{
			User:         handle,
			Date:         p.CreatedAt.UTC().Format(model.DateLayout),
			Text:         p.Text,
			RetweetCount: p.RetweetCount,
			LikeCount:    p.LikeCount,
			ReplyCount:   p.ReplyCount,
			QuoteCount:   p.QuoteCount,
		})
	}
	return out
}
