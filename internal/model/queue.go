package model

// DateLayout is the calendar date format used for scheduled publish dates
const DateLayout = "2006-01-02"

// QueueEntry represents a generated article waiting for its publish date
type QueueEntry struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Keyword   string `json:"keyword"`
	Category  string `json:"category"`
	PubDate   string `json:"pub_date"`
	File      string `json:"file"`
	Chars     int    `json:"chars"`
	Published bool   `json:"published"`
}

// Topic is a single post idea returned by the topic planner
type Topic struct {
	Title    string `json:"title"`
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Day      int    `json:"day"`
}

// Keyword is a trending term with its weighted mention count
type Keyword struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Post describes a page in the live output directory
type Post struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Date        string `json:"date,omitempty"`
	Image       string `json:"image,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
}
