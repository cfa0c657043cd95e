package domain

// Conference is the central record flowing from scanners through dedup,
// classification and reconciliation into the workbook.
type Conference struct {
	Title              string
	SubmissionDeadline string
	Deadline           Deadline
	ConferenceDates    string
	Location           string
	KeynoteSpeakers    string
	Description        string
	Topics             string
	URL                string
	Source             string

	// PageText is the raw scraped text used as classification input. It is
	// never persisted.
	PageText string
}

// Extraction holds the structured fields returned by the classifier.
// Empty fields mean "unknown".
type Extraction struct {
	SubmissionDeadline string `json:"submission_deadline"`
	DeadlineDate       string `json:"deadline_date"`
	ConferenceDates    string `json:"conference_dates"`
	Location           string `json:"location"`
	KeynoteSpeakers    string `json:"keynote_speakers"`
	Description        string `json:"description"`
	Topics             string `json:"topics"`
}

// Relevance is the outcome of a topical relevance check.
type Relevance struct {
	Relevant       bool   `json:"relevant"`
	Reason         string `json:"reason"`
	DetectedTopics string `json:"detected_topics"`
}

// TopicFilter carries the include/exclude topic lists of a run.
type TopicFilter struct {
	Include string
	Exclude string
}

// Active reports whether any topic filtering was requested.
func (f TopicFilter) Active() bool {
	return f.Include != "" || f.Exclude != ""
}
