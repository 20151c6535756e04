package types

// Bounds is an on-screen rectangle in window coordinates.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TabState is the lifecycle position of a tab.
type TabState string

const (
	TabAbsent   TabState = "absent"
	TabCreated  TabState = "created"
	TabActive   TabState = "active"
	TabInactive TabState = "inactive"
	TabClosing  TabState = "closing"
	TabClosed   TabState = "closed"
)

// TabInfo describes an open tab as reported to API callers.
type TabInfo struct {
	ID       int      `json:"id"`
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	State    TabState `json:"state"`
	Attached bool     `json:"attached"`
}
