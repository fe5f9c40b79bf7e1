package model

import "encoding/json"

// Kind describes one family of named documents. Both families share the same
// on-disk layout and only differ in directory, payload field and labels.
type Kind struct {
	Name    string // route segment, e.g. "diff"
	Dir     string // directory under the data root
	Field   string // payload key in the stored document and in requests
	ListKey string // key wrapping the listing response
	Label   string // used in error messages
	Counted bool   // list entries report the payload length
	Empty   json.RawMessage
}

var (
	Diff = Kind{
		Name:    "diff",
		Dir:     "diffs",
		Field:   "diff",
		ListKey: "diffs",
		Label:   "Diff",
		Empty:   json.RawMessage(`{}`),
	}
	Remaps = Kind{
		Name:    "remaps",
		Dir:     "remaps",
		Field:   "remaps",
		ListKey: "remaps",
		Label:   "Remaps",
		Counted: true,
		Empty:   json.RawMessage(`[]`),
	}
)

// Entry is one row of a document listing.
type Entry struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
	Created  int64  `json:"created"`
	Count    *int   `json:"count,omitempty"`
}

type SaveResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
