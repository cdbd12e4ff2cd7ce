package screen

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CompositeIndex addresses the synthetic "all screens" capture. It is not a
// real display and marshals as the string "all" on the wire.
const CompositeIndex Index = -1

// Index identifies one display. Real displays are numbered from 0 in the
// order the platform reports them; the numbering is stable for the lifetime
// of a capture session.
type Index int

func (i Index) String() string {
	if i == CompositeIndex {
		return "all"
	}
	return strconv.Itoa(int(i))
}

func (i Index) MarshalJSON() ([]byte, error) {
	if i == CompositeIndex {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.Itoa(int(i))), nil
}

func (i *Index) UnmarshalJSON(data []byte) error {
	if string(data) == `"all"` {
		*i = CompositeIndex
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid screen index %s", data)
	}
	*i = Index(n)
	return nil
}

// Screen describes one monitor and its position in the global virtual
// desktop. Left/Top can be negative on multi-monitor setups.
type Screen struct {
	Index   Index  `json:"index"`
	Primary bool   `json:"primary"`
	Left    int    `json:"left"`
	Top     int    `json:"top"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Name    string `json:"name"`
}
