package host

import (
	"encoding/json"
	"fmt"
)

// Handle is a node handle into the client's handle table. Doc identifies the
// document instance; handles from a previous document are stale.
type Handle struct {
	Doc int
	ID  int
}

func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{h.Doc, h.ID})
}

func (h *Handle) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("host: handle: %w", err)
	}
	h.Doc, h.ID = pair[0], pair[1]
	return nil
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Doc, h.ID)
}
