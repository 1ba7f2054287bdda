package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexID is a row id that clients may send as a number or a numeric string.
type FlexID uint

func (f *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexID(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		val, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("FlexID: invalid id string %q: %w", s, err)
		}
		*f = FlexID(val)
		return nil
	}

	return fmt.Errorf("FlexID: unexpected type, expected number or string")
}

func (f FlexID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint(f))
}

func (f FlexID) Uint() uint {
	return uint(f)
}

// IDs converts a FlexList of FlexID to plain ids.
func IDs(list FlexList[FlexID]) []uint {
	out := make([]uint, 0, len(list))
	for _, id := range list {
		out = append(out, id.Uint())
	}
	return out
}
