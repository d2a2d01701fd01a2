package assembler

import "encoding/json"

// Fragment is one partial delta of a tool call, keyed by Index within a
// single model response. The *Set fields distinguish "key absent" from
// "key present" (including present-and-null for ID), since only a
// present id, type or function.name participates in the merge.
type Fragment struct {
	Index int

	ID    *string // non-nil only meaningful when IDSet; nil+IDSet means explicit null
	IDSet bool

	Name    string
	NameSet bool

	ArgumentsDelta string

	Type    string
	TypeSet bool
}

// UnmarshalJSON decodes a wire-shaped fragment, tracking field presence
// via a raw map so an explicit null id is distinguishable from an absent
// one (encoding/json alone collapses both to a nil pointer).
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["index"]; ok {
		if err := json.Unmarshal(v, &f.Index); err != nil {
			return err
		}
	}

	if v, ok := raw["id"]; ok {
		f.IDSet = true
		if string(v) != "null" {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			f.ID = &s
		} else {
			f.ID = nil
		}
	}

	if v, ok := raw["type"]; ok {
		f.TypeSet = true
		if err := json.Unmarshal(v, &f.Type); err != nil {
			return err
		}
	}

	if fnRaw, ok := raw["function"]; ok {
		var fn map[string]json.RawMessage
		if err := json.Unmarshal(fnRaw, &fn); err != nil {
			return err
		}
		if v, ok := fn["name"]; ok {
			f.NameSet = true
			if err := json.Unmarshal(v, &f.Name); err != nil {
				return err
			}
		}
		if v, ok := fn["arguments"]; ok {
			if err := json.Unmarshal(v, &f.ArgumentsDelta); err != nil {
				return err
			}
		}
	}

	return nil
}

// AssembledCall is a fully merged tool call with validated JSON arguments.
type AssembledCall struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
