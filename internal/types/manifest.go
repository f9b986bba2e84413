package types

import "encoding/json"

// Manifest is the metadata of one package version. Name, Version and
// Deprecated are lifted out for the engine; every other field is kept
// verbatim in Fields so it survives fix and merge operations.
type Manifest struct {
	Name       string
	Version    string
	Deprecated string
	Fields     map[string]json.RawMessage
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		var target *string
		switch key {
		case "name":
			target = &m.Name
		case "version":
			target = &m.Version
		case "deprecated":
			target = &m.Deprecated
		}
		// empty strings stay in fields so an explicit "" is written back
		if target == nil || json.Unmarshal(value, target) != nil || *target == "" {
			fields[key] = value
		}
	}
	m.Fields = fields
	return nil
}

func (m Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Fields)+3)
	for key, value := range m.Fields {
		out[key] = value
	}
	for key, value := range map[string]string{
		"name":       m.Name,
		"version":    m.Version,
		"deprecated": m.Deprecated,
	} {
		if value == "" {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		out[key] = encoded
	}
	return json.Marshal(out)
}

// Clone returns a deep copy; Fields are copied byte for byte.
func (m Manifest) Clone() Manifest {
	clone := m
	if m.Fields != nil {
		clone.Fields = make(map[string]json.RawMessage, len(m.Fields))
		for key, value := range m.Fields {
			clone.Fields[key] = append(json.RawMessage(nil), value...)
		}
	}
	return clone
}

// Field decodes the open field key into out. It reports false when the
// field is absent.
func (m Manifest) Field(key string, out any) (bool, error) {
	value, ok := m.Fields[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(value, out); err != nil {
		return true, err
	}
	return true, nil
}
