package model

// CatalogEntry is one cataloged software repository. Entries are owned by
// the catalog and treated as read-only.
type CatalogEntry struct {
	UID      string         `json:"uid"`
	URL      string         `json:"url"`
	Filename string         `json:"filename"` // absolute path of the entry's metadata file
	Data     map[string]any `json:"data,omitempty"`
}

// DOIs returns the DOI candidates declared by the entry, in declaration order.
// The identifier may live at the top level of the metadata or under a nested
// "data" object, and may be a single string or a list.
func (e *CatalogEntry) DOIs() []string {
	if e == nil || e.Data == nil {
		return nil
	}
	if dois := doiValues(e.Data["doi"]); len(dois) > 0 {
		return dois
	}
	if nested, ok := e.Data["data"].(map[string]any); ok {
		return doiValues(nested["doi"])
	}
	return nil
}

func doiValues(v any) []string {
	switch d := v.(type) {
	case string:
		if d == "" {
			return nil
		}
		return []string{d}
	case []string:
		return nonEmpty(d)
	case []any:
		out := make([]string, 0, len(d))
		for _, item := range d {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
