package models

import (
	"encoding/json"
	"fmt"
)

// Answer is the structured payload produced by the retrieval/generation
// capability: a drafted answer plus the sources it was grounded in.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source cites one retrieved document. The capability may return sources
// either as objects ({url, title}) or as bare strings; a bare string is
// treated as a title.
type Source struct {
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// UnmarshalJSON accepts both the object and the bare-string source forms.
func (s *Source) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var title string
		if err := json.Unmarshal(data, &title); err != nil {
			return err
		}
		s.Title = title
		return nil
	}

	type sourceAlias Source
	var alias sourceAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("decoding source: %w", err)
	}
	*s = Source(alias)
	return nil
}
