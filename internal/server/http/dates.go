package httpserver

import (
	"bytes"
	"encoding/json"

	"github.com/gardenjournal/gardenjournal/internal/model"
)

// jsonDate decodes a calendar date sent either as a YYYYMMDD number or as a
// string in any layout model.ParseDate understands. Range checks are left
// to the yyyymmdd validator.
type jsonDate int

func (d *jsonDate) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := model.ParseDate(s)
		if err != nil {
			return err
		}
		*d = jsonDate(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = jsonDate(v)
	return nil
}
