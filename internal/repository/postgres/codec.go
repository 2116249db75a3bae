package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// jsonArg marshals v for a JSONB parameter; a nil value becomes SQL NULL.
func jsonArg[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// jsonScan unmarshals a nullable JSONB column.
func jsonScan[T any](b []byte) (*T, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// membersArg renders the members map as a JSON object keyed by external ids,
// which is how the document stores it.
func membersArg(m map[ident.ID]model.Role) ([]byte, error) {
	out := make(map[string]model.Role, len(m))
	for k, v := range m {
		out[ident.ToExternal(k)] = v
	}
	return json.Marshal(out)
}

func membersScan(b []byte) (map[ident.ID]model.Role, error) {
	raw := map[string]model.Role{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, err
		}
	}
	out := make(map[ident.ID]model.Role, len(raw))
	for k, v := range raw {
		id, err := ident.ToInternal(k)
		if err != nil {
			return nil, fmt.Errorf("members key: %w", err)
		}
		out[id] = v
	}
	return out, nil
}

func stationsArg(s map[string]model.Station) ([]byte, error) {
	if s == nil {
		s = map[string]model.Station{}
	}
	return json.Marshal(s)
}

func stationsScan(b []byte) (map[string]model.Station, error) {
	out := map[string]model.Station{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func imagesArg(imgs []model.Image) ([]byte, error) {
	if imgs == nil {
		imgs = []model.Image{}
	}
	return json.Marshal(imgs)
}

func imagesScan(b []byte) ([]model.Image, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var out []model.Image
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// imageMatch is the containment filter for notes carrying imageID.
func imageMatch(imageID string) ([]byte, error) {
	return json.Marshal([]map[string]string{{"id": imageID}})
}
