package httpserver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONDate(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]int{
		`20160504`:               20160504,
		`"20160504"`:             20160504,
		`"2016-05-04"`:           20160504,
		`"2016-05-04T22:10:00Z"`: 20160504,
	} {
		var d jsonDate
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		require.Equal(t, jsonDate(want), d, in)
	}

	for _, in := range []string{`"spring"`, `""`, `true`, `2016.5`} {
		var d jsonDate
		require.Error(t, json.Unmarshal([]byte(in), &d), in)
	}

	var req struct {
		Planted *jsonDate `json:"plantedDate"`
		Date    jsonDate  `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"plantedDate":null,"date":null}`), &req))
	require.Nil(t, req.Planted)
	require.Zero(t, req.Date)
}

func TestJSONDate_Validator(t *testing.T) {
	t.Parallel()

	v := newValidator()
	good, bad := jsonDate(20240229), jsonDate(20230229)
	require.NoError(t, v.Struct(plantRequest{LocationID: "0123456789abcdef01234567", Title: "Fig", PlantedDate: &good}))
	require.Error(t, v.Struct(plantRequest{LocationID: "0123456789abcdef01234567", Title: "Fig", PlantedDate: &bad}))
	require.Error(t, v.Struct(noteRequest{Date: bad}))
	require.NoError(t, v.Struct(noteRequest{Date: good}))
}
