package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	cases := []struct {
		name     string
		frame    string
		wantType string
		wantMsg  string
		wantData string
	}{
		{"error", `{"error":"boom"}`, TypeError, "boom", ""},
		{"error wins over event", `{"error":"boom","event":"write"}`, TypeError, "boom", ""},
		{"error with message override", `{"error":"boom","message":"detail"}`, TypeError, "detail", ""},
		{"event", `{"event":"success"}`, EventSuccess, "", ""},
		{"event with message", `{"event":"success","message":"hi"}`, EventSuccess, "hi", ""},
		{"event with data", `{"event":"write","data":{"x":1}}`, EventWrite, "", `{"x":1}`},
		{"plain message", `{"message":"hello"}`, TypeMessage, "hello", ""},
		{"unknown", `{"something":"else"}`, TypeUnknown, "", ""},
		{"unknown with data", `{"data":[1,2]}`, TypeUnknown, "", `[1,2]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Parse([]byte(tc.frame))
			require.NoError(t, err)
			assert.Equal(t, tc.wantType, msg.Type)
			assert.Equal(t, tc.wantMsg, msg.Message)
			if tc.wantData == "" {
				assert.Empty(t, msg.Data)
			} else {
				assert.JSONEq(t, tc.wantData, string(msg.Data))
			}
		})
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("not json"))
	require.Error(t, err)
}

func TestProducers(t *testing.T) {
	assert.JSONEq(t, `{"message":"hi"}`, string(Normal("hi")))
	assert.JSONEq(t, `{"error":"boom"}`, string(Error("boom")))
	assert.JSONEq(t, `{"event":"success","message":"ok"}`, string(SuccessEvent("ok")))
	assert.JSONEq(t, `{"event":"write","data":{"x":1}}`, string(WriteEvent(json.RawMessage(`{"x":1}`))))
	assert.JSONEq(t, `{"event":"read","data":{"x":1}}`, string(ReadEvent(json.RawMessage(`{"x":1}`))))
	// Absent data renders as an empty object, matching a never-written fragment.
	assert.JSONEq(t, `{"event":"read","data":{}}`, string(ReadEvent(nil)))
}

func TestProducersRoundTrip(t *testing.T) {
	msg, err := Parse(SuccessEvent("connected"))
	require.NoError(t, err)
	assert.Equal(t, EventSuccess, msg.Type)
	assert.Equal(t, "connected", msg.Message)

	msg, err = Parse(WriteEvent(json.RawMessage(`{"k":"v"}`)))
	require.NoError(t, err)
	assert.Equal(t, EventWrite, msg.Type)
	assert.JSONEq(t, `{"k":"v"}`, string(msg.Data))
}
