package bridge_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Alia5/airmouse/bridge"
	"github.com/Alia5/airmouse/link"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMockTransport(t *testing.T) {
	type testCase struct {
		name      string
		response  string
		call      func(c *bridge.Client) (any, error)
		wantPath  string
		wantBody  string
		expected  any
		expectErr int
	}

	testCases := []testCase{
		{
			name:     "ping",
			response: `{"server":"VIIPER","version":"1.0"}`,
			call:     func(c *bridge.Client) (any, error) { return c.Ping(context.Background()) },
			wantPath: "ping",
			expected: &bridge.PingResponse{Server: "VIIPER", Version: "1.0"},
		},
		{
			name:     "bus create",
			response: `{"busId":3}`,
			call:     func(c *bridge.Client) (any, error) { return c.BusCreate(context.Background(), 3) },
			wantPath: "bus/create",
			wantBody: "3",
			expected: &bridge.BusCreateResponse{BusID: 3},
		},
		{
			name:      "bus conflict",
			response:  `{"status":409,"title":"Conflict","detail":"bus 3 exists"}`,
			call:      func(c *bridge.Client) (any, error) { return c.BusCreate(context.Background(), 3) },
			wantPath:  "bus/create",
			wantBody:  "3",
			expectErr: bridge.StatusConflict,
		},
		{
			name:     "device add",
			response: `{"busId":7,"devId":"2","vid":"0x2e8a","pid":"0x0011","type":"mouse"}`,
			call:     func(c *bridge.Client) (any, error) { return c.DeviceAdd(context.Background(), 7, "mouse") },
			wantPath: "bus/7/add",
			wantBody: `{"type":"mouse"}`,
			expected: &bridge.Device{BusID: 7, DevID: "2", Vid: "0x2e8a", Pid: "0x0011", Type: "mouse"},
		},
		{
			name:     "device remove",
			response: `{"busId":7,"devId":"2"}`,
			call:     func(c *bridge.Client) (any, error) { return c.DeviceRemove(context.Background(), 7, "2") },
			wantPath: "bus/7/remove",
			wantBody: "2",
			expected: &bridge.DeviceRemoveResponse{BusID: 7, DevID: "2"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotPath, gotBody string
			c := bridge.WithTransport(bridge.NewMockTransport(func(path string, payload any) (string, error) {
				gotPath = path
				switch p := payload.(type) {
				case nil:
				case string:
					gotBody = p
				default:
					b, err := json.Marshal(p)
					require.NoError(t, err)
					gotBody = string(b)
				}
				return tc.response, nil
			}))

			out, err := tc.call(c)
			assert.Equal(t, tc.wantPath, gotPath)
			assert.Equal(t, tc.wantBody, gotBody)
			if tc.expectErr != 0 {
				var apiErr *bridge.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tc.expectErr, apiErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestClientEmptyResponse(t *testing.T) {
	c := bridge.WithTransport(bridge.NewMockTransport(func(string, any) (string, error) { return "", nil }))
	_, err := c.Ping(context.Background())
	assert.EqualError(t, err, "empty response")

	_, err = c.OpenStream(context.Background(), 1, "1")
	assert.Error(t, err)
}

func TestAPIErrorString(t *testing.T) {
	assert.Equal(t, "unknown error", bridge.APIError{}.Error())
	assert.Equal(t, "Oops: bad", bridge.APIError{Title: "Oops", Detail: "bad"}.Error())
	assert.Equal(t, "401 Unauthorized: invalid password", bridge.ErrUnauthorized("invalid password").Error())
}

func TestFromReport(t *testing.T) {
	testCases := []struct {
		name     string
		in       link.Report
		expected bridge.MouseState
		wire     []byte
	}{
		{"zero", link.Report{}, bridge.MouseState{}, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"click and move", link.Report{Buttons: 1, DX: 1, DY: -1}, bridge.MouseState{Buttons: 1, DX: 1, DY: -1}, []byte{1, 1, 0, 0xff, 0xff, 0, 0, 0, 0}},
		{"saturate", link.Report{DX: 1 << 20, DY: -(1 << 20)}, bridge.MouseState{DX: 32767, DY: -32768}, []byte{0, 0xff, 0x7f, 0, 0x80, 0, 0, 0, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := bridge.FromReport(tc.in)
			assert.Equal(t, tc.expected, m)
			b, err := m.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, tc.wire, b)
		})
	}
}
