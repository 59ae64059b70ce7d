package bridge_test

import (
	"io"
	"net"
	"testing"

	"github.com/Alia5/airmouse/bridge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		expected []byte
		err      string
	}{
		{
			name:     "normal password",
			password: "password123",
			expected: []byte{0x94, 0x50, 0x29, 0x55, 0x1, 0xd7, 0x3, 0xf, 0x4, 0x61, 0xf, 0x81, 0x6a, 0xdf, 0x43, 0x1c, 0xaf, 0x8f, 0xc8, 0x21, 0xd4, 0xc1, 0x2f, 0x2f, 0x21, 0x2c, 0x1b, 0xf8, 0x64, 0x46, 0x9, 0x82},
		},
		{
			name:     "single character",
			password: "1",
			expected: []byte{0xfe, 0xdf, 0xdf, 0x4d, 0xab, 0xd2, 0x5d, 0x9f, 0xfd, 0x97, 0x96, 0xec, 0x76, 0xd2, 0xa2, 0xec, 0x2, 0x4f, 0xbf, 0xeb, 0x17, 0x8c, 0x6, 0x13, 0xed, 0x4f, 0x10, 0x9e, 0x4d, 0xef, 0xd1, 0xd2},
		},
		{
			name:     "empty",
			password: "",
			err:      "password cannot be empty",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := bridge.DeriveKey(tc.password)
			if tc.err != "" {
				assert.EqualError(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, key)
		})
	}
}

func TestDeriveSessionKey(t *testing.T) {
	key := make([]byte, 32)
	serverNonce := make([]byte, 32)
	clientNonce := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
		serverNonce[i] = byte(i + 10)
		clientNonce[i] = byte(i + 20)
	}

	a := bridge.DeriveSessionKey(key, serverNonce, clientNonce)
	assert.Len(t, a, 32)
	assert.Equal(t, a, bridge.DeriveSessionKey(key, serverNonce, clientNonce))

	clientNonce[0] = 99
	assert.NotEqual(t, a, bridge.DeriveSessionKey(key, serverNonce, clientNonce))
}

func TestWrapConnRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ca, err := bridge.WrapConn(a, nil, key)
	require.NoError(t, err)
	cb, err := bridge.WrapConn(b, nil, key)
	require.NoError(t, err)

	go func() {
		_, _ = ca.Write([]byte("bus/1/1\x00"))
		_, _ = ca.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	}()

	buf := make([]byte, 8)
	_, err = io.ReadFull(cb, buf)
	require.NoError(t, err)
	assert.Equal(t, "bus/1/1\x00", string(buf))

	rec := make([]byte, bridge.ReportSize)
	_, err = io.ReadFull(cb, rec)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, rec)
}

func TestWrapConnRejectsBadKey(t *testing.T) {
	a, _ := net.Pipe()
	defer a.Close()
	_, err := bridge.WrapConn(a, nil, []byte("short"))
	assert.Error(t, err)
}
