package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ep, err := New("127.0.0.1", 10000, "")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:10000", ep.Address())
	require.Equal(t, "http://127.0.0.1:10000", ep.URI())
	require.Equal(t, "127.0.0.1:10000", ep.Authority())
	require.Equal(t, "passthrough:///127.0.0.1:10000", ep.Target())
	require.Equal(t, "http://127.0.0.1:10000", ep.String())
}

func TestNew_HostOverride(t *testing.T) {
	ep, err := New("::1", 8080, "foo.test.google.fr")
	require.NoError(t, err)
	require.Equal(t, "[::1]:8080", ep.Address())
	require.Equal(t, "foo.test.google.fr", ep.Authority())
	require.Contains(t, ep.String(), "authority foo.test.google.fr")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("", 10000, "")
	require.Error(t, err)
	_, err = New("localhost", 0, "")
	require.Error(t, err)
	_, err = New("localhost", 70000, "")
	require.Error(t, err)
}
