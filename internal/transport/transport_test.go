package transport

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSchemeAliasesWebdav(t *testing.T) {
	require.Equal(t, "http://host/dav", normalizeScheme("webdav://host/dav"))
	require.Equal(t, "https://host/dav", normalizeScheme("webdavs://host/dav"))
	require.Equal(t, "https://host/dav", normalizeScheme("https://host/dav"))
}

func TestErrorFormatsStatusCode(t *testing.T) {
	err := &Error{Op: "download", StatusCode: http.StatusBadGateway}
	require.Contains(t, err.Error(), "download")
	require.Contains(t, err.Error(), "502")
}

func TestErrorUnwrap(t *testing.T) {
	inner := require.AnError
	err := &Error{Op: "list", Err: inner}
	require.ErrorIs(t, err, inner)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 1, cfg.ParallelConnections)
	require.Equal(t, 60_000_000_000, int(cfg.Timeout))
}
