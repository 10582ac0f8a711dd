package server_test

import (
	"testing"
	"time"

	"github.com/ar-cyber/TauriSEQTA/auth/watcher"
	"github.com/ar-cyber/TauriSEQTA/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceBridgeOpenReportClose(t *testing.T) {
	hub := server.NewEventHub()
	events, cancel := hub.Subscribe()
	defer cancel()
	bridge := server.NewSurfaceBridge(hub)

	surface, err := bridge.Open("https://school.seqta.edu.au/#?page=/welcome")
	require.NoError(t, err)
	assert.Equal(t, server.EventOpenLogin+":https://school.seqta.edu.au/#?page=/welcome", <-events)

	_, err = surface.CurrentURL()
	assert.Error(t, err, "no snapshot reported yet")

	cookies := []watcher.Cookie{{
		Name:    "JSESSIONID",
		Value:   "ABC123",
		Domain:  "school.seqta.edu.au",
		Expires: time.Now().Add(time.Hour),
	}}
	require.NoError(t, bridge.Report("https://school.seqta.edu.au/#?page=/welcome", cookies))

	address, err := surface.CurrentURL()
	require.NoError(t, err)
	assert.Contains(t, address, "#?page=/welcome")
	got, err := surface.Cookies()
	require.NoError(t, err)
	assert.Equal(t, cookies, got)

	require.NoError(t, surface.Close())
	assert.Equal(t, server.EventCloseLogin, <-events)
	_, err = surface.CurrentURL()
	assert.Error(t, err)
	assert.Error(t, bridge.Report("https://x", nil))
}

func TestSurfaceBridgeOpenReplacesPreviousWindow(t *testing.T) {
	bridge := server.NewSurfaceBridge(server.NewEventHub())

	first, err := bridge.Open("https://a.seqta.edu.au/#?page=/welcome")
	require.NoError(t, err)
	second, err := bridge.Open("https://b.seqta.edu.au/#?page=/welcome")
	require.NoError(t, err)

	_, err = first.CurrentURL()
	assert.Error(t, err)

	require.NoError(t, bridge.Report("https://b.seqta.edu.au/#?page=/welcome", nil))
	address, err := second.CurrentURL()
	require.NoError(t, err)
	assert.Contains(t, address, "b.seqta.edu.au")
}

func TestReportSurfaceEndpoint(t *testing.T) {
	f := newBridgeFixture(t)

	resp := f.postJSON(t, "/auth/surface", map[string]any{"url": "https://x", "cookies": []any{}})
	resp.Body.Close()
	assert.Equal(t, 409, resp.StatusCode)

	_, err := f.surface.Open("https://school.seqta.edu.au/#?page=/welcome")
	require.NoError(t, err)

	resp = f.postJSON(t, "/auth/surface", map[string]any{
		"url": "https://school.seqta.edu.au/#?page=/welcome",
		"cookies": []map[string]any{{
			"name":    "JSESSIONID",
			"value":   "ABC123",
			"domain":  "school.seqta.edu.au",
			"path":    "/",
			"expires": float64(time.Now().Add(time.Hour).Unix()),
		}},
	})
	resp.Body.Close()
	assert.Equal(t, 204, resp.StatusCode)
}
