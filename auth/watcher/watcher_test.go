package watcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/ar-cyber/TauriSEQTA/auth/watcher"
	"github.com/ar-cyber/TauriSEQTA/auth/watcher/surfacefakes"
	"github.com/ar-cyber/TauriSEQTA/session"
	"github.com/ar-cyber/TauriSEQTA/session/storefakes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "school.seqta.edu.au"

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestWatcher(launcher watcher.Launcher, store session.Store, results chan watcher.Result, options ...watcher.Option) *watcher.Watcher {
	base := []watcher.Option{
		watcher.WithInterval(time.Millisecond),
		watcher.WithMaxAttempts(50),
		watcher.WithGraceTicks(2),
		watcher.WithNowTime(fixedNow),
		watcher.WithOnResult(func(r watcher.Result) { results <- r }),
	}
	return watcher.New(launcher, store, append(base, options...)...)
}

func waitResult(t *testing.T, results chan watcher.Result) watcher.Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not finish in time")
		return watcher.Result{}
	}
}

func TestWatcherHarvestsSession(t *testing.T) {
	loginPage := "https://" + testHost + "/login"
	welcomePage := "https://" + testHost + "/#?page=/welcome"
	future := fixedNow().Add(24 * time.Hour)

	surface := surfacefakes.NewScriptedSurface(
		surfacefakes.Frame{URL: loginPage},
		surfacefakes.Frame{URL: loginPage},
		surfacefakes.Frame{URL: loginPage},
		surfacefakes.Frame{
			URL: welcomePage,
			Cookies: []watcher.Cookie{
				{Name: "JSESSIONID", Value: "ABC123", Domain: testHost, Path: "/", Expires: future},
				{Name: "tracking", Value: "1", Domain: "." + testHost, Path: "/", Expires: future},
				{Name: "ga", Value: "xyz", Domain: "analytics.example.com", Expires: future},
			},
		},
	)
	launcher := surfacefakes.NewFakeLauncher(surface)
	store := storefakes.NewFakeStore()
	results := make(chan watcher.Result, 1)

	w := newTestWatcher(launcher, store, results)
	attemptID, err := w.Start(context.Background(), testHost)
	require.NoError(t, err)
	require.NotEmpty(t, attemptID)
	assert.Equal(t, "https://"+testHost+"/#?page=/welcome", launcher.OpenedURL())

	result := waitResult(t, results)
	assert.Equal(t, watcher.OutcomeFound, result.Outcome)
	assert.Equal(t, attemptID, result.AttemptID)
	assert.True(t, surface.Closed())

	saved := store.Load()
	assert.Equal(t, "https://"+testHost, saved.BaseURL)
	assert.Equal(t, "ABC123", saved.JSessionID)
	assert.Equal(t, []session.Cookie{
		{Name: "tracking", Value: "1", Domain: "." + testHost, Path: "/"},
	}, saved.AdditionalCookies, "same-domain cookies only, JSESSIONID excluded")
}

func TestWatcherIgnoresExpiredCookie(t *testing.T) {
	welcomePage := "https://" + testHost + "/#?page=/welcome"
	surface := surfacefakes.NewScriptedSurface(
		surfacefakes.Frame{
			URL: welcomePage,
			Cookies: []watcher.Cookie{
				{Name: "JSESSIONID", Value: "STALE", Domain: testHost, Expires: fixedNow().Add(-time.Minute)},
			},
		},
	)
	store := storefakes.NewFakeStore()
	results := make(chan watcher.Result, 1)

	w := newTestWatcher(surfacefakes.NewFakeLauncher(surface), store, results, watcher.WithMaxAttempts(10))
	_, err := w.Start(context.Background(), testHost)
	require.NoError(t, err)

	result := waitResult(t, results)
	assert.Equal(t, watcher.OutcomeTimedOut, result.Outcome)
	assert.False(t, store.Exists())
	assert.True(t, surface.Closed(), "surface closed once the attempt counter runs out")
}

func TestWatcherIgnoresCookieWithoutExpiry(t *testing.T) {
	welcomePage := "https://" + testHost + "/#?page=/welcome"
	surface := surfacefakes.NewScriptedSurface(
		surfacefakes.Frame{
			URL: welcomePage,
			Cookies: []watcher.Cookie{
				{Name: "JSESSIONID", Value: "NOEXPIRY", Domain: testHost},
			},
		},
	)
	store := storefakes.NewFakeStore()
	results := make(chan watcher.Result, 1)

	w := newTestWatcher(surfacefakes.NewFakeLauncher(surface), store, results, watcher.WithMaxAttempts(10))
	_, err := w.Start(context.Background(), testHost)
	require.NoError(t, err)

	assert.Equal(t, watcher.OutcomeTimedOut, waitResult(t, results).Outcome)
	assert.False(t, store.Exists())
}

func TestWatcherTimesOutWithoutWelcomePage(t *testing.T) {
	surface := surfacefakes.NewScriptedSurface(
		surfacefakes.Frame{URL: "https://" + testHost + "/login"},
	)
	store := storefakes.NewFakeStore()
	results := make(chan watcher.Result, 1)

	w := newTestWatcher(surfacefakes.NewFakeLauncher(surface), store, results, watcher.WithMaxAttempts(8))
	_, err := w.Start(context.Background(), testHost)
	require.NoError(t, err)

	assert.Equal(t, watcher.OutcomeTimedOut, waitResult(t, results).Outcome)
	assert.Equal(t, 0, store.SaveCount())
}

func TestWatcherLaunchFailure(t *testing.T) {
	launcher := surfacefakes.NewFakeLauncher(nil)
	launcher.OpenErr = errors.New("window construction failed")
	results := make(chan watcher.Result, 1)

	w := newTestWatcher(launcher, storefakes.NewFakeStore(), results)
	_, err := w.Start(context.Background(), testHost)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window construction failed")
}

func TestWatcherCancellation(t *testing.T) {
	surface := surfacefakes.NewScriptedSurface(
		surfacefakes.Frame{URL: "https://" + testHost + "/login"},
	)
	store := storefakes.NewFakeStore()
	results := make(chan watcher.Result, 1)

	ctx, cancel := context.WithCancel(context.Background())
	w := newTestWatcher(surfacefakes.NewFakeLauncher(surface), store, results,
		watcher.WithInterval(50*time.Millisecond), watcher.WithMaxAttempts(1000))
	_, err := w.Start(ctx, testHost)
	require.NoError(t, err)

	cancel()
	result := waitResult(t, results)
	assert.Equal(t, watcher.OutcomeFailed, result.Outcome)
	assert.True(t, surface.Closed())
	assert.False(t, store.Exists())
}

func TestWatcherSchemePrepending(t *testing.T) {
	surface := surfacefakes.NewScriptedSurface(surfacefakes.Frame{URL: ""})
	launcher := surfacefakes.NewFakeLauncher(surface)
	results := make(chan watcher.Result, 1)

	w := newTestWatcher(launcher, storefakes.NewFakeStore(), results, watcher.WithMaxAttempts(1))
	_, err := w.Start(context.Background(), "https://"+testHost)
	require.NoError(t, err)
	waitResult(t, results)
	assert.Equal(t, "https://"+testHost+"/#?page=/welcome", launcher.OpenedURL())
}
