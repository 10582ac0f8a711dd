package handshake_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ar-cyber/TauriSEQTA/auth/deeplink"
	"github.com/ar-cyber/TauriSEQTA/auth/handshake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserNumber = "12345"
)

func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(map[string]any{"sub": "student-1", "exp": exp.Unix()})
	require.NoError(t, err)
	return fmt.Sprintf("%s.%s.c2ln", header, base64.RawURLEncoding.EncodeToString(body))
}

func makeAppLink(t *testing.T, token, serverURL string) string {
	t.Helper()
	data, err := json.Marshal(map[string]string{"t": token, "u": serverURL, "n": testUserNumber})
	require.NoError(t, err)
	return deeplink.Prefix + url.PathEscape(base64.StdEncoding.EncodeToString(data))
}

// portalRecorder mocks the portal's five handshake endpoints and records
// every call in order.
type portalRecorder struct {
	t            *testing.T
	mu           sync.Mutex
	calls        []string
	bodies       []map[string]any
	rotatedToken string
	failAt       int // 1-based index of the call that returns 500; 0 disables
	server       *httptest.Server
}

func newPortalRecorder(t *testing.T, rotatedToken string) *portalRecorder {
	p := &portalRecorder{t: t, rotatedToken: rotatedToken}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

func (p *portalRecorder) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var body map[string]any
	require.NoError(p.t, json.NewDecoder(r.Body).Decode(&body))
	p.calls = append(p.calls, r.URL.Path)
	p.bodies = append(p.bodies, body)

	assert.True(p.t, len(r.Header.Get("Authorization")) > 7, "bearer header on every step")
	assert.Equal(p.t, testUserNumber, r.Header.Get("X-User-Number"))

	if p.failAt != 0 && len(p.calls) == p.failAt {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if r.URL.Path == "/seqta/student/load/profile" {
		appLink := makeAppLink(p.t, p.rotatedToken, p.server.URL)
		json.NewEncoder(w).Encode(map[string]any{
			"payload": map[string]any{"app_link": appLink, "password_editable": true},
			"status":  "200",
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"status": "200"})
}

func (p *portalRecorder) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *portalRecorder) payload(t *testing.T, token string) *deeplink.Payload {
	t.Helper()
	return &deeplink.Payload{Token: token, ServerURL: p.server.URL, UserNumber: testUserNumber}
}

func TestPerformSuccess(t *testing.T) {
	token := makeJWT(t, time.Now().Add(time.Hour))
	rotated := makeJWT(t, time.Now().Add(2*time.Hour))
	portal := newPortalRecorder(t, rotated)

	client := handshake.New(handshake.DefaultProfile())
	sess, err := client.Perform(context.Background(), portal.payload(t, token))
	require.NoError(t, err)

	assert.Equal(t, portal.server.URL, sess.BaseURL)
	assert.Equal(t, rotated, sess.JSessionID, "primary token comes from the returned app link")
	assert.Empty(t, sess.AdditionalCookies, "QR sessions start with no cookies")

	assert.Equal(t, []string{
		"/seqta/student/login",
		"/seqta/student/login",
		"/seqta/student/recover",
		"/seqta/student/heartbeat",
		"/seqta/student/load/profile",
	}, portal.calls)

	assert.Equal(t, token, portal.bodies[0]["token"])
	assert.Equal(t, token, portal.bodies[1]["jwt"])
	assert.Equal(t, "info", portal.bodies[2]["mode"])
	assert.Equal(t, token, portal.bodies[2]["recovery"])
	assert.Equal(t, true, portal.bodies[3]["heartbeat"])
	assert.Empty(t, portal.bodies[4])
}

func TestPerformProfileFieldNames(t *testing.T) {
	token := makeJWT(t, time.Now().Add(time.Hour))
	rotated := makeJWT(t, time.Now().Add(2*time.Hour))
	portal := newPortalRecorder(t, rotated)

	profile := handshake.Profile{
		Name:       "legacy",
		TokenField: "session_token",
		JWTField:   "bearer_jwt",
	}
	client := handshake.New(profile)
	_, err := client.Perform(context.Background(), portal.payload(t, token))
	require.NoError(t, err)

	assert.Equal(t, token, portal.bodies[0]["session_token"])
	assert.Equal(t, token, portal.bodies[1]["bearer_jwt"])
}

func TestPerformShortCircuitsOnFailure(t *testing.T) {
	steps := []struct {
		failAt   int
		wantStep handshake.Step
	}{
		{1, handshake.StepLogin},
		{2, handshake.StepJWTLogin},
		{3, handshake.StepRecover},
		{4, handshake.StepHeartbeat},
		{5, handshake.StepProfile},
	}

	for _, tc := range steps {
		t.Run(string(tc.wantStep), func(t *testing.T) {
			token := makeJWT(t, time.Now().Add(time.Hour))
			portal := newPortalRecorder(t, token)
			portal.failAt = tc.failAt

			client := handshake.New(handshake.DefaultProfile())
			_, err := client.Perform(context.Background(), portal.payload(t, token))
			require.Error(t, err)

			var hsErr *handshake.Error
			require.ErrorAs(t, err, &hsErr)
			assert.Equal(t, tc.wantStep, hsErr.Step)
			assert.Equal(t, http.StatusInternalServerError, hsErr.Status)
			assert.Contains(t, err.Error(), string(tc.wantStep))

			assert.Equal(t, tc.failAt, portal.callCount(), "no step after the failed one is called")
		})
	}
}

func TestPerformCookiePropagation(t *testing.T) {
	token := makeJWT(t, time.Now().Add(time.Hour))
	rotated := makeJWT(t, time.Now().Add(2*time.Hour))

	var mu sync.Mutex
	var calls int
	var secondCallCookie string
	var handler http.HandlerFunc
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r)
	}))
	defer server.Close()

	handler = func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		switch calls {
		case 1:
			http.SetCookie(w, &http.Cookie{Name: "portal-state", Value: "step-one", Path: "/"})
		case 2:
			if c, err := r.Cookie("portal-state"); err == nil {
				secondCallCookie = c.Value
			}
		}
		if r.URL.Path == "/seqta/student/load/profile" {
			json.NewEncoder(w).Encode(map[string]any{
				"payload": map[string]any{"app_link": makeAppLink(t, rotated, server.URL)},
				"status":  "200",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "200"})
	}

	client := handshake.New(handshake.DefaultProfile())
	_, err := client.Perform(context.Background(), &deeplink.Payload{
		Token: token, ServerURL: server.URL, UserNumber: testUserNumber,
	})
	require.NoError(t, err)
	assert.Equal(t, "step-one", secondCallCookie, "jar carries portal-set cookies between steps")
}

func TestPerformBadServerURL(t *testing.T) {
	client := handshake.New(handshake.DefaultProfile())
	_, err := client.Perform(context.Background(), &deeplink.Payload{
		Token: "eyJa.b.c", ServerURL: "://not a url", UserNumber: "1",
	})
	require.Error(t, err)
}
