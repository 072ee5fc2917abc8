package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/wolfchat/wolfchat/internal/app"
	"github.com/wolfchat/wolfchat/internal/logging"
	"github.com/wolfchat/wolfchat/internal/middleware"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	application := app.New(app.Stores{}, app.Options{JWTSecret: "test-secret"}, logging.NewNop())
	srv := httptest.NewServer(NewRouter(application, Config{}, logging.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

// testClient is an API client with its own cookie jar, i.e. one logged-in
// browser session.
type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestClient(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &testClient{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

func (c *testClient) do(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(payload)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (c *testClient) doList(method, path string) (*http.Response, []map[string]interface{}) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.t.Fatalf("decode list from %s: %v", path, err)
	}
	return resp, decoded
}

// signup registers the account and returns the user object as reported by
// GET /api/user on the fresh session.
func (c *testClient) signup(username, password string) map[string]interface{} {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/api/auth/signup",
		map[string]string{"username": username, "password": password})
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("signup %s: status %d, body %v", username, resp.StatusCode, body)
	}
	return c.currentUser()
}

func (c *testClient) currentUser() map[string]interface{} {
	c.t.Helper()
	resp, state := c.do(http.MethodGet, "/api/user", nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("current user: status %d, body %v", resp.StatusCode, state)
	}
	if state["isLoggedIn"] != true {
		c.t.Fatalf("not logged in: %v", state)
	}
	u, _ := state["user"].(map[string]interface{})
	if u == nil {
		c.t.Fatalf("user missing from state: %v", state)
	}
	return u
}

func mustStatus(t *testing.T, resp *http.Response, want int, body interface{}) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d (body %v)", resp.StatusCode, want, body)
	}
}

func errorCode(body map[string]interface{}) string {
	inner, _ := body["error"].(map[string]interface{})
	code, _ := inner["code"].(string)
	return code
}

func TestSignupLoginLogout(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)

	// Before any session exists the login-state poll is a 200, not a 401.
	resp, state := c.do(http.MethodGet, "/api/user", nil)
	mustStatus(t, resp, http.StatusOK, state)
	if state["isLoggedIn"] != false || state["user"] != nil {
		t.Fatalf("anonymous state = %v", state)
	}

	u := c.signup("luna", "moonhowl1")
	if u["username"] != "luna" {
		t.Fatalf("signup username = %v", u["username"])
	}
	if u["theme"] != "light" {
		t.Fatalf("default theme = %v, want light", u["theme"])
	}
	if u["avatarColor"] != "#4a4a4a" {
		t.Fatalf("default avatarColor = %v", u["avatarColor"])
	}
	if _, ok := u["passwordHash"]; ok {
		t.Fatal("password hash leaked in response")
	}

	resp, body := c.do(http.MethodPost, "/api/auth/logout", nil)
	mustStatus(t, resp, http.StatusOK, body)
	if body["message"] != "Logged out successfully" {
		t.Fatalf("logout body = %v", body)
	}

	resp, state = c.do(http.MethodGet, "/api/user", nil)
	mustStatus(t, resp, http.StatusOK, state)
	if state["isLoggedIn"] != false || state["user"] != nil {
		t.Fatalf("state after logout = %v", state)
	}

	resp, body = c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "luna", "password": "moonhowl1"})
	mustStatus(t, resp, http.StatusOK, body)
	if body["message"] != "Login successful" {
		t.Fatalf("login body = %v", body)
	}
	if me := c.currentUser(); me["username"] != "luna" {
		t.Fatalf("current user after login = %v", me["username"])
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	c.signup("luna", "moonhowl1")

	// Same name with different casing counts as taken.
	other := newTestClient(t, srv)
	resp, body := other.do(http.MethodPost, "/api/auth/signup",
		map[string]string{"username": "LUNA", "password": "different1"})
	mustStatus(t, resp, http.StatusBadRequest, body)
	if errorCode(body) != "CONFLICT" {
		t.Fatalf("error code = %q, want CONFLICT", errorCode(body))
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	c.signup("luna", "moonhowl1")

	other := newTestClient(t, srv)
	resp, body := other.do(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "luna", "password": "wrong"})
	mustStatus(t, resp, http.StatusUnauthorized, body)

	// Unknown user gets the same response as a wrong password.
	resp, body2 := other.do(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "ghost", "password": "wrong"})
	mustStatus(t, resp, http.StatusUnauthorized, body2)
	if errorCode(body) != errorCode(body2) {
		t.Fatalf("mismatched failure codes: %q vs %q", errorCode(body), errorCode(body2))
	}
}

func TestAnonymousPostRejected(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)

	resp, body := c.do(http.MethodPost, "/api/howls", map[string]string{"content": "hello"})
	mustStatus(t, resp, http.StatusUnauthorized, body)
}

func TestHowlValidation(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	c.signup("luna", "moonhowl1")

	resp, body := c.do(http.MethodPost, "/api/howls", map[string]string{"content": "   "})
	mustStatus(t, resp, http.StatusBadRequest, body)

	resp, body = c.do(http.MethodPost, "/api/howls",
		map[string]string{"content": strings.Repeat("a", 281)})
	mustStatus(t, resp, http.StatusBadRequest, body)

	resp, body = c.do(http.MethodPost, "/api/howls",
		map[string]string{"content": strings.Repeat("a", 280)})
	mustStatus(t, resp, http.StatusCreated, body)
}

// TestFollowReplyNotifyFlow drives the main interaction loop between two
// accounts: post, follow, following feed, reply, notification, mark read.
func TestFollowReplyNotifyFlow(t *testing.T) {
	srv := newTestServer(t)

	alpha := newTestClient(t, srv)
	alphaUser := alpha.signup("alpha", "leadthepack")
	alphaID, _ := alphaUser["_id"].(string)

	beta := newTestClient(t, srv)
	beta.signup("beta", "secondwolf")

	resp, h1 := alpha.do(http.MethodPost, "/api/howls", map[string]string{"content": "first howl"})
	mustStatus(t, resp, http.StatusCreated, h1)
	h1ID, _ := h1["_id"].(string)

	// Before following, beta's following feed is empty.
	resp, feed := beta.doList(http.MethodGet, "/api/howls/following")
	mustStatus(t, resp, http.StatusOK, feed)
	if len(feed) != 0 {
		t.Fatalf("following feed before follow = %d howls, want 0", len(feed))
	}

	resp, body := beta.do(http.MethodPost, "/api/users/"+alphaID+"/follow", nil)
	mustStatus(t, resp, http.StatusOK, body)

	resp, feed = beta.doList(http.MethodGet, "/api/howls/following")
	mustStatus(t, resp, http.StatusOK, feed)
	if len(feed) != 1 || feed[0]["_id"] != h1ID {
		t.Fatalf("following feed after follow = %v, want [%s]", feed, h1ID)
	}
	author, _ := feed[0]["author"].(map[string]interface{})
	if author["username"] != "alpha" {
		t.Fatalf("feed author = %v", author)
	}

	resp, updated := beta.do(http.MethodPost, "/api/howls/"+h1ID+"/replies",
		map[string]string{"content": "nice howl"})
	mustStatus(t, resp, http.StatusCreated, updated)
	replies, _ := updated["replies"].([]interface{})
	if len(replies) != 1 {
		t.Fatalf("replies after reply = %d, want 1", len(replies))
	}

	resp, notifs := alpha.doList(http.MethodGet, "/api/notifications")
	mustStatus(t, resp, http.StatusOK, notifs)
	if len(notifs) != 1 {
		t.Fatalf("alpha notifications = %d, want 1", len(notifs))
	}
	msg, _ := notifs[0]["message"].(string)
	if !strings.Contains(msg, "beta replied to your howl") {
		t.Fatalf("notification message = %q", msg)
	}

	resp, body = alpha.do(http.MethodPost, "/api/notifications/read", nil)
	mustStatus(t, resp, http.StatusOK, body)

	resp, notifs = alpha.doList(http.MethodGet, "/api/notifications")
	mustStatus(t, resp, http.StatusOK, notifs)
	if len(notifs) != 0 {
		t.Fatalf("notifications after read = %d, want 0", len(notifs))
	}
}

func TestSelfReplyDoesNotNotify(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	c.signup("luna", "moonhowl1")

	_, h := c.do(http.MethodPost, "/api/howls", map[string]string{"content": "talking to myself"})
	h1ID, _ := h["_id"].(string)

	resp, body := c.do(http.MethodPost, "/api/howls/"+h1ID+"/replies",
		map[string]string{"content": "indeed"})
	mustStatus(t, resp, http.StatusCreated, body)

	resp, notifs := c.doList(http.MethodGet, "/api/notifications")
	mustStatus(t, resp, http.StatusOK, notifs)
	if len(notifs) != 0 {
		t.Fatalf("self-reply produced %d notifications", len(notifs))
	}
}

func TestDeleteHowlOwnership(t *testing.T) {
	srv := newTestServer(t)

	alpha := newTestClient(t, srv)
	alpha.signup("alpha", "leadthepack")
	_, h := alpha.do(http.MethodPost, "/api/howls", map[string]string{"content": "mine"})
	h1ID, _ := h["_id"].(string)

	beta := newTestClient(t, srv)
	beta.signup("beta", "secondwolf")

	resp, body := beta.do(http.MethodDelete, "/api/howls/"+h1ID, nil)
	mustStatus(t, resp, http.StatusForbidden, body)
	if errorCode(body) != "FORBIDDEN" {
		t.Fatalf("error code = %q", errorCode(body))
	}

	resp, body = alpha.do(http.MethodDelete, "/api/howls/"+h1ID, nil)
	mustStatus(t, resp, http.StatusOK, body)

	resp, feed := alpha.doList(http.MethodGet, "/api/howls")
	mustStatus(t, resp, http.StatusOK, feed)
	if len(feed) != 0 {
		t.Fatalf("feed after delete = %d howls", len(feed))
	}
}

func TestPinOwnHowlOnly(t *testing.T) {
	srv := newTestServer(t)

	alpha := newTestClient(t, srv)
	alpha.signup("alpha", "leadthepack")
	_, h := alpha.do(http.MethodPost, "/api/howls", map[string]string{"content": "pin me"})
	h1ID, _ := h["_id"].(string)

	beta := newTestClient(t, srv)
	beta.signup("beta", "secondwolf")
	resp, body := beta.do(http.MethodPost, "/api/howls/"+h1ID+"/pin", nil)
	mustStatus(t, resp, http.StatusForbidden, body)

	resp, body = alpha.do(http.MethodPost, "/api/howls/"+h1ID+"/pin", nil)
	mustStatus(t, resp, http.StatusOK, body)
	if body["success"] != true || body["featuredHowlId"] != h1ID {
		t.Fatalf("pin body = %v, want success with %s", body, h1ID)
	}

	// Pinning again unpins.
	resp, body = alpha.do(http.MethodPost, "/api/howls/"+h1ID+"/pin", nil)
	mustStatus(t, resp, http.StatusOK, body)
	if body["success"] != true || body["featuredHowlId"] != "" {
		t.Fatalf("pin body after toggle = %v, want success with empty id", body)
	}
}

func TestProfileStats(t *testing.T) {
	srv := newTestServer(t)

	alpha := newTestClient(t, srv)
	alpha.signup("alpha", "leadthepack")
	beta := newTestClient(t, srv)
	betaUser := beta.signup("beta", "secondwolf")
	betaID, _ := betaUser["_id"].(string)

	var lastID string
	for i := 0; i < 6; i++ {
		_, h := alpha.do(http.MethodPost, "/api/howls",
			map[string]string{"content": fmt.Sprintf("howl %d", i)})
		lastID, _ = h["_id"].(string)
	}
	beta.do(http.MethodPost, "/api/howls/"+lastID+"/replies", map[string]string{"content": "hi"})
	alpha.do(http.MethodPost, "/api/users/"+betaID+"/follow", nil)

	resp, profile := beta.do(http.MethodGet, "/api/profile/alpha", nil)
	mustStatus(t, resp, http.StatusOK, profile)

	if n, _ := profile["howlCount"].(float64); n != 6 {
		t.Fatalf("howlCount = %v, want 6", profile["howlCount"])
	}
	recent, _ := profile["recentHowls"].([]interface{})
	if len(recent) != 5 {
		t.Fatalf("recentHowls = %d, want 5", len(recent))
	}
	first, _ := recent[0].(map[string]interface{})
	if first["content"] != "howl 5" {
		t.Fatalf("newest recent howl = %v", first["content"])
	}
	stats, _ := profile["packStats"].(map[string]interface{})
	if stats["repliesReceived"].(float64) != 1 || stats["totalInteractions"].(float64) != 7 {
		t.Fatalf("packStats = %v", stats)
	}
	if profile["followingCount"].(float64) != 0 || profile["followerCount"].(float64) != 1 {
		t.Fatalf("follow counts = %v/%v", profile["followingCount"], profile["followerCount"])
	}

	// The replier's own profile carries the made counter.
	resp, betaProfile := beta.do(http.MethodGet, "/api/profile", nil)
	mustStatus(t, resp, http.StatusOK, betaProfile)
	betaStats, _ := betaProfile["packStats"].(map[string]interface{})
	if betaStats["repliesMade"].(float64) != 1 {
		t.Fatalf("beta repliesMade = %v", betaStats["repliesMade"])
	}

	resp, body := beta.do(http.MethodGet, "/api/profile/nobody", nil)
	mustStatus(t, resp, http.StatusNotFound, body)
}

func TestSettingsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	c.signup("luna", "moonhowl1")

	resp, body := c.do(http.MethodPost, "/api/settings/avatar-color", map[string]string{"color": "#ff8800"})
	mustStatus(t, resp, http.StatusOK, body)
	if u := c.currentUser(); u["avatarColor"] != "#ff8800" {
		t.Fatalf("avatarColor = %v", u["avatarColor"])
	}

	resp, body = c.do(http.MethodPost, "/api/settings/avatar-color", map[string]string{"color": "red"})
	mustStatus(t, resp, http.StatusBadRequest, body)

	resp, body = c.do(http.MethodPost, "/api/settings/theme", map[string]string{"theme": "bee"})
	mustStatus(t, resp, http.StatusOK, body)
	if body["theme"] != "bee" {
		t.Fatalf("theme body = %v", body)
	}

	resp, body = c.do(http.MethodPost, "/api/settings/theme", map[string]string{"theme": "neon"})
	mustStatus(t, resp, http.StatusBadRequest, body)

	resp, body = c.do(http.MethodPost, "/api/settings/reset-avatar", nil)
	mustStatus(t, resp, http.StatusOK, body)
	if u := c.currentUser(); u["avatarColor"] != "#4a4a4a" || u["avatar"] != nil {
		t.Fatalf("after reset: avatarColor=%v avatar=%v", u["avatarColor"], u["avatar"])
	}

	resp, body = c.do(http.MethodPost, "/api/profile/blurb", map[string]string{"blurb": "night runner"})
	mustStatus(t, resp, http.StatusOK, body)
	resp, profile := c.do(http.MethodGet, "/api/profile/luna", nil)
	mustStatus(t, resp, http.StatusOK, profile)
	if profile["blurb"] != "night runner" {
		t.Fatalf("blurb = %v", profile["blurb"])
	}

	resp, body = c.do(http.MethodPost, "/api/settings/change-password",
		map[string]string{"currentPassword": "wrong", "newPassword": "newsecret1"})
	mustStatus(t, resp, http.StatusUnauthorized, body)

	resp, body = c.do(http.MethodPost, "/api/settings/change-password",
		map[string]string{"currentPassword": "moonhowl1", "newPassword": "newsecret1"})
	mustStatus(t, resp, http.StatusOK, body)

	fresh := newTestClient(t, srv)
	resp, body = fresh.do(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "luna", "password": "newsecret1"})
	mustStatus(t, resp, http.StatusOK, body)
}

// TestRateLimitKeyedByUserID drives the router directly so the remote
// address can vary per request: a logged-in caller shares one budget across
// addresses, while anonymous callers are budgeted per address.
func TestRateLimitKeyedByUserID(t *testing.T) {
	application := app.New(app.Stores{}, app.Options{JWTSecret: "test-secret"}, logging.NewNop())
	router := NewRouter(application, Config{
		Limiter: middleware.NewRateLimiter(1, 2, logging.NewNop()),
	}, logging.NewNop())

	payload, _ := json.Marshal(map[string]string{"username": "luna", "password": "moonhowl1"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:1000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "wolfchat_session" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("session cookie not set")
	}

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		req.AddCookie(cookie)
		req.RemoteAddr = fmt.Sprintf("10.0.0.%d:2000", i+2)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst requests rejected: %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("third request from fresh address = %d, want 429 (shared user budget)", statuses[2])
	}

	// An anonymous caller from yet another address has its own budget.
	req = httptest.NewRequest(http.MethodGet, "/api/howls", nil)
	req.RemoteAddr = "10.0.0.9:3000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous request = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	resp, body := c.do(http.MethodGet, "/healthz", nil)
	mustStatus(t, resp, http.StatusOK, body)
	if body["status"] != "ok" {
		t.Fatalf("health body = %v", body)
	}
}
