// End-to-end tests for the portal API over the in-memory store.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pubfiles/pubfiles/internal/auth"
	"github.com/pubfiles/pubfiles/internal/blob/memory"
	"github.com/pubfiles/pubfiles/internal/portal"
)

const testPassword = "test-password"

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.New("test")
	sessions := auth.New("test-secret", time.Hour, "", testPassword)
	svc := portal.New(store, portal.AuthorizerFunc(auth.FromContext))
	srv := NewServer(svc, sessions, 1024*1024)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func login(t *testing.T, baseURL string) *http.Cookie {
	t.Helper()

	body := `{"password":"` + testPassword + `"}`
	resp, err := http.Post(baseURL+"/api/v1/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie in login response")
	return nil
}

func multipartBody(t *testing.T, filename, category, content string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	if category != "" {
		mw.WriteField("category", category)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, baseURL string, cookie *http.Cookie, filename, category, content string) map[string]interface{} {
	t.Helper()

	body, contentType := multipartBody(t, filename, category, content)
	req, _ := http.NewRequest("POST", baseURL+"/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload failed: %d %s", resp.StatusCode, raw)
	}
	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/v1/auth/login", "application/json",
		strings.NewReader(`{"password":"wrong"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if len(resp.Cookies()) != 0 {
		t.Error("cookie set on failed login")
	}
}

func TestUploadListView(t *testing.T) {
	ts, _ := newTestServer(t)
	cookie := login(t, ts.URL)

	result := upload(t, ts.URL, cookie, "algebra.html", "lessons", "<h1>Algebra</h1>")
	if result["pathname"] != "lessons/algebra.html" {
		t.Errorf("pathname = %v", result["pathname"])
	}

	// Public listing
	resp, err := http.Get(ts.URL + "/api/v1/files")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var listing struct {
		Files      []map[string]interface{} `json:"files"`
		Categories []string                 `json:"categories"`
	}
	json.NewDecoder(resp.Body).Decode(&listing)
	if len(listing.Files) != 1 || listing.Categories[0] != "lessons" {
		t.Errorf("listing = %+v", listing)
	}

	// Public view at the extension-less address
	viewResp, err := http.Get(ts.URL + "/view/lessons/algebra")
	if err != nil {
		t.Fatal(err)
	}
	defer viewResp.Body.Close()
	if viewResp.StatusCode != http.StatusOK {
		t.Fatalf("view status = %d", viewResp.StatusCode)
	}
	if ct := viewResp.Header.Get("Content-Type"); ct != "text/html" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := viewResp.Header.Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", cc)
	}
	body, _ := io.ReadAll(viewResp.Body)
	if string(body) != "<h1>Algebra</h1>" {
		t.Errorf("body = %q", body)
	}
}

func TestViewNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/view/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadRequiresSession(t *testing.T) {
	ts, store := newTestServer(t)

	body, contentType := multipartBody(t, "sneak.html", "", "<p>x</p>")
	resp, err := http.Post(ts.URL+"/api/v1/files", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	listing, _ := store.List(context.Background())
	if len(listing) != 0 {
		t.Errorf("store changed by unauthorized upload: %v", listing)
	}
}

func TestUploadRejectsNonHTML(t *testing.T) {
	ts, _ := newTestServer(t)
	cookie := login(t, ts.URL)

	body, contentType := multipartBody(t, "notes.txt", "", "plain")
	req, _ := http.NewRequest("POST", ts.URL+"/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	ts, store := newTestServer(t)
	cookie := login(t, ts.URL)

	result := upload(t, ts.URL, cookie, "gone.html", "", "<p>bye</p>")
	locator := result["url"].(string)

	req, _ := http.NewRequest("DELETE", ts.URL+"/api/v1/files",
		strings.NewReader(`{"url":"`+locator+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	listing, _ := store.List(context.Background())
	if len(listing) != 0 {
		t.Errorf("object still present after delete: %v", listing)
	}
}

func TestMoveEndpoint(t *testing.T) {
	ts, store := newTestServer(t)
	cookie := login(t, ts.URL)

	result := upload(t, ts.URL, cookie, "draft.html", "", "<p>draft</p>")
	locator := result["url"].(string)

	req, _ := http.NewRequest("POST", ts.URL+"/api/v1/files/move",
		strings.NewReader(`{"url":"`+locator+`","pathname":"published/final.html"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("move status = %d %s", resp.StatusCode, raw)
	}
	var moveResult map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&moveResult)
	if moveResult["pathname"] != "published/final.html" {
		t.Errorf("pathname = %v", moveResult["pathname"])
	}

	listing, _ := store.List(context.Background())
	if len(listing) != 1 || listing[0].Pathname != "published/final.html" {
		t.Errorf("store after move: %v", listing)
	}
}

func TestAdminPrefixGate(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/admin/files")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	cookie := login(t, ts.URL)
	upload(t, ts.URL, cookie, "index.html", "", "<p>root</p>")
	upload(t, ts.URL, cookie, "a.html", "lessons", "<p>a</p>")

	req, _ := http.NewRequest("GET", ts.URL+"/admin/files", nil)
	req.AddCookie(cookie)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp2.StatusCode)
	}

	var body struct {
		Groups []struct {
			Category string `json:"category"`
		} `json:"groups"`
	}
	json.NewDecoder(resp2.Body).Decode(&body)
	if len(body.Groups) != 2 || body.Groups[0].Category != "" || body.Groups[1].Category != "lessons" {
		t.Errorf("groups = %+v, want uncategorized first then lessons", body.Groups)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	ts, _ := newTestServer(t)
	cookie := login(t, ts.URL)

	req, _ := http.NewRequest("POST", ts.URL+"/api/v1/auth/logout", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	cleared := false
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout did not clear the session cookie")
	}
}
