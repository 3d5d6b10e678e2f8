package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/lexview/internal/assetcache"
	"github.com/dgallion1/lexview/internal/catalog"
	"github.com/dgallion1/lexview/internal/config"
	"github.com/dgallion1/lexview/internal/session"
	"github.com/dgallion1/lexview/internal/viewer"
	"github.com/gorilla/websocket"
)

func setupTest(t *testing.T) (*httptest.Server, *session.Store) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	log := slog.New(slog.DiscardHandler)
	cache, err := assetcache.OpenMemory("test-v1", catalog.AssetFetcher(), log)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	sessions := session.NewStore(session.Options{
		TTL:     time.Minute,
		Fetcher: cache,
		Log:     log,
		OnFetch: ObserveFetch,
	})
	t.Cleanup(sessions.CloseAll)

	cfg := config.Config{MaxBodyBytes: 64 << 10, CORSAllowAll: true}
	srv := httptest.NewServer(NewServer(cat, sessions, cache, log, cfg))
	t.Cleanup(srv.Close)
	return srv, sessions
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func createSession(t *testing.T, srv *httptest.Server, docID string) sessionResponse {
	t.Helper()
	resp, body := do(t, http.MethodPost, srv.URL+"/api/sessions", `{"document_id":"`+docID+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var out sessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := setupTest(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Errorf("unexpected health response %d %s", resp.StatusCode, body)
	}
}

func TestListDocuments(t *testing.T) {
	srv, _ := setupTest(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/api/documents", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Documents []documentSummary `json:"documents"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Documents) != 8 {
		t.Fatalf("expected 8 documents, got %d", len(out.Documents))
	}
	for _, d := range out.Documents {
		switch d.ID {
		case "calculadora-abonos":
			if d.Viewable || d.Mode != "" {
				t.Errorf("calculator should not be viewable: %+v", d)
			}
		case "minutas-jurisprudencia":
			if d.Mode != "structured" || d.ArticleCount != 1 {
				t.Errorf("unexpected jurisprudence summary %+v", d)
			}
		}
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/documents?type=calculator", "")
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Documents) != 1 {
		t.Errorf("expected 1 calculator, got %d", len(out.Documents))
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	srv, _ := setupTest(t)
	resp, _ := do(t, http.MethodGet, srv.URL+"/api/documents/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateSession_Errors(t *testing.T) {
	srv, sessions := setupTest(t)
	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"calculator", `{"document_id":"calculadora-abonos"}`, http.StatusUnprocessableEntity, viewer.MsgNotViewable},
		{"unknown", `{"document_id":"nope"}`, http.StatusNotFound, "document not found"},
		{"missing id", `{}`, http.StatusBadRequest, "document_id is required"},
		{"bad json", `{`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/api/sessions", tt.body)
			if resp.StatusCode != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, resp.StatusCode, body)
			}
			var e map[string]string
			json.Unmarshal(body, &e)
			if !strings.Contains(e["error"], tt.msg) {
				t.Errorf("expected error containing %q, got %q", tt.msg, e["error"])
			}
		})
	}
	if n := sessions.Len(); n != 0 {
		t.Errorf("expected failed creations to leave no sessions, got %d", n)
	}
}

func TestStructuredSearchFlow(t *testing.T) {
	srv, _ := setupTest(t)
	created := createSession(t, srv, "minutas-jurisprudencia")
	if created.View.Mode != "structured" || created.View.LoadState != viewer.LoadLoaded {
		t.Fatalf("unexpected initial view %+v", created.View)
	}
	base := srv.URL + "/api/sessions/" + created.SessionID

	resp, body := do(t, http.MethodPut, base+"/search", `{"term":"JUDICIALES"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: %d %s", resp.StatusCode, body)
	}
	var sr sessionResponse
	json.Unmarshal(body, &sr)
	if sr.View.MatchCount != 2 || sr.View.CurrentMatchID != "match-juris-art-1-0" || sr.View.Position != "1/2" {
		t.Fatalf("unexpected view after search %+v", sr.View)
	}

	_, body = do(t, http.MethodPost, base+"/matches/next", "")
	var mr matchResponse
	json.Unmarshal(body, &mr)
	if mr.MatchID != "match-juris-art-1-1" {
		t.Errorf("expected second match, got %q", mr.MatchID)
	}

	resp, body = do(t, http.MethodGet, base+"/content", "")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html content type, got %q", ct)
	}
	html := string(body)
	if !strings.Contains(html, `<mark id="match-juris-art-1-1" class="match match-current">judiciales</mark>`) {
		t.Errorf("expected emphasized second match in %s", html)
	}
	if !strings.Contains(html, `<mark id="match-juris-art-1-0" class="match">judiciales</mark>`) {
		t.Errorf("expected plain first match in %s", html)
	}

	_, body = do(t, http.MethodPost, base+"/matches/next", "")
	json.Unmarshal(body, &mr)
	if mr.MatchID != "match-juris-art-1-0" {
		t.Errorf("expected wrap to first match, got %q", mr.MatchID)
	}
	_, body = do(t, http.MethodPost, base+"/matches/previous", "")
	json.Unmarshal(body, &mr)
	if mr.MatchID != "match-juris-art-1-1" {
		t.Errorf("expected wrap to last match, got %q", mr.MatchID)
	}

	_, body = do(t, http.MethodGet, base+"/matches", "")
	if !strings.Contains(string(body), `"article_id":"juris-art-1"`) {
		t.Errorf("unexpected match list %s", body)
	}
}

func TestRawMarkupFlow(t *testing.T) {
	srv, _ := setupTest(t)
	created := createSession(t, srv, "ley-transito")
	base := srv.URL + "/api/sessions/" + created.SessionID

	var view viewer.View
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body := do(t, http.MethodGet, base, "")
		var sr sessionResponse
		json.Unmarshal(body, &sr)
		view = sr.View
		if view.LoadState != viewer.LoadLoading || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if view.LoadState != viewer.LoadLoaded {
		t.Fatalf("expected loaded, got %+v", view)
	}

	_, body := do(t, http.MethodPut, base+"/search", `{"term":"conductor"}`)
	var sr sessionResponse
	json.Unmarshal(body, &sr)
	if !sr.View.Highlighting || sr.View.Navigable {
		t.Errorf("expected highlighting without navigation, got %+v", sr.View)
	}

	_, body = do(t, http.MethodGet, base+"/content", "")
	html := string(body)
	if !strings.Contains(html, `<mark class="match">Conductor</mark>`) {
		t.Errorf("expected highlighted term in %s", html)
	}
	if !strings.Contains(html, "Ley de Tránsito N° 18.290") {
		t.Errorf("expected document header in %s", html)
	}
}

func TestFontSize(t *testing.T) {
	srv, _ := setupTest(t)
	created := createSession(t, srv, "minutas-jurisprudencia")
	base := srv.URL + "/api/sessions/" + created.SessionID

	tests := []struct {
		body string
		code int
		size int
	}{
		{`{"size":100}`, http.StatusOK, 32},
		{`{"delta":-4}`, http.StatusOK, 28},
		{`{"size":1}`, http.StatusOK, 10},
		{`{"delta":-2}`, http.StatusOK, 10},
		{`{"delta":9223372036854775807}`, http.StatusOK, 32},
		{`{"delta":-9223372036854775808}`, http.StatusOK, 10},
		{`{}`, http.StatusBadRequest, 0},
		{`{"size":12,"delta":2}`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		resp, body := do(t, http.MethodPut, base+"/font", tt.body)
		if resp.StatusCode != tt.code {
			t.Fatalf("%s: expected %d, got %d", tt.body, tt.code, resp.StatusCode)
		}
		if tt.code != http.StatusOK {
			continue
		}
		var sr sessionResponse
		json.Unmarshal(body, &sr)
		if sr.View.FontSize != tt.size {
			t.Errorf("%s: expected size %d, got %d", tt.body, tt.size, sr.View.FontSize)
		}
	}
}

func TestSelectDocumentAndDelete(t *testing.T) {
	srv, _ := setupTest(t)
	created := createSession(t, srv, "minutas-jurisprudencia")
	base := srv.URL + "/api/sessions/" + created.SessionID

	do(t, http.MethodPut, base+"/search", `{"term":"jurisprudencia"}`)
	resp, body := do(t, http.MethodPut, base+"/document", `{"document_id":"codigo-penal"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select: %d %s", resp.StatusCode, body)
	}
	var sr sessionResponse
	json.Unmarshal(body, &sr)
	if sr.View.DocumentID != "codigo-penal" || sr.View.Term != "" || sr.View.MatchCount != 0 {
		t.Errorf("expected reset view for new document, got %+v", sr.View)
	}

	resp, _ = do(t, http.MethodDelete, base, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, base, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := setupTest(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/leyes/ley-rpa.html", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Ley N° 20.084") {
		t.Errorf("unexpected statute response %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/calculators/abono-arresto-nocturno.html", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected calculator page, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/leyes/missing.html", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCacheStatus(t *testing.T) {
	srv, _ := setupTest(t)
	created := createSession(t, srv, "ley-rpa")
	base := srv.URL + "/api/sessions/" + created.SessionID

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, body := do(t, http.MethodGet, srv.URL+"/api/cache", "")
		if strings.Contains(string(body), "/leyes/ley-rpa.html") {
			if !strings.Contains(string(body), `"name":"test-v1"`) {
				t.Errorf("unexpected cache status %s", body)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, body := do(t, http.MethodGet, base, "")
	t.Fatalf("expected fetched statute to be cached; session %s", body)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupTest(t)
	do(t, http.MethodGet, srv.URL+"/health", "")
	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "lexview_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestEventsWebSocket(t *testing.T) {
	srv, _ := setupTest(t)
	created := createSession(t, srv, "minutas-jurisprudencia")
	base := srv.URL + "/api/sessions/" + created.SessionID
	do(t, http.MethodPut, base+"/search", `{"term":"judiciales"}`)

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev session.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != session.EventFocus || ev.MatchID != "match-juris-art-1-0" {
		t.Errorf("expected current focus on connect, got %+v", ev)
	}

	do(t, http.MethodPost, base+"/matches/next", "")
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.MatchID != "match-juris-art-1-1" {
		t.Errorf("expected focus on second match, got %+v", ev)
	}
}

func TestEventsWebSocket_UnknownSession(t *testing.T) {
	srv, _ := setupTest(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/nope/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 response, got %+v", resp)
	}
}
