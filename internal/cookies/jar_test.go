package cookies

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func setCookieHeader(lines ...string) http.Header {
	h := http.Header{}
	for _, line := range lines {
		h.Add("Set-Cookie", line)
	}
	return h
}

func TestJarRoundTripKeepsSessionCookies(t *testing.T) {
	t.Parallel()

	now := time.Now().Truncate(time.Second).UTC()
	jar := New()
	jar.now = func() time.Time { return now }

	u := mustURL(t, "https://vendor.example.com/LoginPage.aspx")
	jar.Set(setCookieHeader(
		"ASP.NET_SessionId=abc123; path=/; HttpOnly",
		".ASPXAUTH=token; Max-Age=3600; Path=/; Secure",
		"tracking=1; Domain=example.com; Path=/",
		"stale=1; Max-Age=0",
	), u)
	require.Equal(t, 3, jar.Len())

	data, err := json.Marshal(jar)
	require.NoError(t, err)

	var decoded Jar
	require.NoError(t, json.Unmarshal(data, &decoded))

	want := jar.Records()
	got := decoded.Records()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Raw, got[i].Raw)
		assert.Equal(t, want[i].Path, got[i].Path)
		assert.Equal(t, want[i].Domain, got[i].Domain)
		assert.Equal(t, want[i].Expires.IsSession(), got[i].Expires.IsSession())
		wantAt, _ := want[i].Expires.Time()
		gotAt, _ := got[i].Expires.Time()
		assert.True(t, wantAt.Equal(gotAt), "expiry %v != %v", wantAt, gotAt)
	}

	assert.True(t, got[0].Expires.IsSession())
	assert.Equal(t, HostOnly("vendor.example.com"), got[0].Domain)
	at, ok := got[1].Expires.Time()
	require.True(t, ok)
	assert.True(t, at.Equal(now.Add(time.Hour)))
	assert.Equal(t, Suffix("example.com"), got[2].Domain)

	header, ok := decoded.Get(u)
	require.True(t, ok)
	assert.Equal(t, "ASP.NET_SessionId=abc123; .ASPXAUTH=token; tracking=1", header)
}

func TestJarMarshalShape(t *testing.T) {
	t.Parallel()

	jar := New()
	jar.Set(setCookieHeader("sid=abc"), mustURL(t, "https://www.example.com/"))

	data, err := json.Marshal(jar)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"raw_cookie":"sid=abc","path":["/",false],"domain":{"HostOnly":"www.example.com"},"expires":"SessionEnd"}]`,
		string(data))
}

func TestJarMarshalDropsExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	jar := New()
	jar.now = func() time.Time { return now }
	jar.Set(setCookieHeader("short=1; Max-Age=10", "sid=2"), mustURL(t, "https://www.example.com/"))

	jar.now = func() time.Time { return now.Add(time.Minute) }
	data, err := json.Marshal(jar)
	require.NoError(t, err)

	var records []Record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "sid=2", records[0].Raw)
	assert.True(t, records[0].Expires.IsSession())
}

func TestJarGetScoping(t *testing.T) {
	t.Parallel()

	jar := New()
	jar.Set(setCookieHeader(
		"host=1",
		"wide=2; Domain=example.com",
		"app=3; Path=/app",
		"secret=4; Secure",
	), mustURL(t, "https://www.example.com/index.html"))

	tests := []struct {
		name string
		url  string
		want string
		ok   bool
	}{
		{name: "same host https", url: "https://www.example.com/", want: "host=1; wide=2; secret=4", ok: true},
		{name: "app path first", url: "https://www.example.com/app/list", want: "app=3; host=1; wide=2; secret=4", ok: true},
		{name: "path prefix is not a segment", url: "https://www.example.com/apple", want: "host=1; wide=2; secret=4", ok: true},
		{name: "plain http drops secure", url: "http://www.example.com/", want: "host=1; wide=2", ok: true},
		{name: "sibling subdomain", url: "https://api.example.com/", want: "wide=2", ok: true},
		{name: "other site", url: "https://example.org/", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := jar.Get(mustURL(t, tc.url))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestJarRejectsForeignAndPublicSuffixDomains(t *testing.T) {
	t.Parallel()

	jar := New()
	jar.Set(setCookieHeader(
		"tld=1; Domain=com",
		"foreign=1; Domain=example.org",
	), mustURL(t, "https://www.example.com/"))
	assert.Equal(t, 0, jar.Len())
}

func TestJarReplacesAndDeletes(t *testing.T) {
	t.Parallel()

	u := mustURL(t, "https://www.example.com/")
	jar := New()
	jar.Set(setCookieHeader("sid=old", "keep=1"), u)
	jar.Set(setCookieHeader("sid=new"), u)

	got, ok := jar.Get(u)
	require.True(t, ok)
	assert.Equal(t, "sid=new; keep=1", got)

	jar.Set(setCookieHeader("sid=gone; Max-Age=0"), u)
	got, ok = jar.Get(u)
	require.True(t, ok)
	assert.Equal(t, "keep=1", got)
}

func TestJarUnmarshalRejectsMalformedRecords(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"blank cookie":   `[{"raw_cookie":"","path":["/",false],"domain":{"HostOnly":"a.com"},"expires":"SessionEnd"}]`,
		"bad path":       `[{"raw_cookie":"a=b","path":"/","domain":{"HostOnly":"a.com"},"expires":"SessionEnd"}]`,
		"unknown domain": `[{"raw_cookie":"a=b","path":["/",false],"domain":{"Prefix":"a.com"},"expires":"SessionEnd"}]`,
		"unknown expiry": `[{"raw_cookie":"a=b","path":["/",false],"domain":"Empty","expires":"Never"}]`,
		"not an array":   `{"raw_cookie":"a=b"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var jar Jar
			assert.Error(t, json.Unmarshal([]byte(payload), &jar))
		})
	}
}

func TestJarCapturesCookiesAcrossRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get("Cookie"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	jar := New()
	client := &http.Client{Jar: jar}
	resp, err := client.Get(srv.URL + "/login")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test cleanup

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "sid=abc", string(body))

	header, ok := jar.Get(mustURL(t, srv.URL+"/anything"))
	require.True(t, ok)
	assert.Equal(t, "sid=abc", header)
}

func TestJarConcurrentAccess(t *testing.T) {
	t.Parallel()

	jar := New()
	u := mustURL(t, "https://pr-webs-vendor.des.wa.gov/Search_Bid.aspx")
	const writers = 8
	const rounds = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				jar.SetCookies(u, []*http.Cookie{{Name: fmt.Sprintf("c%d", w), Value: fmt.Sprintf("v%d", i), Path: "/"}})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				jar.Cookies(u)
				jar.Get(u)
				_, err := json.Marshal(jar)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, writers, jar.Len())
	for _, c := range jar.Cookies(u) {
		assert.Equal(t, fmt.Sprintf("v%d", rounds-1), c.Value, c.Name)
	}
}
