package web

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdfplan/internal/capture"
	"cdfplan/internal/config"
	"cdfplan/internal/host"
	"cdfplan/internal/ics"
	"cdfplan/internal/model"
	"cdfplan/internal/store"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*httptest.Server, *store.Memory) {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	cfg.Normalize()

	mem := store.NewMemory()
	h := host.New(host.Options{
		Store: mem,
		Generator: ics.Generator{
			ProductID:   cfg.Calendar.ProductID,
			FallbackDay: cfg.FallbackDay(),
			Now:         func() time.Time { return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC) },
		},
		GenericFilename: cfg.Calendar.MultiEventFilename,
	})

	ts := httptest.NewServer(NewServer(cfg, h).Handler())
	t.Cleanup(ts.Close)
	return ts, mem
}

func bootstrap(t *testing.T, ts *httptest.Server, channels ...string) bootstrapResponse {
	t.Helper()

	body, err := json.Marshal(bootstrapRequest{Channels: channels})
	require.NoError(t, err)

	res, err := http.Post(ts.URL+"/coupe-de-france/api/bootstrap", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out bootstrapResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func signal(t *testing.T, ts *httptest.Server, session, channel, payload string) *http.Response {
	t.Helper()

	url := ts.URL + "/coupe-de-france/api/sessions/" + session + "/ports/" + channel
	res, err := http.Post(url, "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestBootstrap(t *testing.T) {
	ts, mem := newTestServer(t, nil)
	mem.Put(model.KeySelectedMissions, []byte(`["m7"]`))

	boot := bootstrap(t, ts, "print", "saveBenevoleSelection", "exportCalendar")

	assert.NotEmpty(t, boot.Session)
	// print is not wired without a printer.
	assert.Len(t, boot.Channels, 2)
	assert.Equal(t, model.Selection{"m7"}, boot.Flags.SelectedMissions)
	assert.Equal(t, model.Selection{}, boot.Flags.SelectedTeams)
}

func TestFlagsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res, err := http.Get(ts.URL + "/coupe-de-france/api/flags")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, _ := io.ReadAll(res.Body)
	assert.JSONEq(t, `{"planningData":null,"benevolesData":null,"selectedMissions":[],"selectedTeams":[]}`, string(body))
}

func TestPort_SaveSelection(t *testing.T) {
	ts, mem := newTestServer(t, nil)
	boot := bootstrap(t, ts, "saveTeamsSelection")

	res := signal(t, ts, boot.Session, "saveTeamsSelection", `["t1","t2"]`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	raw, err := mem.Load(t.Context(), model.KeySelectedTeams)
	require.NoError(t, err)
	assert.Equal(t, model.Selection{"t1", "t2"}, raw)

	res = signal(t, ts, boot.Session, "saveTeamsSelection", `{"not":"a list"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPort_ExportCalendar(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	boot := bootstrap(t, ts, "exportCalendar")

	res := signal(t, ts, boot.Session, "exportCalendar", `[]`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	payload := `[{"title":"Setup","day":"2026-04-03","startTime":"08:00","endTime":"10:00"}]`
	res = signal(t, ts, boot.Session, "exportCalendar", payload)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/calendar; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=Setup.ics", res.Header.Get("Content-Disposition"))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "DTSTART:20260403T080000\r\n")
	assert.Contains(t, string(body), "DTEND:20260403T100000\r\n")
	assert.Contains(t, string(body), "SUMMARY:Setup\r\n")
}

func TestPort_NotWiredAndUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	boot := bootstrap(t, ts, "exportCalendar")

	res := signal(t, ts, boot.Session, "saveBenevoleSelection", `["m1"]`)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = signal(t, ts, boot.Session, "print", ``)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = signal(t, ts, "no-such-session", "exportCalendar", `[]`)
	assert.Equal(t, http.StatusGone, res.StatusCode)
}

func TestPort_StaleSessionRebootstrapsAndSaves(t *testing.T) {
	ts, mem := newTestServer(t, nil)

	res := signal(t, ts, "session-from-before-restart", "saveBenevoleSelection", `["m1"]`)
	require.Equal(t, http.StatusGone, res.StatusCode)

	boot := bootstrap(t, ts, "saveBenevoleSelection")
	res = signal(t, ts, boot.Session, "saveBenevoleSelection", `["m1"]`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	sel, err := mem.Load(t.Context(), model.KeySelectedMissions)
	require.NoError(t, err)
	assert.Equal(t, model.Selection{"m1"}, sel)
}

func TestPort_ExportCalendarAccentedTitle(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	boot := bootstrap(t, ts, "exportCalendar")

	res := signal(t, ts, boot.Session, "exportCalendar", `[{"title":"Réunion bénévoles","day":"2026-04-03"}]`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	_, params, err := mime.ParseMediaType(res.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "Réunion_bénévoles.ics", params["filename"])
	assert.Contains(t, res.Header.Get("Content-Disposition"), "filename=Reunion_benevoles.ics;")
}

func TestStaticAndRedirect(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res, err := http.Get(ts.URL + "/coupe-de-france/")
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `<div id="app">`)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	res, err = client.Get(ts.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/coupe-de-france/", res.Header.Get("Location"))

	res, err = http.Get(ts.URL + "/coupe-de-france/api/unknown")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	ts, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "orga", Password: "secret"}
	})

	res, err := http.Get(ts.URL + "/coupe-de-france/api/flags")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/coupe-de-france/api/flags", nil)
	require.NoError(t, err)
	req.SetBasicAuth("orga", "secret")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestBasicAuth_PrinterHeaderReachesApp(t *testing.T) {
	ts, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "orga", Password: "secret"}
	})

	printer := capture.NewPrinter(ts.URL+"/coupe-de-france/", "", 0).WithBasicAuth("orga", "secret")

	req, err := http.NewRequest(http.MethodGet, printer.Options.URL, nil)
	require.NoError(t, err)
	for k, v := range printer.Options.Headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `<div id="app">`)
}
