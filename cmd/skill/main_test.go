package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	libspotify "github.com/zmb3/spotify"
	"golang.org/x/oauth2"

	"Spotify-Skill-Go/pkg/auth"
	"Spotify-Skill-Go/pkg/db"
	"Spotify-Skill-Go/pkg/spotify"
)

// fakeCatalog implements catalog for the commands without hitting the Web
// API. Only artist queries find anything.
type fakeCatalog struct {
	devices []libspotify.PlayerDevice
	artist  *spotify.Match
}

func (f *fakeCatalog) Devices(context.Context) ([]libspotify.PlayerDevice, error) {
	return f.devices, nil
}
func (f *fakeCatalog) SavedTracks(context.Context) ([]libspotify.FullTrack, error) { return nil, nil }
func (f *fakeCatalog) QueryArtist(context.Context, string) (*spotify.Match, error) {
	if f.artist == nil {
		return nil, spotify.ErrNothingFound
	}
	return f.artist, nil
}
func (f *fakeCatalog) QueryAlbum(context.Context, string) (*spotify.Match, error) {
	return nil, spotify.ErrNothingFound
}
func (f *fakeCatalog) QuerySong(context.Context, string) (*spotify.Match, error) {
	return nil, spotify.ErrNothingFound
}
func (f *fakeCatalog) QueryPlaylist(context.Context, string) (*spotify.Match, error) {
	return nil, spotify.ErrNothingFound
}
func (f *fakeCatalog) BestUserPlaylist(context.Context, string) (*spotify.Match, error) {
	return nil, spotify.ErrNothingFound
}
func (f *fakeCatalog) GenericQuery(ctx context.Context, q string) (*spotify.Match, error) {
	return f.QueryArtist(ctx, q)
}
func (f *fakeCatalog) TracksFromArtist(context.Context, libspotify.ID) ([]libspotify.FullTrack, error) {
	t := libspotify.FullTrack{}
	t.Name, t.URI = "One", "spotify:track:1"
	return []libspotify.FullTrack{t}, nil
}
func (f *fakeCatalog) TracksFromAlbum(context.Context, libspotify.ID) ([]libspotify.SimpleTrack, error) {
	return nil, nil
}
func (f *fakeCatalog) TracksFromPlaylist(context.Context, libspotify.ID) ([]libspotify.FullTrack, error) {
	return nil, nil
}
func (f *fakeCatalog) Ping(context.Context) (string, error) { return "me", nil }

func metallica() *spotify.Match {
	a := libspotify.FullArtist{}
	a.Name, a.ID, a.URI = "Metallica", "m", "spotify:artist:m"
	return &spotify.Match{Confidence: 90, Kind: spotify.KindArtist, Name: a.Name, URI: a.URI, Artist: &a, Artists: []libspotify.FullArtist{a}}
}

// setEnv points the configuration at a temporary directory and returns it.
func setEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("SPOTIFY_SKILL_CREDS_DIR", filepath.Join(dir, "creds"))
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("SPOTIFY_SKILL_STORE", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("SPOTIFY_PLAYERS", "kitchen")
	return filepath.Join(dir, "creds")
}

func saveToken(t *testing.T, dir string) {
	t.Helper()
	rec := &auth.TokenRecord{ClientID: "id", ClientSecret: "secret", AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	if err := auth.NewFileStore(dir).Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
}

func newTestRunner(in string, fc *fakeCatalog) (*runner, *bytes.Buffer) {
	out := &bytes.Buffer{}
	r := newRunner(strings.NewReader(in), out)
	r.newCatalog = func(context.Context, oauth2.TokenSource) catalog { return fc }
	return r, out
}

func run(t *testing.T, r *runner, args ...string) error {
	t.Helper()
	return r.command().Run(context.Background(), append([]string{"skill"}, args...))
}

func TestAuthCommand(t *testing.T) {
	dir := setEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	r, out := newTestRunner("id\nsecret\nhttps://localhost:8888/?code=c&state=s\n", &fakeCatalog{})
	r.state = func() string { return "s" }
	r.authOpts = []auth.Option{auth.WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"})}
	if err := run(t, r, "auth"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), srv.URL+"/authorize") {
		t.Errorf("authorize URL not printed: %s", out.String())
	}
	rec, err := auth.NewFileStore(dir).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rec.ClientID != "id" || rec.RefreshToken != "r" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestAuthCommandSQLiteStore(t *testing.T) {
	dir := setEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	r, _ := newTestRunner("id\nsecret\nhttps://localhost:8888/?code=c&state=s\n", &fakeCatalog{})
	r.state = func() string { return "s" }
	r.authOpts = []auth.Option{auth.WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"})}
	if err := run(t, r, "--store", "sqlite", "auth"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, auth.TokenFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("token file should not exist: %v", err)
	}
	d, err := db.New(filepath.Join(dir, "skill.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	rec, err := d.TokenStore(tokenID).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rec.ClientSecret != "secret" || rec.AccessToken != "a" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestTokenCommand(t *testing.T) {
	dir := setEnv(t)
	saveToken(t, dir)
	r, out := newTestRunner("", &fakeCatalog{})
	if err := run(t, r, "token", "--check"); err != nil {
		t.Fatal(err)
	}
	var st tokenStatus
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.ClientID != "id" || !st.HasRefreshToken || st.Expired || st.Store != "file" {
		t.Fatalf("unexpected status %+v", st)
	}
	if strings.Contains(out.String(), "secret") {
		t.Fatal("client secret printed")
	}
}

func TestNotAuthorized(t *testing.T) {
	setEnv(t)
	r, _ := newTestRunner("", &fakeCatalog{})
	if err := run(t, r, "resolve", "metallica"); !errors.Is(err, auth.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized got %v", err)
	}
}

func TestResolveAndHistory(t *testing.T) {
	dir := setEnv(t)
	saveToken(t, dir)
	fc := &fakeCatalog{devices: []libspotify.PlayerDevice{{Name: "Kitchen"}}, artist: metallica()}

	r, out := newTestRunner("", fc)
	if err := run(t, r, "resolve", "the", "artist", "metallica"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"uri": "spotify://spotify:artist:m"`) {
		t.Fatalf("unexpected output %s", out.String())
	}

	r, out = newTestRunner("", fc)
	if err := run(t, r, "history", "--limit", "5"); err != nil {
		t.Fatal(err)
	}
	var rows []db.Resolution
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Phrase != "the artist metallica" {
		t.Fatalf("unexpected history %+v", rows)
	}
}

func TestResolveRequiresPhrase(t *testing.T) {
	dir := setEnv(t)
	saveToken(t, dir)
	r, _ := newTestRunner("", &fakeCatalog{})
	if err := run(t, r, "resolve"); !errors.Is(err, errNoPhrase) {
		t.Fatalf("expected errNoPhrase got %v", err)
	}
}

func TestSearchCommand(t *testing.T) {
	dir := setEnv(t)
	saveToken(t, dir)
	fc := &fakeCatalog{devices: []libspotify.PlayerDevice{{Name: "kitchen"}}, artist: metallica()}
	r, out := newTestRunner("", fc)
	if err := run(t, r, "search", "--media-type", "music", "metallica"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Metallica (Featured Tracks)") {
		t.Fatalf("unexpected output %s", out.String())
	}
}

func TestDevicesCommand(t *testing.T) {
	dir := setEnv(t)
	saveToken(t, dir)
	fc := &fakeCatalog{devices: []libspotify.PlayerDevice{{Name: "Kitchen", Type: "Speaker"}, {Name: "Phone"}}}
	r, out := newTestRunner("", fc)
	if err := run(t, r, "devices"); err != nil {
		t.Fatal(err)
	}
	var devs []deviceStatus
	if err := json.Unmarshal(out.Bytes(), &devs); err != nil {
		t.Fatal(err)
	}
	if len(devs) != 2 || !devs[0].Configured || devs[1].Configured {
		t.Fatalf("unexpected devices %+v", devs)
	}
}

// TestServeStopsOnCancel starts the server on a free port, checks that it
// answers and that cancelling the context shuts it down cleanly.
func TestServeStopsOnCancel(t *testing.T) {
	dir := setEnv(t)
	saveToken(t, dir)
	r, _ := newTestRunner("", &fakeCatalog{})
	addrc := make(chan net.Addr, 1)
	r.listening = func(a net.Addr) { addrc <- a }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- r.command().Run(ctx, []string{"skill", "serve", "--addr", "127.0.0.1:0"})
	}()

	var addr net.Addr
	select {
	case addr = <-addrc:
	case err := <-done:
		t.Fatalf("serve returned before listening: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	resp, err := http.Get("http://" + addr.String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
