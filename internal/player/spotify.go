package player

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

const (
	spotifyAPIBase       = "https://api.spotify.com/v1"
	spotifyTokenEndpoint = "https://accounts.spotify.com/api/token"
	spotifyHTTPTimeout   = 10 * time.Second
)

// spotifyToken is the on-disk token file. The refresh credentials are
// provisioned once during device setup; the access token is rewritten
// in place whenever a refresh succeeds.
type spotifyToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// SpotifyBackend drives playback through the Spotify Web API, targeting
// the Connect device that the local librespot process registers. All
// errors are *peer.Failure: 401/403 and token trouble are AuthIssue,
// a missing Connect device is ResourceUnavailable, everything else
// Transient.
type SpotifyBackend struct {
	tokenFile  string
	deviceName string
	log        *logging.Logger
	http       *http.Client

	// apiBase and tokenURL are fixed in production; tests point them
	// at a local server.
	apiBase  string
	tokenURL string

	token    spotifyToken
	deviceID string
}

// NewSpotifyBackend creates a backend bound to the token file and the
// librespot device name. No network traffic happens until EnsureReady.
func NewSpotifyBackend(tokenFile, deviceName string, log *logging.Logger) *SpotifyBackend {
	return &SpotifyBackend{
		tokenFile:  tokenFile,
		deviceName: strings.ToLower(deviceName),
		log:        log,
		http:       &http.Client{Timeout: spotifyHTTPTimeout},
		apiBase:    spotifyAPIBase,
		tokenURL:   spotifyTokenEndpoint,
	}
}

// EnsureReady loads the token file and discovers the Connect device.
// Discovery exercises the token, refreshing it once if expired.
func (b *SpotifyBackend) EnsureReady() error {
	if err := b.loadToken(); err != nil {
		return err
	}
	return b.discoverDevice()
}

// Play starts uri at the given position on the discovered device.
// Track URIs play standalone; anything else is a context (playlist,
// album) started from its first entry.
func (b *SpotifyBackend) Play(uri string, positionMS int) error {
	body := map[string]any{}
	if strings.HasPrefix(uri, "spotify:track:") {
		body["uris"] = []string{uri}
	} else {
		body["context_uri"] = uri
	}
	if positionMS > 0 {
		body["position_ms"] = positionMS
	}
	return b.playerCall("play", http.MethodPut, "/me/player/play", url.Values{"device_id": {b.deviceID}}, body)
}

// Stop pauses playback on the device.
func (b *SpotifyBackend) Stop() error {
	return b.playerCall("stop", http.MethodPut, "/me/player/pause", url.Values{"device_id": {b.deviceID}}, nil)
}

// Next skips forward in the current context.
func (b *SpotifyBackend) Next() error {
	return b.playerCall("next", http.MethodPost, "/me/player/next", url.Values{"device_id": {b.deviceID}}, nil)
}

// Previous skips backward in the current context.
func (b *SpotifyBackend) Previous() error {
	return b.playerCall("previous", http.MethodPost, "/me/player/previous", url.Values{"device_id": {b.deviceID}}, nil)
}

// SeekAbs moves to an absolute position in the current track.
func (b *SpotifyBackend) SeekAbs(positionMS int) error {
	if positionMS < 0 {
		positionMS = 0
	}
	q := url.Values{
		"device_id":   {b.deviceID},
		"position_ms": {fmt.Sprint(positionMS)},
	}
	return b.playerCall("seek", http.MethodPut, "/me/player/seek", q, nil)
}

// Status reads the playback snapshot. A 204 means no active playback,
// which is a valid stopped status, not an error.
func (b *SpotifyBackend) Status() (Status, error) {
	code, respBody, err := b.apiRequest(http.MethodGet, "/me/player", nil, nil)
	if err != nil {
		return Status{}, err
	}
	if code == http.StatusNoContent {
		return Status{}, nil
	}
	if code != http.StatusOK {
		return Status{}, b.httpFailure("status", code, respBody)
	}

	var snap struct {
		IsPlaying  bool `json:"is_playing"`
		ProgressMS int  `json:"progress_ms"`
		Item       struct {
			URI string `json:"uri"`
		} `json:"item"`
	}
	if err := json.Unmarshal(respBody, &snap); err != nil {
		return Status{}, peer.NewFailure(peer.Transient, "status", fmt.Errorf("invalid player JSON: %w", err))
	}
	return Status{Playing: snap.IsPlaying, URI: snap.Item.URI, PositionMS: snap.ProgressMS}, nil
}

// playerCall issues one player-control request and normalises the
// accepted status codes (Spotify answers 200, 202 or 204 depending on
// the endpoint).
func (b *SpotifyBackend) playerCall(op, method, path string, query url.Values, body any) error {
	if b.deviceID == "" {
		if err := b.EnsureReady(); err != nil {
			return err
		}
	}
	code, respBody, err := b.apiRequest(method, path, query, body)
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		// The Connect device vanished between discovery and use.
		b.deviceID = ""
		return peer.NewFailure(peer.ResourceUnavailable, op, fmt.Errorf("device gone: %s", respBody))
	default:
		return b.httpFailure(op, code, respBody)
	}
}

// apiRequest performs one authenticated call, refreshing the access
// token once on 401/403 the way the session originally obtained it.
func (b *SpotifyBackend) apiRequest(method, path string, query url.Values, body any) (int, []byte, error) {
	if b.token.AccessToken == "" {
		if err := b.refreshToken(); err != nil {
			return 0, nil, err
		}
	}

	code, respBody, err := b.doHTTP(method, path, query, body, b.token.AccessToken)
	if err != nil {
		return 0, nil, err
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		b.log.Warn("spotify auth rejected, refreshing token", "status", code)
		if err := b.refreshToken(); err != nil {
			return 0, nil, err
		}
		code, respBody, err = b.doHTTP(method, path, query, body, b.token.AccessToken)
		if err != nil {
			return 0, nil, err
		}
		if code == http.StatusUnauthorized || code == http.StatusForbidden {
			return 0, nil, peer.NewFailure(peer.AuthIssue, "api",
				fmt.Errorf("auth error %d after refresh: %s", code, respBody))
		}
	}
	return code, respBody, nil
}

func (b *SpotifyBackend) doHTTP(method, path string, query url.Values, body any, token string) (int, []byte, error) {
	u := b.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, peer.NewFailure(peer.Transient, "api", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return 0, nil, peer.NewFailure(peer.Transient, "api", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return 0, nil, peer.NewFailure(peer.Transient, "api", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, peer.NewFailure(peer.Transient, "api", err)
	}
	return resp.StatusCode, respBody, nil
}

// loadToken reads the token file provisioned at device setup.
func (b *SpotifyBackend) loadToken() error {
	data, err := os.ReadFile(b.tokenFile)
	if err != nil {
		return peer.NewFailure(peer.AuthIssue, "load_token", err)
	}
	var tok spotifyToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return peer.NewFailure(peer.AuthIssue, "load_token", fmt.Errorf("invalid token file: %w", err))
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return peer.NewFailure(peer.AuthIssue, "load_token", fmt.Errorf("no usable tokens in %s", b.tokenFile))
	}
	b.token = tok
	return nil
}

// refreshToken exchanges the refresh token for a new access token and
// persists it back into the token file.
func (b *SpotifyBackend) refreshToken() error {
	if b.token.RefreshToken == "" || b.token.ClientID == "" || b.token.ClientSecret == "" {
		return peer.NewFailure(peer.AuthIssue, "refresh", fmt.Errorf("no refresh credentials"))
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {b.token.RefreshToken},
		"client_id":     {b.token.ClientID},
		"client_secret": {b.token.ClientSecret},
	}
	resp, err := b.http.PostForm(b.tokenURL, form)
	if err != nil {
		return peer.NewFailure(peer.Transient, "refresh", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return peer.NewFailure(peer.Transient, "refresh", err)
	}
	if resp.StatusCode != http.StatusOK {
		return peer.NewFailure(peer.AuthIssue, "refresh",
			fmt.Errorf("token refresh failed (%d): %s", resp.StatusCode, respBody))
	}

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return peer.NewFailure(peer.AuthIssue, "refresh", fmt.Errorf("invalid refresh response: %w", err))
	}
	if tok.AccessToken == "" {
		return peer.NewFailure(peer.AuthIssue, "refresh", fmt.Errorf("no access_token in refresh response"))
	}

	b.token.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		b.token.RefreshToken = tok.RefreshToken
	}
	b.saveToken()
	b.log.Info("spotify access token refreshed")
	return nil
}

// saveToken rewrites the token file with the current tokens. Failure
// only costs a refresh on the next boot.
func (b *SpotifyBackend) saveToken() {
	data, err := json.MarshalIndent(b.token, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(b.tokenFile, data, 0o600); err != nil {
		b.log.Warn("failed to persist refreshed token", "error", err)
	}
}

// discoverDevice finds the Connect device whose name contains the
// configured device name.
func (b *SpotifyBackend) discoverDevice() error {
	code, respBody, err := b.apiRequest(http.MethodGet, "/me/player/devices", nil, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return b.httpFailure("discover", code, respBody)
	}

	var list struct {
		Devices []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"devices"`
	}
	if err := json.Unmarshal(respBody, &list); err != nil {
		return peer.NewFailure(peer.Transient, "discover", fmt.Errorf("invalid devices JSON: %w", err))
	}

	for _, dev := range list.Devices {
		if strings.Contains(strings.ToLower(dev.Name), b.deviceName) {
			b.deviceID = dev.ID
			b.log.Info("spotify connect device discovered", "device_id", dev.ID, "name", dev.Name)
			return nil
		}
	}
	return peer.NewFailure(peer.ResourceUnavailable, "discover",
		fmt.Errorf("no connect device matching %q", b.deviceName))
}

// httpFailure classifies an unexpected HTTP status.
func (b *SpotifyBackend) httpFailure(op string, code int, body []byte) error {
	class := peer.Transient
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		class = peer.AuthIssue
	}
	return peer.NewFailure(class, op, fmt.Errorf("spotify %s returned %d: %s", op, code, body))
}
