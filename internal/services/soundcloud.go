// SoundCloud implementation of [IdentityProvider] and [Catalog]
//
// API reference: https://developers.soundcloud.com/docs/api/explorer/open-api
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	soundcloudAuthURL  = "https://secure.soundcloud.com/authorize"
	soundcloudTokenURL = "https://secure.soundcloud.com/oauth/token"
	soundcloudAPIURL   = "https://api.soundcloud.com"

	// SoundCloudProvider is the provider key stored on linked identities.
	SoundCloudProvider = "soundcloud"

	defaultRedirectURI = "http://127.0.0.1:3000/auth/soundcloud/callback"
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

var (
	_ IdentityProvider = (*SoundCloudService)(nil)
	_ Catalog          = (*SoundCloudService)(nil)
)

// SoundCloudService signs users in with SoundCloud and queries its track catalog.
type SoundCloudService struct {
	config *oauth2.Config
	app    oauth2.TokenSource
	token  *oauth2.Token
	api    *APIClient
}

// NewSoundCloudService creates a SoundCloud service from "client_id", "client_secret" and an
// optional "redirect_uri".
func NewSoundCloudService(credentials map[string]string, logger *log.Logger) (*SoundCloudService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	endpoint := oauth2.Endpoint{
		AuthURL:   soundcloudAuthURL,
		TokenURL:  soundcloudTokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}

	app := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     soundcloudTokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	return &SoundCloudService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint:     endpoint,
		},
		app: app.TokenSource(context.Background()),
		api: NewAPIClient(soundcloudAPIURL, logger),
	}, nil
}

func (s *SoundCloudService) Name() string {
	return SoundCloudProvider
}

// AuthCodeURL returns the authorization URL with an S256 code challenge derived from verifier.
func (s *SoundCloudService) AuthCodeURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for a user token.
func (s *SoundCloudService) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	token, err := s.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Identity fetches /me with the user's token and normalizes it.
func (s *SoundCloudService) Identity(ctx context.Context, token *oauth2.Token) (*models.Identity, error) {
	if token == nil || token.AccessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}

	resp, err := s.api.Get(ctx, "/me", nil, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if !resp.IsJSON() {
		return nil, fmt.Errorf("%w: profile is not JSON", shared.ErrAPIRequest)
	}

	return identityFromJSON(resp.JSON())
}

// WithToken returns a copy of the service whose catalog calls act as the token's owner.
func (s *SoundCloudService) WithToken(token *oauth2.Token) *SoundCloudService {
	clone := *s
	clone.token = token
	return &clone
}

// SearchTracks searches the catalog. limit is clamped to [1, 50] and defaults to 20.
func (s *SoundCloudService) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	params := url.Values{
		"q":                   {query},
		"limit":               {strconv.Itoa(limit)},
		"linked_partitioning": {"true"},
	}

	doc, err := s.get(ctx, "/tracks", params)
	if err != nil {
		return nil, err
	}

	items := doc.Get("collection")
	if !items.Exists() {
		items = doc
	}

	tracks := []models.Track{}
	items.ForEach(func(_, value gjson.Result) bool {
		tracks = append(tracks, trackFromJSON(value))
		return true
	})
	return tracks, nil
}

// Track retrieves a single track by ID.
func (s *SoundCloudService) Track(ctx context.Context, id string) (*models.Track, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	doc, err := s.get(ctx, "/tracks/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	track := trackFromJSON(doc)
	return &track, nil
}

// StreamURL returns a progressive MP3 URL for the track, falling back to HLS.
func (s *SoundCloudService) StreamURL(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	doc, err := s.get(ctx, "/tracks/"+url.PathEscape(id)+"/streams", nil)
	if err != nil {
		return "", err
	}

	for _, key := range []string{"http_mp3_128_url", "hls_mp3_128_url", "hls_aac_160_url", "hls_opus_64_url"} {
		if v := doc.Get(key).String(); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: track %s is not streamable", shared.ErrTrackNotFound, id)
}

// Resolve maps a soundcloud.com permalink to its track.
func (s *SoundCloudService) Resolve(ctx context.Context, permalink string) (*models.Track, error) {
	u, err := url.Parse(strings.TrimSpace(permalink))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid track url %q", shared.ErrInvalidArgument, permalink)
	}

	doc, err := s.get(ctx, "/resolve", url.Values{"url": {u.String()}})
	if err != nil {
		return nil, err
	}
	if kind := doc.Get("kind").String(); kind != "track" {
		return nil, fmt.Errorf("%w: %s resolves to %q", shared.ErrTrackNotFound, permalink, kind)
	}

	track := trackFromJSON(doc)
	return &track, nil
}

// Waveform downloads the amplitude samples behind a track's waveform_url. Legacy PNG URLs are
// rewritten to their JSON counterpart.
func (s *SoundCloudService) Waveform(ctx context.Context, waveformURL string) (*models.Waveform, error) {
	if waveformURL == "" {
		return nil, fmt.Errorf("%w: waveform url", shared.ErrMissingArgument)
	}
	if strings.HasSuffix(waveformURL, ".png") {
		waveformURL = strings.TrimSuffix(waveformURL, ".png") + ".json"
	}

	resp, err := s.api.Get(ctx, waveformURL, nil, "")
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch waveform: %w", err)
	}

	doc := resp.JSON()
	wave := &models.Waveform{
		Width:  int(doc.Get("width").Int()),
		Height: int(doc.Get("height").Int()),
	}
	for _, sample := range doc.Get("samples").Array() {
		wave.Samples = append(wave.Samples, int(sample.Int()))
	}
	return wave, nil
}

// get performs an authenticated catalog GET and returns the parsed document.
func (s *SoundCloudService) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	token, err := s.accessToken()
	if err != nil {
		return gjson.Result{}, err
	}

	resp, err := s.api.Get(ctx, path, query, token)
	if err != nil {
		return gjson.Result{}, err
	}
	if err := resp.Err(); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return gjson.Result{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, path)
		}
		return gjson.Result{}, err
	}
	if !resp.IsJSON() {
		return gjson.Result{}, fmt.Errorf("%w: %s returned non-JSON body", shared.ErrAPIRequest, path)
	}
	return resp.JSON(), nil
}

func (s *SoundCloudService) accessToken() (string, error) {
	if s.token != nil && s.token.Valid() {
		return s.token.AccessToken, nil
	}

	token, err := s.app.Token()
	if err != nil {
		return "", fmt.Errorf("%w: client credentials: %v", shared.ErrAuthFailed, err)
	}
	return token.AccessToken, nil
}

func identityFromJSON(doc gjson.Result) (*models.Identity, error) {
	uid := doc.Get("id").String()
	if uid == "" {
		return nil, fmt.Errorf("%w: profile has no id", shared.ErrAuthFailed)
	}

	nickname := doc.Get("username").String()
	name := strings.TrimSpace(doc.Get("full_name").String())
	if name == "" {
		name = nickname
	}

	return &models.Identity{
		Provider: SoundCloudProvider,
		UID:      uid,
		Name:     name,
		Nickname: nickname,
		Image:    doc.Get("avatar_url").String(),
		URL:      doc.Get("permalink_url").String(),
		RawInfo:  doc.Raw,
	}, nil
}

func trackFromJSON(doc gjson.Result) models.Track {
	return models.Track{
		ID:           doc.Get("id").String(),
		Title:        doc.Get("title").String(),
		Artist:       doc.Get("user.username").String(),
		PermalinkURL: doc.Get("permalink_url").String(),
		ArtworkURL:   doc.Get("artwork_url").String(),
		WaveformURL:  doc.Get("waveform_url").String(),
		Duration:     int(doc.Get("duration").Int() / 1000),
		Streamable:   doc.Get("streamable").Bool(),
	}
}
