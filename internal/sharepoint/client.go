// Package sharepoint uploads documents to a SharePoint document library via
// the Microsoft Graph API.
package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docsync/agent/internal/docsync"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	defaultLoginBaseURL = "https://login.microsoftonline.com"

	// tokenSlack forces a refresh shortly before the cached token expires.
	tokenSlack = time.Minute
)

// Config holds the Azure AD application credentials and the target site.
// BaseURL overrides exist for tests.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteURL      string
	GraphBaseURL string
	LoginBaseURL string
}

func (c Config) graphBase() string {
	if c.GraphBaseURL == "" {
		return defaultGraphBaseURL
	}
	return strings.TrimSuffix(c.GraphBaseURL, "/")
}

func (c Config) loginBase() string {
	if c.LoginBaseURL == "" {
		return defaultLoginBaseURL
	}
	return strings.TrimSuffix(c.LoginBaseURL, "/")
}

// Client implements docsync.Uploader against Microsoft Graph. Site, drive,
// and folder ids are resolved once and cached for the lifetime of the
// client.
type Client struct {
	cfg    Config
	http   *http.Client
	clock  docsync.Clock
	logger *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	siteID   string
	driveID  string
	folders  map[string]string
}

var _ docsync.Uploader = (*Client)(nil)

// New builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, clock docsync.Clock, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{
		cfg:     cfg,
		http:    httpClient,
		clock:   clock,
		logger:  logger,
		folders: make(map[string]string),
	}
	if !c.Configured() {
		logger.Warn("sharepoint credentials not fully configured, uploads will be simulated")
	}
	return c
}

// Configured reports whether real uploads are possible.
func (c *Client) Configured() bool {
	return c.cfg.TenantID != "" && c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// Upload stores content under folderPath in the site's default document
// library and returns the remote item id. When the client is unconfigured it
// returns a deterministic placeholder id without any network traffic.
func (c *Client) Upload(ctx context.Context, filename string, content []byte, folderPath string) (string, error) {
	if !c.Configured() {
		c.logger.Info("simulating upload", zap.String("filename", filename))
		return "placeholder-" + filename, nil
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return "", storageUnavailable(fmt.Errorf("access token: %w", err))
	}
	siteID, err := c.resolveSite(ctx, token)
	if err != nil {
		return "", storageUnavailable(fmt.Errorf("resolve site: %w", err))
	}
	if _, err := c.resolveDrive(ctx, token, siteID); err != nil {
		return "", storageUnavailable(fmt.Errorf("resolve drive: %w", err))
	}
	folderID, err := c.ensureFolder(ctx, token, siteID, folderPath)
	if err != nil {
		return "", fmt.Errorf("ensure folder %q: %w", folderPath, err)
	}

	itemID, err := c.putFile(ctx, token, siteID, folderID, filename, content)
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", filename, err)
	}
	c.logger.Info("uploaded document",
		zap.String("filename", filename),
		zap.String("folder", folderPath),
		zap.String("item_id", itemID),
	)
	return itemID, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns the cached client-credentials token, fetching a new
// one when missing or near expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.clock.Now().Add(tokenSlack).Before(c.tokenExp) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.cfg.loginBase(), c.cfg.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: %s", readError(resp))
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.tokenExp = c.clock.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	c.mu.Unlock()
	return tr.AccessToken, nil
}

type driveItem struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Folder *json.RawMessage `json:"folder,omitempty"`
}

type childrenResponse struct {
	Value []driveItem `json:"value"`
}

// resolveSite turns the configured site URL into a Graph site id.
func (c *Client) resolveSite(ctx context.Context, token string) (string, error) {
	c.mu.Lock()
	if c.siteID != "" {
		id := c.siteID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	u, err := url.Parse(c.cfg.SiteURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid site url %q", c.cfg.SiteURL)
	}
	endpoint := fmt.Sprintf("%s/sites/%s:%s", c.cfg.graphBase(), u.Host, u.Path)

	var site driveItem
	if err := c.getJSON(ctx, token, endpoint, &site); err != nil {
		return "", err
	}
	if site.ID == "" {
		return "", fmt.Errorf("site lookup for %q returned no id", c.cfg.SiteURL)
	}

	c.mu.Lock()
	c.siteID = site.ID
	c.mu.Unlock()
	return site.ID, nil
}

// resolveDrive fetches the site's default document library id.
func (c *Client) resolveDrive(ctx context.Context, token, siteID string) (string, error) {
	c.mu.Lock()
	if c.driveID != "" {
		id := c.driveID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	endpoint := fmt.Sprintf("%s/sites/%s/drive", c.cfg.graphBase(), siteID)
	var drive driveItem
	if err := c.getJSON(ctx, token, endpoint, &drive); err != nil {
		return "", err
	}
	if drive.ID == "" {
		return "", fmt.Errorf("drive lookup returned no id")
	}

	c.mu.Lock()
	c.driveID = drive.ID
	c.mu.Unlock()
	return drive.ID, nil
}

// ensureFolder walks folderPath segment by segment, creating missing folders
// with rename-on-conflict, and returns the leaf folder id. Resolved paths
// are cached.
func (c *Client) ensureFolder(ctx context.Context, token, siteID, folderPath string) (string, error) {
	cleaned := strings.Trim(folderPath, "/")
	if cleaned == "" {
		return "root", nil
	}

	c.mu.Lock()
	if id, ok := c.folders[cleaned]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	parentID := "root"
	for _, name := range strings.Split(cleaned, "/") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, err := c.childFolder(ctx, token, siteID, parentID, name)
		if err != nil {
			return "", err
		}
		parentID = id
	}

	c.mu.Lock()
	c.folders[cleaned] = parentID
	c.mu.Unlock()
	return parentID, nil
}

// childFolder finds name under parentID, creating it when absent.
func (c *Client) childFolder(ctx context.Context, token, siteID, parentID, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/sites/%s/drive/items/%s/children", c.cfg.graphBase(), siteID, parentID)

	var children childrenResponse
	if err := c.getJSON(ctx, token, endpoint, &children); err != nil {
		return "", fmt.Errorf("list children of %s: %w", parentID, err)
	}
	for _, item := range children.Value {
		if item.Name == name && item.Folder != nil {
			return item.ID, nil
		}
	}

	body, err := json.Marshal(map[string]any{
		"name":                              name,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "rename",
	})
	if err != nil {
		return "", fmt.Errorf("encode folder request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build folder request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create folder %q: %s", name, readError(resp))
	}
	var created driveItem
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode folder response: %w", err)
	}
	c.logger.Info("created folder", zap.String("name", name), zap.String("id", created.ID))
	return created.ID, nil
}

// putFile uploads the bytes as a child of folderID.
func (c *Client) putFile(ctx context.Context, token, siteID, folderID, filename string, content []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/sites/%s/drive/items/%s:/%s:/content",
		c.cfg.graphBase(), siteID, folderID, url.PathEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("put content: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("put content: %s", readError(resp))
	}
	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return item.ID, nil
}

// getJSON performs an authorized GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, token, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: %s", endpoint, readError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// storageUnavailable marks destination-wide failures so callers can tell
// them apart from per-file ones.
func storageUnavailable(err error) error {
	return fmt.Errorf("%w: %w", docsync.ErrStorageUnavailable, err)
}

// readError summarizes a non-2xx response for error messages.
func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
