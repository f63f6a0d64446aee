package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Metadata is one entry of a list_folder response. Tag distinguishes
// folders from files.
type Metadata struct {
	Tag         string `json:".tag"`
	Name        string `json:"name"`
	PathLower   string `json:"path_lower,omitempty"`
	PathDisplay string `json:"path_display,omitempty"`
	ID          string `json:"id,omitempty"`
}

type listFolderRequest struct {
	Path                  string `json:"path"`
	Recursive             bool   `json:"recursive"`
	IncludeMountedFolders bool   `json:"include_mounted_folders"`
}

type listFolderResponse struct {
	Entries []Metadata `json:"entries"`
	Cursor  string     `json:"cursor"`
	HasMore bool       `json:"has_more"`
}

// FilesClient performs authenticated calls against the Dropbox files API
// using a provider access token obtained through the device endpoint.
type FilesClient struct {
	baseURL string
	client  *http.Client
}

// NewFilesClient creates a files API client. An empty baseURL falls back
// to the public Dropbox API endpoint.
func NewFilesClient(baseURL string, client *http.Client) *FilesClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &FilesClient{baseURL: baseURL, client: client}
}

// ListRootFolders lists the folders at the account root, filtering out
// file entries.
func (c *FilesClient) ListRootFolders(ctx context.Context, accessToken string) ([]Metadata, error) {
	reqBody, err := json.Marshal(listFolderRequest{IncludeMountedFolders: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling list_folder request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/files/list_folder", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("creating list_folder request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending list_folder request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading list_folder response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var listResp listFolderResponse
	if err := json.Unmarshal(body, &listResp); err != nil {
		return nil, fmt.Errorf("parsing list_folder response: %w", err)
	}

	var folders []Metadata
	for _, entry := range listResp.Entries {
		if entry.Tag == "folder" {
			folders = append(folders, entry)
		}
	}
	return folders, nil
}
