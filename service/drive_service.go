package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"armario-estampados/capture"
)

// DriveStorage stores artifacts in a Google Drive folder shared by link
type DriveStorage struct {
	client   *drive.Service
	folderID string
}

var _ Storage = (*DriveStorage)(nil)

// NewDriveStorage creates a DriveStorage. credentialsJSON takes precedence over
// credentialsPath, which should be the path to the Service Account JSON file.
func NewDriveStorage(ctx context.Context, credentialsPath, credentialsJSON, folderID string, extra ...option.ClientOption) (*DriveStorage, error) {
	opts := append([]option.ClientOption{}, extra...)
	switch {
	case credentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	case credentialsPath != "":
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DriveStorage{client: driveService, folderID: folderID}, nil
}

// Upload creates the file in the folder, grants link read access and returns its public URL
func (ds *DriveStorage) Upload(ctx context.Context, req capture.UploadRequest) (string, error) {
	file := &drive.File{
		Name:     strings.ReplaceAll(req.Key, "/", "_"),
		MimeType: req.ContentType,
		Properties: map[string]string{
			"orderId": req.OrderID,
			"side":    string(req.Side),
			"variant": string(req.Variant),
		},
	}
	if ds.folderID != "" {
		file.Parents = []string{ds.folderID}
	}

	created, err := ds.client.Files.Create(file).
		Media(bytes.NewReader(req.Data), googleapi.ContentType(req.ContentType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to create drive file: %w", err)
	}

	_, err = ds.client.Permissions.Create(created.Id, &drive.Permission{Type: "anyone", Role: "reader"}).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to share drive file %s: %w", created.Id, err)
	}

	log.Info().Str("file_id", created.Id).Str("name", file.Name).Msg("✓ Uploaded to Drive")
	return fmt.Sprintf("https://drive.google.com/uc?id=%s", created.Id), nil
}

// Delete removes a file by its public URL
func (ds *DriveStorage) Delete(ctx context.Context, fileURL string) error {
	id := driveFileID(fileURL)
	if id == "" {
		return fmt.Errorf("not a drive file url: %s", fileURL)
	}
	if err := ds.client.Files.Delete(id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete drive file %s: %w", id, err)
	}
	return nil
}

// driveFileID extracts the id from uc?id=ID or /file/d/ID/view links
func driveFileID(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil || !strings.HasSuffix(u.Hostname(), "google.com") {
		return ""
	}
	if id := u.Query().Get("id"); id != "" {
		return id
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "d" {
			return parts[i+1]
		}
	}
	return ""
}
