// Package storage holds the external stores the service writes to outside the database.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"go-counter-deck/internal/imaging"
)

// ArchivePrefix is the virtual directory deck screenshots are stored under
const ArchivePrefix = "deck-images"

// ImageArchive keeps a copy of submitted deck images
type ImageArchive interface {
	// Archive stores the image and returns the blob name
	Archive(ctx context.Context, requestID, userID, image string) (string, error)
}

// NopArchive discards images
type NopArchive struct{}

// Archive implements ImageArchive
func (NopArchive) Archive(context.Context, string, string, string) (string, error) {
	return "", nil
}

// AzureArchive uploads images to an Azure Blob Storage container
type AzureArchive struct {
	client    *azblob.Client
	container string
}

// NewAzureArchive creates an archive using shared key credentials. serviceURL
// may be empty, in which case the public endpoint of the account is used.
func NewAzureArchive(accountName, accountKey, container, serviceURL string) (*AzureArchive, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &AzureArchive{client: client, container: container}, nil
}

// BlobName returns the blob path used for a request's image
func BlobName(requestID, ext string) string {
	return fmt.Sprintf("%s/%s.%s", ArchivePrefix, requestID, strings.TrimPrefix(ext, "."))
}

// Archive implements ImageArchive
func (s *AzureArchive) Archive(ctx context.Context, requestID, userID, image string) (string, error) {
	payload, err := imaging.DecodeDataURL(image)
	if err != nil {
		return "", err
	}

	name := BlobName(requestID, payload.Ext)
	contentType := payload.MIMEType
	metadata := map[string]*string{"request_id": &requestID}
	if userID != "" {
		metadata["user_id"] = &userID
	}
	// dimensions are recorded when the bytes decode; undecodable uploads are still kept
	if report, err := imaging.Inspect(payload.Data); err == nil {
		width, height := strconv.Itoa(report.Width), strconv.Itoa(report.Height)
		metadata["width"] = &width
		metadata["height"] = &height
	}

	_, err = s.client.UploadBuffer(ctx, s.container, name, payload.Data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata:    metadata,
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return name, nil
}
