package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

const azureBlobHostSuffix = ".blob.core.windows.net"

// BlobLocation addresses one blob in an Azure storage account
type BlobLocation struct {
	Account   string
	Container string
	Blob      string
}

// ParseBlobURL splits https://<account>.blob.core.windows.net/<container>/<blob>.
// The older ?blob=<name> form with only the container in the path is also accepted.
func ParseBlobURL(blobURL string) (BlobLocation, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return BlobLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, azureBlobHostSuffix) {
		return BlobLocation{}, fmt.Errorf("%w: %s is not an Azure blob host", ErrInvalidLocation, u.Host)
	}

	loc := BlobLocation{Account: strings.TrimSuffix(host, azureBlobHostSuffix)}
	path := strings.TrimPrefix(u.Path, "/")
	container, blob, found := strings.Cut(path, "/")
	loc.Container = container
	if found {
		loc.Blob = blob
	} else {
		loc.Blob = u.Query().Get("blob")
	}

	if loc.Account == "" || loc.Container == "" || loc.Blob == "" {
		return BlobLocation{}, fmt.Errorf("%w: %s must name a container and a blob", ErrInvalidLocation, blobURL)
	}
	return loc, nil
}

type blobOpener interface {
	openBlob(ctx context.Context, container, blob string) (io.ReadCloser, error)
}

type azblobOpener struct {
	client *azblob.Client
}

func (o azblobOpener) openBlob(ctx context.Context, container, blob string) (io.ReadCloser, error) {
	resp, err := o.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// AzureBlobSource reads images from one Azure storage account with a shared key
type AzureBlobSource struct {
	account  string
	opener   blobOpener
	maxBytes int64
}

// NewAzureBlobSource creates a source for the given account
func NewAzureBlobSource(accountName, accountKey string, maxBytes int64) (*AzureBlobSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s%s", accountName, azureBlobHostSuffix),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &AzureBlobSource{
		account:  strings.ToLower(accountName),
		opener:   azblobOpener{client: client},
		maxBytes: maxBytes,
	}, nil
}

// Fetch downloads the blob named by location
func (s *AzureBlobSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	loc, err := ParseBlobURL(location)
	if err != nil {
		return nil, err
	}
	if loc.Account != s.account {
		return nil, fmt.Errorf("%w: account %s is not configured", ErrInvalidLocation, loc.Account)
	}

	body, err := s.opener.openBlob(ctx, loc.Container, loc.Blob)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, loc.Container, loc.Blob)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer body.Close()

	return readLimited(body, s.maxBytes)
}
