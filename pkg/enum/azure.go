package enum

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// AzureBlobClient is the subset of *azblob.Client the enumerator needs.
type AzureBlobClient interface {
	NewListBlobsFlatPager(containerName string, o *azblob.ListBlobsFlatOptions) *runtime.Pager[azblob.ListBlobsFlatResponse]
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

// AzureEnumerator yields the blobs stored under a container prefix.
type AzureEnumerator struct {
	config    Config
	client    AzureBlobClient
	account   string
	container string
	prefix    string
}

// NewAzureEnumerator creates an enumerator for az://account/container/prefix.
func NewAzureEnumerator(config Config, client AzureBlobClient, account, container, prefix string) *AzureEnumerator {
	return &AzureEnumerator{config: config, client: client, account: account, container: container, prefix: prefix}
}

// ParseAzureURL splits an az://account/container/prefix URL.
func ParseAzureURL(raw string) (account, container, prefix string, err error) {
	rest, ok := strings.CutPrefix(raw, "az://")
	if !ok {
		return "", "", "", fmt.Errorf("not an azure url: %s", raw)
	}
	parts := strings.SplitN(rest, "/", 3)
	if parts[0] == "" || len(parts) < 2 || parts[1] == "" {
		return "", "", "", fmt.Errorf("expected az://account/container[/prefix], got %s", raw)
	}
	if len(parts) == 3 {
		prefix = parts[2]
	}
	return parts[0], parts[1], prefix, nil
}

// AzureOptions configures NewAzureClient.
type AzureOptions struct {
	// Endpoint overrides https://<account>.blob.core.windows.net/, e.g.
	// for Azurite.
	Endpoint string
}

// NewAzureClient builds a client for account. Credentials come from
// AZURE_STORAGE_CONNECTION_STRING, then AZURE_STORAGE_KEY; without either
// the client is anonymous and reaches only public containers.
func NewAzureClient(account string, opts AzureOptions) (*azblob.Client, error) {
	if cs := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); cs != "" {
		client, err := azblob.NewClientFromConnectionString(cs, nil)
		if err != nil {
			return nil, fmt.Errorf("azure connection string: %w", err)
		}
		return client, nil
	}

	serviceURL := opts.Endpoint
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	}
	if key := os.Getenv("AZURE_STORAGE_KEY"); key != "" {
		cred, err := azblob.NewSharedKeyCredential(account, key)
		if err != nil {
			return nil, fmt.Errorf("azure shared key: %w", err)
		}
		return azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	}
	return azblob.NewClientWithNoCredential(serviceURL, nil)
}

func (e *AzureEnumerator) url(name string) string {
	return "az://" + e.account + "/" + e.container + "/" + name
}

// Enumerate lists every blob under the prefix and yields its content.
func (e *AzureEnumerator) Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	var opts azblob.ListBlobsFlatOptions
	if e.prefix != "" {
		opts.Prefix = &e.prefix
	}
	pager := e.client.NewListBlobsFlatPager(e.container, &opts)

	log := e.config.logger()
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing %s: %w", e.url(e.prefix), err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			name := *item.Name
			if !e.config.IncludeHidden && isHidden(path.Base(name)) {
				continue
			}
			if item.Properties != nil && item.Properties.ContentLength != nil &&
				e.config.MaxFileSize > 0 && *item.Properties.ContentLength > e.config.MaxFileSize {
				log.Debug("skipping large blob", "blob", e.url(name), "size", *item.Properties.ContentLength)
				continue
			}
			if err := e.processBlob(ctx, name, callback); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *AzureEnumerator) processBlob(ctx context.Context, name string, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	resp, err := e.client.DownloadStream(ctx, e.container, name, nil)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", e.url(name), err)
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if e.config.MaxFileSize > 0 {
		r = io.LimitReader(resp.Body, e.config.MaxFileSize)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", e.url(name), err)
	}

	content, ok := e.config.prepare(name, content)
	if !ok {
		return nil
	}
	prov := types.AzureProvenance{Account: e.account, Container: e.container, Blob: name}
	if resp.ETag != nil {
		prov.ETag = string(*resp.ETag)
	}
	return callback(content, types.ComputeBlobID(content), prov)
}
