package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	addPath       = "api/v0/add"
	catPath       = "api/v0/cat"
	pinAddPath    = "api/v0/pin/add"
	pinLsPath     = "api/v0/pin/ls"
	blockStatPath = "api/v0/block/stat"
)

const (
	transferTimeout = 60 * time.Second
	pinTimeout      = 30 * time.Second
	statTimeout     = 10 * time.Second
)

// ErrNotFound is returned when the node does not have the requested
// content address.
var ErrNotFound = errors.New("content not found on storage network")

// Client talks to a content-addressed storage node over its HTTP API.
type Client struct {
	endpoint string
}

// NewClient returns a new storage network client instance.
func NewClient(endpoint string) *Client {
	return &Client{endpoint: endpoint}
}

// Add writes the bytes to the storage network and returns the
// resulting content address.
func (c *Client) Add(ctx context.Context, data []byte) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", err
	}

	if _, err := fw.Write(data); err != nil {
		return "", err
	}

	if err := mw.Close(); err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/%s", c.endpoint, addPath)
	req, err := http.NewRequest(http.MethodPost, u, body)
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())
	raw, err := c.do(ctx, req, transferTimeout)
	if err != nil {
		return "", err
	}

	resp := new(struct {
		Hash string `json:"Hash"`
	})
	if err := json.Unmarshal(raw, resp); err != nil {
		return "", err
	}

	return resp.Hash, nil
}

// Cat reads bytes of the object at the content address. A length of
// zero or less reads the whole object.
func (c *Client) Cat(
	ctx context.Context,
	cid string,
	offset int64,
	length int64,
) ([]byte, error) {
	u := fmt.Sprintf("%s/%s?arg=%s", c.endpoint, catPath, cid)
	if offset > 0 {
		u = fmt.Sprintf("%s&offset=%d", u, offset)
	}

	if length > 0 {
		u = fmt.Sprintf("%s&length=%d", u, length)
	}

	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, req, transferTimeout)
}

// Pin pins the content address on the local node.
func (c *Client) Pin(ctx context.Context, cid string) error {
	u := fmt.Sprintf("%s/%s?arg=%s", c.endpoint, pinAddPath, cid)
	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, req, pinTimeout)
	return err
}

// PinLs reports whether the content address is in the local pin set.
func (c *Client) PinLs(ctx context.Context, cid string) (bool, error) {
	u := fmt.Sprintf("%s/%s?arg=%s", c.endpoint, pinLsPath, cid)
	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return false, err
	}

	raw, err := c.do(ctx, req, statTimeout)
	if err != nil {
		// The node reports an unpinned object as an error rather
		// than an empty key set.
		if strings.Contains(err.Error(), "not pinned") {
			return false, nil
		}

		return false, err
	}

	resp := new(struct {
		Keys map[string]interface{} `json:"Keys"`
	})
	if err := json.Unmarshal(raw, resp); err != nil {
		return false, err
	}

	return len(resp.Keys) > 0, nil
}

// BlockStat returns the stored size of the block at the content
// address, or ErrNotFound when the node does not have it.
func (c *Client) BlockStat(ctx context.Context, cid string) (int64, error) {
	u := fmt.Sprintf("%s/%s?arg=%s&offline=true", c.endpoint, blockStatPath, cid)
	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return 0, err
	}

	raw, err := c.do(ctx, req, statTimeout)
	if err != nil {
		if strings.Contains(err.Error(), "not found") ||
			strings.Contains(err.Error(), "could not find") {
			return 0, ErrNotFound
		}

		return 0, err
	}

	resp := new(struct {
		Size int64 `json:"Size"`
	})
	if err := json.Unmarshal(raw, resp); err != nil {
		return 0, err
	}

	return resp.Size, nil
}

func (c *Client) do(
	ctx context.Context,
	req *http.Request,
	timeout time.Duration,
) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		nodeErr := new(struct {
			Message string `json:"Message"`
		})
		if err := json.Unmarshal(body, nodeErr); err == nil &&
			nodeErr.Message != "" {
			return nil, errors.New(nodeErr.Message)
		}

		return nil, fmt.Errorf("storage node returned status %d",
			resp.StatusCode)
	}

	return body, nil
}
