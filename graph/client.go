package graph

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

const (
	putPath = "graph/put"
	getPath = "graph/get"
	mapPath = "graph/map"
)

const (
	writeTimeout = 30 * time.Second
	readTimeout  = 10 * time.Second
)

// Client talks to a replicated graph store relay. Records written
// under a frozen path are signed with the relay key and immutable once
// accepted.
type Client struct {
	endpoint string
	key      ed25519.PrivateKey
}

// NewClient returns a new graph store client signing writes with the
// given relay key.
func NewClient(endpoint string, key ed25519.PrivateKey) *Client {
	return &Client{
		endpoint: endpoint,
		key:      key,
	}
}

type putRequest struct {
	Path      string          `json:"path"`
	Record    json.RawMessage `json:"record"`
	Signature string          `json:"signature"`
	PublicKey string          `json:"public_key"`
}

type entry struct {
	Key    string          `json:"key"`
	Record json.RawMessage `json:"record"`
}

// Put writes the record under the given path, signed by the relay key.
func (c *Client) Put(
	ctx context.Context,
	path string,
	record interface{},
) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}

	sig := ed25519.Sign(c.key, append([]byte(path), raw...))
	u := fmt.Sprintf("%s/%s", c.endpoint, putPath)
	return httpPost(ctx, u, writeTimeout, &putRequest{
		Path:      path,
		Record:    raw,
		Signature: base64.StdEncoding.EncodeToString(sig),
		PublicKey: hex.EncodeToString(c.key.Public().(ed25519.PublicKey)),
	}, nil)
}

// Get reads the record at the given path into out, reporting whether
// a record was present.
func (c *Client) Get(
	ctx context.Context,
	path string,
	out interface{},
) (bool, error) {
	u := fmt.Sprintf("%s/%s?path=%s",
		c.endpoint,
		getPath,
		url.QueryEscape(path),
	)
	var raw json.RawMessage
	if err := httpGet(ctx, u, readTimeout, &raw); err != nil {
		return false, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}

	return true, json.Unmarshal(raw, out)
}

// MapOnce iterates a best-effort snapshot of the records below the
// given path. The store has no bounded list primitive, so the caller
// bounds the call with its context deadline and the visitor sees
// whatever the relay had replicated at that moment.
func (c *Client) MapOnce(
	ctx context.Context,
	path string,
	visit func(key string, raw json.RawMessage) error,
) error {
	u := fmt.Sprintf("%s/%s?path=%s",
		c.endpoint,
		mapPath,
		url.QueryEscape(path),
	)
	entries := make([]*entry, 0)
	if err := httpGet(ctx, u, readTimeout, &entries); err != nil {
		return err
	}

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := visit(e.Key, e.Record); err != nil {
			return err
		}
	}

	return nil
}
