package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"
)

type gatewayResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

func httpGet(
	ctx context.Context,
	url string,
	timeout time.Duration,
	result interface{},
) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	return httpDo(ctx, req, timeout, result)
}

func httpPost(
	ctx context.Context,
	url string,
	timeout time.Duration,
	body interface{},
	result interface{},
) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	return httpDo(ctx, req, timeout, result)
}

func httpDo(
	ctx context.Context,
	req *http.Request,
	timeout time.Duration,
	result interface{},
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}

	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	gr := &gatewayResponse{}
	if err := json.Unmarshal(body, gr); err != nil {
		return err
	}

	if gr.Code != http.StatusOK {
		return fmt.Errorf("request gateway failed, err:%s", gr.Msg)
	}

	if result == nil {
		return nil
	}

	return json.Unmarshal(gr.Data, result)
}
