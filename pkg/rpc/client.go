// Package rpc is a client for the tinylsm HTTP API.
package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tinylsm/pkg/store"
)

const defaultTimeout = 3 * time.Second

type HTTPStore struct {
	baseURL string
	client  *http.Client
}

type response struct {
	Status   string `json:"status"`
	Value    string `json:"value"`
	Previous string `json:"previous"`
	Replaced bool   `json:"replaced"`
	Error    string `json:"error"`
}

// BatchRecord mirrors one entry of the batch endpoint body. Keys and values
// are raw bytes; the client hex encodes them.
type BatchRecord struct {
	Key    []byte
	Value  []byte
	Delete bool
}

type batchRecord struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Delete bool   `json:"delete,omitempty"`
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Health returns nil when the server answers /health with 200.
func (s *HTTPStore) Health() error {
	resp, err := s.client.Get(s.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("health failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health status=%d", resp.StatusCode)
	}
	return nil
}

// Put stores value under key and returns the previous value, if any.
func (s *HTTPStore) Put(key, value []byte) ([]byte, bool, error) {
	form := url.Values{}
	form.Set("value", hex.EncodeToString(value))

	req, err := http.NewRequest(http.MethodPut, s.recordURL(key), bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	r, err := s.do(req, "PUT")
	if err != nil {
		return nil, false, err
	}
	return r.previous()
}

func (s *HTTPStore) Get(key []byte) ([]byte, bool, error) {
	resp, err := s.client.Get(s.recordURL(key))
	if err != nil {
		return nil, false, fmt.Errorf("GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	r, err := decode(resp, "GET")
	if err != nil {
		return nil, false, err
	}

	value, err := hex.DecodeString(r.Value)
	if err != nil {
		return nil, false, fmt.Errorf("decode value: %w", err)
	}
	return value, true, nil
}

// Delete removes key and returns the previous value, if any.
func (s *HTTPStore) Delete(key []byte) ([]byte, bool, error) {
	req, err := http.NewRequest(http.MethodDelete, s.recordURL(key), nil)
	if err != nil {
		return nil, false, err
	}

	r, err := s.do(req, "DELETE")
	if err != nil {
		return nil, false, err
	}
	return r.previous()
}

// Batch applies records atomically.
func (s *HTTPStore) Batch(records []BatchRecord) error {
	body := struct {
		Records []batchRecord `json:"records"`
	}{Records: make([]batchRecord, 0, len(records))}

	for _, r := range records {
		br := batchRecord{Key: hex.EncodeToString(r.Key), Delete: r.Delete}
		if !r.Delete {
			br.Value = hex.EncodeToString(r.Value)
		}
		body.Records = append(body.Records, br)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/api/batch", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = s.do(req, "BATCH")
	return err
}

func (s *HTTPStore) Flush() error {
	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/api/flush", nil)
	if err != nil {
		return err
	}
	_, err = s.do(req, "FLUSH")
	return err
}

func (s *HTTPStore) Stats() (store.Stats, error) {
	var stats store.Stats

	resp, err := s.client.Get(s.baseURL + "/api/stats")
	if err != nil {
		return stats, fmt.Errorf("STATS failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return stats, err
	}
	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("STATS status=%d body=%s", resp.StatusCode, string(b))
	}
	if err := json.Unmarshal(b, &stats); err != nil {
		return stats, fmt.Errorf("decode: %w body=%s", err, string(b))
	}
	return stats, nil
}

func (s *HTTPStore) recordURL(key []byte) string {
	return s.baseURL + "/api/records/" + hex.EncodeToString(key)
}

func (s *HTTPStore) do(req *http.Request, op string) (response, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s failed: %w", op, err)
	}
	defer resp.Body.Close()

	return decode(resp, op)
}

func decode(resp *http.Response, op string) (response, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return response{}, fmt.Errorf("%s status=%d body=%s", op, resp.StatusCode, string(b))
	}

	var r response
	if err := json.Unmarshal(b, &r); err != nil {
		return response{}, fmt.Errorf("decode: %w body=%s", err, string(b))
	}
	return r, nil
}

func (r response) previous() ([]byte, bool, error) {
	if !r.Replaced {
		return nil, false, nil
	}
	prev, err := hex.DecodeString(r.Previous)
	if err != nil {
		return nil, false, fmt.Errorf("decode previous: %w", err)
	}
	return prev, true, nil
}
