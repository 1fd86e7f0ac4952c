// Package storetest provides an in-memory store.ObjectStore for tests.
package storetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fpang/thumbnail-backfill/internal/store"
)

// Object is a stored object.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is a thread-safe in-memory object store for a single bucket.
// Listings are returned in lexical key order, PageSize keys at a time,
// with the cursor being the index of the next key.
type Memory struct {
	Bucket   string
	PageSize int

	// Order overrides the listing order when set, letting tests place a
	// source and its thumbnail on different pages.
	Order []string

	// Fail* inject errors for specific keys.
	FailGet  map[string]error
	FailPut  map[string]error
	FailList error

	mu        sync.Mutex
	objects   map[string]Object
	listCalls int
	puts      []string
}

var _ store.ObjectStore = (*Memory)(nil)

// NewMemory returns an empty store for bucket.
func NewMemory(bucket string, pageSize int) *Memory {
	return &Memory{
		Bucket:   bucket,
		PageSize: pageSize,
		objects:  make(map[string]Object),
	}
}

// Set stores data under key.
func (m *Memory) Set(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: data}
}

// Get returns the stored object for key.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys returns all stored keys in lexical order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedKeys()
}

// Puts returns the keys written through PutObject, in write order.
func (m *Memory) Puts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.puts...)
}

// ListCalls returns how many ListPage calls were made.
func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *Memory) sortedKeys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) checkBucket(bucket string) error {
	if bucket != m.Bucket {
		return fmt.Errorf("no such bucket %q", bucket)
	}
	return nil
}

// ListPage implements store.Lister.
func (m *Memory) ListPage(_ context.Context, bucket, prefix, cursor string) (store.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	if m.FailList != nil {
		return store.Page{}, m.FailList
	}
	if err := m.checkBucket(bucket); err != nil {
		return store.Page{}, err
	}

	all := m.Order
	if all == nil {
		all = m.sortedKeys()
	}
	var matching []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			matching = append(matching, k)
		}
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(matching) {
			return store.Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		start = n
	}

	size := m.PageSize
	if size <= 0 {
		size = len(matching)
	}
	end := start + size
	if end > len(matching) {
		end = len(matching)
	}

	page := store.Page{Keys: append([]string(nil), matching[start:end]...)}
	if end < len(matching) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// GetObject implements store.Getter.
func (m *Memory) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkBucket(bucket); err != nil {
		return nil, err
	}
	if err := m.FailGet[key]; err != nil {
		return nil, err
	}
	o, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}
	return io.NopCloser(bytes.NewReader(o.Data)), nil
}

// PutObject implements store.Putter.
func (m *Memory) PutObject(_ context.Context, bucket, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkBucket(bucket); err != nil {
		return err
	}
	if err := m.FailPut[key]; err != nil {
		return err
	}
	m.objects[key] = Object{Data: data, ContentType: contentType}
	m.puts = append(m.puts, key)
	return nil
}
