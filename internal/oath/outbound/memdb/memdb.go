// Package memdb is an in-process store for auth requests and their owners.
// It backs the memory database driver used for local runs and tests.
package memdb

import (
	"context"
	"slices"
	"sync"

	"github.com/shandysiswandi/otpgate/internal/oath/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type MemDB struct {
	mu sync.RWMutex

	apps     map[string]entity.App
	clients  map[string]entity.Client
	keys     []entity.Key
	requests map[string]entity.AuthRequest
	// order keeps request insertion order for listing.
	order []string
}

func New() *MemDB {
	return &MemDB{
		apps:     make(map[string]entity.App),
		clients:  make(map[string]entity.Client),
		requests: make(map[string]entity.AuthRequest),
	}
}

func (m *MemDB) UpsertApp(_ context.Context, app entity.App) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.apps[app.ID] = app
	return nil
}

// CreateKey stores key material provisioned to a device.
func (m *MemDB) CreateKey(_ context.Context, key entity.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.keys {
		if k.ID == key.ID {
			return goerror.ErrConflict
		}
	}

	m.keys = append(m.keys, key)
	return nil
}

func (m *MemDB) GetApp(_ context.Context, id string) (*entity.App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, ok := m.apps[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &app, nil
}

func (m *MemDB) GetClient(_ context.Context, id string) (*entity.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, ok := m.clients[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &client, nil
}

func (m *MemDB) GetAuthRequest(_ context.Context, id string) (*entity.AuthRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	req.SignaturePage = slices.Clone(req.SignaturePage)
	return &req, nil
}

func (m *MemDB) ListKeysByDevice(_ context.Context, deviceSerialNo string) ([]entity.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []entity.Key
	for _, k := range m.keys {
		if k.DeviceSerialNo == deviceSerialNo {
			result = append(result, k)
		}
	}
	return result, nil
}

func (m *MemDB) ListKeysByClient(_ context.Context, clientID string) ([]entity.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []entity.Key
	for _, k := range m.keys {
		if k.ClientID == clientID {
			result = append(result, k)
		}
	}
	return result, nil
}

func (m *MemDB) ListClientAppIDs(_ context.Context, clientIDs []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(clientIDs))
	for _, id := range clientIDs {
		if c, ok := m.clients[id]; ok && c.AppID != "" {
			result[id] = c.AppID
		}
	}
	return result, nil
}

func (m *MemDB) ListAppsByIDs(_ context.Context, ids []string) ([]entity.App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entity.App, 0, len(ids))
	for _, id := range ids {
		if app, ok := m.apps[id]; ok {
			result = append(result, app)
		}
	}
	return result, nil
}

func (m *MemDB) ListAuthRequestsByClients(_ context.Context, clientIDs []string) ([]entity.AuthRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []entity.AuthRequest
	for _, id := range m.order {
		req := m.requests[id]
		if slices.Contains(clientIDs, req.ClientID) {
			req.SignaturePage = slices.Clone(req.SignaturePage)
			result = append(result, req)
		}
	}
	return result, nil
}

func (m *MemDB) CreateClient(_ context.Context, in entity.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[in.ID]; ok {
		return goerror.ErrConflict
	}
	m.clients[in.ID] = in
	return nil
}

func (m *MemDB) CreateAuthRequest(_ context.Context, in entity.AuthRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[in.ID]; ok {
		return goerror.ErrConflict
	}
	in.SignaturePage = slices.Clone(in.SignaturePage)
	m.requests[in.ID] = in
	m.order = append(m.order, in.ID)
	return nil
}

func (m *MemDB) UpdateClientPassword(_ context.Context, clientID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[clientID]
	if !ok {
		return goerror.ErrNotFound
	}
	client.Password = password
	m.clients[clientID] = client
	return nil
}

func (m *MemDB) SetClientPasswordIfEmpty(_ context.Context, clientID, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[clientID]
	if !ok {
		return "", goerror.ErrNotFound
	}
	if client.Password == "" {
		client.Password = password
		m.clients[clientID] = client
	}
	return client.Password, nil
}

// DeleteAuthRequest removes and returns a request. Only one of several
// concurrent callers gets it, the others see goerror.ErrNotFound.
func (m *MemDB) DeleteAuthRequest(_ context.Context, id string) (*entity.AuthRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	m.removeRequest(id)
	return &req, nil
}

func (m *MemDB) DeleteExpiredAuthRequests(_ context.Context, nowMs int64) ([]entity.AuthRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entity.AuthRequest
	for _, id := range slices.Clone(m.order) {
		req := m.requests[id]
		if req.IsExpired(nowMs) {
			result = append(result, req)
			m.removeRequest(id)
		}
	}
	return result, nil
}

func (m *MemDB) DeleteClient(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[id]; !ok {
		return goerror.ErrNotFound
	}
	delete(m.clients, id)
	m.keys = slices.DeleteFunc(m.keys, func(k entity.Key) bool { return k.ClientID == id })
	return nil
}

func (m *MemDB) DeleteKey(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.keys)
	m.keys = slices.DeleteFunc(m.keys, func(k entity.Key) bool { return k.ID == id })
	if len(m.keys) == n {
		return goerror.ErrNotFound
	}
	return nil
}

func (m *MemDB) removeRequest(id string) {
	delete(m.requests, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
}
