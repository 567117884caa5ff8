package auth0

import (
	"context"
	"sync"
)

// FakeClient is a test implementation of Client
type FakeClient struct {
	mu    sync.Mutex
	Users map[string]*UserInfo // keyed by access token
	Calls int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Users: make(map[string]*UserInfo),
	}
}

func (c *FakeClient) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if user, ok := c.Users[accessToken]; ok {
		return user, nil
	}
	return nil, ErrUserInfoFailed
}

func (c *FakeClient) AddUser(accessToken string, info *UserInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Users[accessToken] = info
}
