package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	authorizer "github.com/localnerve/authorizer-go"
	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/localnerve/jam-build-cmdb/internal/utils"
)

// SessionUser is the identity carried by a valid Authorizer session
type SessionUser struct {
	ID                string   `json:"id"`
	Email             string   `json:"email"`
	PreferredUsername string   `json:"preferred_username"`
	Nickname          string   `json:"nickname"`
	Roles             []string `json:"roles"`
}

// SessionValidator validates a session cookie for the given roles
type SessionValidator interface {
	ValidateSession(cookie string, roles []string, requestProtocol, requestHost string) (*SessionUser, error)
}

// AuthorizerSessions validates sessions against the Authorizer service.
// The client is created on the first authenticated request, since its
// redirect URL comes from that request.
type AuthorizerSessions struct {
	cfg *config.Config

	once    sync.Once
	client  *authorizer.AuthorizerClient
	initErr error
}

// NewAuthorizerSessions creates a validator for cfg's Authorizer
func NewAuthorizerSessions(cfg *config.Config) *AuthorizerSessions {
	return &AuthorizerSessions{cfg: cfg}
}

// Initialized returns true if the Authorizer client is initialized
func (a *AuthorizerSessions) Initialized() bool {
	return a.client != nil
}

func (a *AuthorizerSessions) init(requestProtocol, requestHost string) error {
	a.once.Do(func() {
		// Ping the Authorizer service first
		if err := utils.PingAuthorizer(context.Background(), a.cfg.AuthzURL); err != nil {
			a.initErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}

		redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
		log.Printf("Initializing Authorizer: authorizerURL=%s, clientID=%s, redirectURL=%s",
			a.cfg.AuthzURL, a.cfg.AuthzClientID, redirectURL)

		client, err := authorizer.NewAuthorizerClient(a.cfg.AuthzClientID, a.cfg.AuthzURL, redirectURL, nil)
		if err != nil {
			a.initErr = fmt.Errorf("failed to create authorizer client: %w", err)
			return
		}
		a.client = client
	})
	return a.initErr
}

// ValidateSession implements SessionValidator
func (a *AuthorizerSessions) ValidateSession(cookie string, roles []string, requestProtocol, requestHost string) (*SessionUser, error) {
	if err := a.init(requestProtocol, requestHost); err != nil {
		return nil, err
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := a.client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid {
		return nil, fmt.Errorf("session is not valid")
	}

	return decodeSessionUser(res.User)
}

// decodeSessionUser reads the SDK user through its JSON form
func decodeSessionUser(user interface{}) (*SessionUser, error) {
	raw, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("invalid session user: %w", err)
	}
	var su SessionUser
	if err := json.Unmarshal(raw, &su); err != nil {
		return nil, fmt.Errorf("invalid session user: %w", err)
	}
	if su.ID == "" {
		return nil, fmt.Errorf("session user has no id")
	}
	return &su, nil
}
