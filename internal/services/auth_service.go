package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/localnerve/authorizer-go"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/utils"
)

// Principal is the resolved caller of a request
type Principal struct {
	Username  string
	Role      string
	ProgramID string
}

func (p Principal) IsReviewer() bool {
	return p.Role == models.RoleReviewer
}

var (
	authClient *authorizer.AuthorizerClient
	authOnce   sync.Once
)

// IsAuthorizerInitialized returns true if the Authorizer client is initialized
func IsAuthorizerInitialized() bool {
	return authClient != nil
}

// InitAuthorizer initializes the Authorizer client (singleton pattern)
func InitAuthorizer(cfg *config.Config, redirectURL string, log *zap.Logger) error {
	var initErr error

	authOnce.Do(func() {
		if err := utils.PingAuthorizer(context.Background(), cfg.AuthzURL); err != nil {
			initErr = errors.Wrap(err, "authorizer ping failed")
			return
		}

		log.Info("initializing authorizer",
			zap.String("authorizer_url", cfg.AuthzURL),
			zap.String("client_id", cfg.AuthzClientID),
			zap.String("redirect_url", redirectURL))

		var err error
		authClient, err = authorizer.NewAuthorizerClient(cfg.AuthzClientID, cfg.AuthzURL, redirectURL, nil)
		if err != nil {
			initErr = errors.Wrap(err, "failed to create authorizer client")
		}
	})

	return initErr
}

// SessionUsername validates a session cookie and returns the authorizer user's name:
// the preferred username, or the email when there is none.
func SessionUsername(cookie string) (string, error) {
	if authClient == nil {
		return "", errors.New("authorizer client not initialized")
	}

	res, err := authClient.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
	})
	if err != nil {
		return "", errors.Wrap(err, "session validation failed")
	}
	if res == nil || !res.IsValid {
		return "", errors.New("session is not valid")
	}

	return sessionName(res.User)
}

// sessionName reads the name claims off whatever shape the SDK returns for the user
func sessionName(user interface{}) (string, error) {
	raw, err := json.Marshal(user)
	if err != nil {
		return "", errors.Wrap(err, "encode session user")
	}

	var claims struct {
		PreferredUsername *string `json:"preferred_username"`
		Email             *string `json:"email"`
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return "", errors.Wrap(err, "decode session user")
	}

	switch {
	case claims.PreferredUsername != nil && *claims.PreferredUsername != "":
		return *claims.PreferredUsername, nil
	case claims.Email != nil && *claims.Email != "":
		return *claims.Email, nil
	}
	return "", errors.New("session user has no username or email")
}
