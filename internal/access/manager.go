// Package access issues per-user pub/sub credentials and maintains the
// channel-pattern grants the pipeline's event fan-out relies on.
package access

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/backend/internal/bus"
	"github.com/clipforge/backend/internal/models"
	"github.com/clipforge/backend/internal/repositories"
)

// Manager provisions user credentials and the process-wide grant
// baseline. All grants are issued with no expiry.
type Manager struct {
	users      repositories.UserRepository
	bus        bus.Granter
	serviceKey string
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager constructs a grant manager. serviceKey is the service's own
// operating credential for the event bus.
func NewManager(users repositories.UserRepository, granter bus.Granter, serviceKey string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		users:      users,
		bus:        granter,
		serviceKey: serviceKey,
		logger:     logger,
		now:        time.Now,
	}
}

// Bootstrap installs the process-wide grant baseline. Run once at service
// start, before any event is published: public read access to every
// per-video channel, and the service credential's read+write access over
// both wildcard patterns.
func (m *Manager) Bootstrap(ctx context.Context) error {
	grants := []bus.Grant{
		{ChannelPattern: bus.VideoChannelPattern, Read: true, Write: false},
		{ChannelPattern: bus.VideoChannelPattern, Read: true, Write: true, AuthKey: m.serviceKey},
		{ChannelPattern: bus.NotificationChannelPattern, Read: true, Write: true, AuthKey: m.serviceKey},
	}

	for _, grant := range grants {
		if err := m.bus.Grant(ctx, grant); err != nil {
			return fmt.Errorf("bootstrap grant %s: %w", grant.ChannelPattern, err)
		}
	}

	m.logger.Info("access baseline installed")
	return nil
}

// CreateUser inserts an account record and immediately provisions its
// notification credential, mirroring the account-creation hook of the
// upstream auth collaborator.
func (m *Manager) CreateUser(ctx context.Context, email string) (models.User, error) {
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: m.now().UTC(),
	}

	if err := m.users.Create(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	token, err := m.ProvisionUser(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	user.NotifyToken = token

	return user, nil
}

// ProvisionUser generates the user's pub/sub secret, persists it and
// grants the user read+write access to their private notification
// channel keyed by that secret. The token is generated exactly once; the
// store rejects a second write.
func (m *Manager) ProvisionUser(ctx context.Context, userID string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	if err := m.users.SetNotifyToken(ctx, userID, token); err != nil {
		return "", fmt.Errorf("store notify token for user %s: %w", userID, err)
	}

	grant := bus.Grant{
		ChannelPattern: bus.NotificationChannel(userID),
		Read:           true,
		Write:          true,
		AuthKey:        token,
	}
	if err := m.bus.Grant(ctx, grant); err != nil {
		// The token is already persisted; the grant can be replayed by an
		// operator without rotating it.
		return "", fmt.Errorf("grant notification channel for user %s: %w", userID, err)
	}

	return token, nil
}

func newToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
