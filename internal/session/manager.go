package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/observability"
	"github.com/noah-isme/coaching-api/internal/repository"
)

const localsKey = "session_state"

// ErrNoSession is returned when an operation needs a session and the request has none.
var ErrNoSession = errors.New("no active session")

// Config controls cookie and lifetime behaviour.
type Config struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager issues, resolves and destroys cookie-backed server sessions.
type Manager struct {
	repo       repository.SessionRepository
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	logger     zerolog.Logger
	now        func() time.Time
}

type state struct {
	id   string
	data models.SessionData
}

type cookieClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager builds a session manager. An empty secret gets an ephemeral random one,
// so sessions do not survive a restart.
func NewManager(repo repository.SessionRepository, cfg Config, logger zerolog.Logger) (*Manager, error) {
	log := logger.With().Str("component", "session_manager").Logger()

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		secret = generated
		log.Warn().Msg("session secret not configured; using an ephemeral secret")
	}

	name := cfg.CookieName
	if name == "" {
		name = "coaching_session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Manager{
		repo:       repo,
		secret:     secret,
		cookieName: name,
		ttl:        ttl,
		secure:     cfg.Secure,
		logger:     log,
		now:        time.Now,
	}, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Load resolves the session once per request and slides its expiry.
func (m *Manager) Load() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(m.cookieName)
		if raw == "" {
			return c.Next()
		}

		sid, err := m.parseToken(raw)
		if err != nil {
			m.clearCookie(c)
			return c.Next()
		}

		ctx := c.UserContext()
		id := hashSID(sid)
		row, err := m.repo.Find(ctx, id)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				m.logger.Error().Err(err).Msg("failed to load session")
			}
			m.clearCookie(c)
			return c.Next()
		}

		now := m.now().UTC()
		if !row.ExpiresAt.After(now) {
			if err := m.repo.Delete(ctx, id); err != nil {
				m.logger.Warn().Err(err).Msg("failed to delete expired session")
			}
			m.clearCookie(c)
			return c.Next()
		}

		expiresAt := now.Add(m.ttl)
		if err := m.repo.Touch(ctx, id, expiresAt); err != nil {
			m.logger.Warn().Err(err).Msg("failed to extend session")
		} else if err := m.writeCookie(c, sid, expiresAt); err != nil {
			m.logger.Warn().Err(err).Msg("failed to refresh session cookie")
		}

		c.Locals(localsKey, &state{id: id, data: row.Data.Data()})
		return c.Next()
	}
}

// Start replaces any current session with a new one carrying data.
func (m *Manager) Start(c *fiber.Ctx, data models.SessionData) error {
	ctx := c.UserContext()
	if current := currentState(c); current != nil {
		if err := m.repo.Delete(ctx, current.id); err != nil {
			return fmt.Errorf("drop previous session: %w", err)
		}
	}

	sid, err := newSID()
	if err != nil {
		return err
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	row := models.Session{
		ID:        hashSID(sid),
		Data:      datatypes.NewJSONType(data),
		ExpiresAt: expiresAt,
	}
	if err := m.repo.Create(ctx, &row); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if err := m.writeCookie(c, sid, expiresAt); err != nil {
		return err
	}

	c.Locals(localsKey, &state{id: row.ID, data: data})
	return nil
}

// Update rewrites the payload of the current session.
func (m *Manager) Update(c *fiber.Ctx, data models.SessionData) error {
	current := currentState(c)
	if current == nil {
		return ErrNoSession
	}

	expiresAt := m.now().UTC().Add(m.ttl)
	if err := m.repo.UpdateData(c.UserContext(), current.id, data, expiresAt); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	current.data = data
	return nil
}

// Destroy removes the current session if any and always clears the cookie.
func (m *Manager) Destroy(c *fiber.Ctx) error {
	id := ""
	if current := currentState(c); current != nil {
		id = current.id
	} else if raw := c.Cookies(m.cookieName); raw != "" {
		if sid, err := m.parseToken(raw); err == nil {
			id = hashSID(sid)
		}
	}

	m.clearCookie(c)
	c.Locals(localsKey, nil)

	if id == "" {
		return nil
	}
	if err := m.repo.Delete(c.UserContext(), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep deletes every expired session row.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	removed, err := m.repo.DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		observability.SessionsSwept().Add(float64(removed))
	}
	return removed, nil
}

// StartSweeper purges expired sessions every interval until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := m.Sweep(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						m.logger.Error().Err(err).Msg("session sweep failed")
					}
					continue
				}
				if removed > 0 {
					m.logger.Info().Int64("removed", removed).Msg("expired sessions purged")
				}
			}
		}
	}()
}

// Data returns the payload of the session bound to the request.
func Data(c *fiber.Ctx) (models.SessionData, bool) {
	current := currentState(c)
	if current == nil {
		return models.SessionData{}, false
	}
	return current.data, true
}

// Student returns the student principal of the request, if any.
func Student(c *fiber.Ctx) (*models.StudentPrincipal, bool) {
	data, ok := Data(c)
	if !ok || data.Student == nil {
		return nil, false
	}
	return data.Student, true
}

// Admin returns the admin principal of the request, if any.
func Admin(c *fiber.Ctx) (*models.AdminPrincipal, bool) {
	data, ok := Data(c)
	if !ok || data.Admin == nil {
		return nil, false
	}
	return data.Admin, true
}

func currentState(c *fiber.Ctx) *state {
	if value, ok := c.Locals(localsKey).(*state); ok && value != nil {
		return value
	}
	return nil
}

func (m *Manager) parseToken(raw string) (string, error) {
	claims := &cookieClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid session token")
	}
	if claims.SID == "" {
		return "", fmt.Errorf("session token missing sid")
	}
	return claims.SID, nil
}

func (m *Manager) writeCookie(c *fiber.Ctx, sid string, expiresAt time.Time) error {
	claims := cookieClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(m.now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (m *Manager) clearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func newSID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashSID(sid string) string {
	sum := sha256.Sum256([]byte(sid))
	return hex.EncodeToString(sum[:])
}
