package backend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/cppla/ecorecycle/models"
	"github.com/cppla/ecorecycle/utils"
)

const minPasswordLength = 8

// AuthService issues JWT sessions for admins stored in the database.
// Signed-out tokens are parked in the blacklist until they expire.
type AuthService struct {
	db        *gorm.DB
	secret    string
	ttl       time.Duration
	blacklist *utils.TokenBlacklist
	log       *zap.SugaredLogger

	mu        sync.RWMutex
	listeners map[int]func(SessionEvent, *Session)
	next      int
}

// NewAuthService builds the auth service. blacklist may wrap a nil redis client.
func NewAuthService(db *gorm.DB, secret string, ttl time.Duration, blacklist *utils.TokenBlacklist, log *zap.SugaredLogger) *AuthService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	if blacklist == nil {
		blacklist = utils.NewTokenBlacklist(nil)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AuthService{
		db:        db,
		secret:    secret,
		ttl:       ttl,
		blacklist: blacklist,
		log:       log,
		listeners: map[int]func(SessionEvent, *Session){},
	}
}

// SignIn checks the admin's password and opens a session.
func (a *AuthService) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, Validationf("sign in", "Email and password are required")
	}

	var admin models.Admin
	err := a.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, NewError(KindAuth, "sign in", "Invalid login credentials", nil)
	}
	if err != nil {
		return Session{}, NewError(KindAuth, "sign in", "Sign-in is unavailable", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return Session{}, NewError(KindAuth, "sign in", "Invalid login credentials", nil)
	}

	token, expiresAt, err := utils.GenerateToken(a.secret, admin.ID, admin.Email, a.ttl)
	if err != nil {
		return Session{}, NewError(KindAuth, "sign in", "Failed to issue session", err)
	}
	sess := Session{Token: token, AdminID: admin.ID, Email: admin.Email, ExpiresAt: expiresAt}
	a.log.Infow("admin signed in", "admin_id", admin.ID)
	a.emit(SignedIn, &sess)
	return sess, nil
}

// GetSession validates token. An empty token means no session.
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	if a.blacklist.Contains(token) {
		return nil, NewError(KindAuth, "get session", "Session has been signed out", nil)
	}
	claims, err := utils.ParseToken(a.secret, token)
	if err != nil {
		return nil, NewError(KindAuth, "get session", "Session expired or invalid", err)
	}
	sess := &Session{Token: token, AdminID: claims.AdminID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// SignOut revokes token for the rest of its lifetime.
func (a *AuthService) SignOut(ctx context.Context, token string) error {
	sess, err := a.GetSession(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil {
		return NewError(KindAuth, "sign out", "Not signed in", nil)
	}
	a.blacklist.Add(token, sess.ExpiresAt)
	a.log.Infow("admin signed out", "admin_id", sess.AdminID)
	a.emit(SignedOut, sess)
	return nil
}

// OnSessionChange registers handler for sign-in and sign-out events.
func (a *AuthService) OnSessionChange(handler func(SessionEvent, *Session)) func() {
	a.mu.Lock()
	id := a.next
	a.next++
	a.listeners[id] = handler
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *AuthService) emit(ev SessionEvent, sess *Session) {
	a.mu.RLock()
	handlers := make([]func(SessionEvent, *Session), 0, len(a.listeners))
	for _, h := range a.listeners {
		handlers = append(handlers, h)
	}
	a.mu.RUnlock()
	for _, h := range handlers {
		h(ev, sess)
	}
}

// CreateAdmin creates an admin, or resets the password of an existing one.
func (a *AuthService) CreateAdmin(ctx context.Context, email, password string) (models.Admin, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return models.Admin{}, Validationf("create admin", "A valid email is required")
	}
	if len(password) < minPasswordLength {
		return models.Admin{}, Validationf("create admin", "Password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Admin{}, NewError(KindAuth, "create admin", "Failed to hash password", err)
	}

	var admin models.Admin
	err = a.db.WithContext(ctx).
		Where(models.Admin{Email: email}).
		Assign(models.Admin{PasswordHash: string(hash)}).
		FirstOrCreate(&admin).Error
	if err != nil {
		return models.Admin{}, NewError(KindQuery, "create admin", "Failed to save admin", err)
	}
	return admin, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
