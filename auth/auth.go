package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"wifizen/models"
	"wifizen/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoAccount          = errors.New("no account for that email")
	ErrInvalidToken       = errors.New("invalid token")
)

// account is the credential record at accounts/{uid}. It is separate
// from the public users/{uid} profile.
type account struct {
	UID          string `json:"uid" bson:"uid"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"passwordHash" bson:"passwordHash"`
	CreatedAt    int64  `json:"createdAt" bson:"createdAt"`
	ResetToken   string `json:"resetToken,omitempty" bson:"resetToken,omitempty"`
	ResetExpires int64  `json:"resetExpires,omitempty" bson:"resetExpires,omitempty"`
}

// Session is an authenticated identity: the uid plus a signed bearer
// token for the HTTP surface.
type Session struct {
	UID       string
	Token     string
	ExpiresAt time.Time
}

type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// Service is the identity provider: email/password accounts with bcrypt
// hashes, HS256 session tokens, and auth-state change notification.
type Service struct {
	store    store.Store
	secret   []byte
	tokenTTL time.Duration

	mu        sync.Mutex
	current   string
	listeners map[int]func(uid string)
	nextID    int
}

func New(st store.Store, secret []byte) *Service {
	return &Service{
		store:     st,
		secret:    secret,
		tokenTTL:  24 * time.Hour,
		listeners: make(map[int]func(uid string)),
	}
}

// SignUp creates the account and writes the public profile record to
// users/{uid} so posts can denormalize it from day one.
func (s *Service) SignUp(ctx context.Context, email, password, pseudo, profileImageURL string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("a valid email is required")
	}
	if len(password) < 6 {
		return nil, errors.New("password must be at least 6 characters")
	}

	existing, err := s.store.Query(ctx, "accounts", "email", email)
	if err != nil {
		return nil, err
	}
	if len(existing.Children()) > 0 {
		return nil, ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	uid, err := s.store.Append(ctx, "accounts", account{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, "accounts/"+uid, map[string]any{"uid": uid}); err != nil {
		return nil, err
	}

	user := models.User{UID: uid, Pseudo: pseudo, ProfileImageURL: profileImageURL}
	if err := s.store.Write(ctx, "users/"+uid, user); err != nil {
		return nil, err
	}

	return s.openSession(uid)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	acct, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.openSession(acct.UID)
}

// SignOut clears the current session and notifies listeners with an
// empty uid.
func (s *Service) SignOut() {
	s.setCurrent("")
}

// CurrentUser returns the uid of the signed-in user, if any.
func (s *Service) CurrentUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != ""
}

// OnAuthStateChanged registers fn for session changes. fn receives the
// new uid, or "" on sign-out. The returned func removes the listener.
func (s *Service) OnAuthStateChanged(fn func(uid string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SendPasswordReset mints a reset token valid for an hour and records it
// on the account. Delivering the token (mail) is an external concern;
// it is logged so an operator can relay it.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	acct, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNoAccount
	}
	token := uuid.NewString()
	err = s.store.Update(ctx, "accounts/"+acct.UID, map[string]any{
		"resetToken":   token,
		"resetExpires": time.Now().Add(time.Hour).UnixMilli(),
	})
	if err != nil {
		return err
	}
	log.Printf("password reset token for %s: %s", email, token)
	return nil
}

// ResetPassword consumes a reset token and installs a new password.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	acct, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct == nil || acct.ResetToken == "" || acct.ResetToken != token {
		return ErrInvalidToken
	}
	if time.Now().UnixMilli() > acct.ResetExpires {
		return ErrInvalidToken
	}
	if len(newPassword) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, "accounts/"+acct.UID, map[string]any{
		"passwordHash": string(hash),
		"resetToken":   "",
		"resetExpires": 0,
	})
}

// ParseToken validates a bearer token and returns the uid it carries.
func (s *Service) ParseToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.UID == "" {
		return "", ErrInvalidToken
	}
	return claims.UID, nil
}

func (s *Service) openSession(uid string) (*Session, error) {
	expires := time.Now().Add(s.tokenTTL)
	claims := &Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	s.setCurrent(uid)
	return &Session{UID: uid, Token: signed, ExpiresAt: expires}, nil
}

func (s *Service) setCurrent(uid string) {
	s.mu.Lock()
	s.current = uid
	listeners := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(uid)
	}
}

func (s *Service) findByEmail(ctx context.Context, email string) (*account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	matches, err := s.store.Query(ctx, "accounts", "email", email)
	if err != nil {
		return nil, err
	}
	children := matches.Children()
	if len(children) == 0 {
		return nil, nil
	}
	var acct account
	if err := children[0].Decode(&acct); err != nil {
		return nil, err
	}
	if acct.UID == "" {
		acct.UID = children[0].Key
	}
	return &acct, nil
}
