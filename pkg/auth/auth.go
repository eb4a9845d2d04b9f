package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/database"
	"github.com/arnavshah/site-capacity-api/pkg/planning"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Roles carried by admin users
const (
	RolePlanner  = "planner"
	RoleApprover = "approver"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Actor maps the claims to the planning actor. Only approvers may unlock.
func (c *Claims) Actor() planning.Actor {
	return planning.Actor{ID: c.Username, CanUnlock: c.Role == RoleApprover}
}

// Manager signs and verifies admin tokens and API keys
type Manager struct {
	jwtSecret    []byte
	masterSecret []byte
	tokenTTL     time.Duration
}

// NewManager creates a manager from the JWT and API master secrets
func NewManager(jwtSecret, apiMasterSecret string) *Manager {
	return &Manager{
		jwtSecret:    []byte(jwtSecret),
		masterSecret: []byte(apiMasterSecret),
		tokenTTL:     24 * time.Hour,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for a user
func (m *Manager) CreateToken(username, role string) (string, error) {
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(m.jwtSecret)
}

// VerifyToken verifies a JWT token
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, errors.New("unexpected signing method")
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// EnsureAdminExists creates the first approver when no admin user exists yet
func EnsureAdminExists(db *gorm.DB, username, password string) error {
	var count int64
	if err := db.Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	user := database.MasterUser{
		Username:     username,
		PasswordHash: hash,
		Role:         RoleApprover,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	log.Printf("Default approver created: %s", username)
	return nil
}

// GenerateHMACKey creates a signed API key using HMAC-SHA256
func (m *Manager) GenerateHMACKey(name string) string {
	return name + "." + m.sign(name)
}

// VerifyHMACKey validates an HMAC-signed API key and returns its name
func (m *Manager) VerifyHMACKey(key string) (string, error) {
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", errors.New("invalid key format")
	}
	name, providedSignature := key[:idx], key[idx+1:]

	// Use constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(providedSignature), []byte(m.sign(name))) {
		return "", errors.New("invalid signature")
	}

	return name, nil
}

func (m *Manager) sign(name string) string {
	h := hmac.New(sha256.New, m.masterSecret)
	h.Write([]byte(name))
	return hex.EncodeToString(h.Sum(nil))
}
