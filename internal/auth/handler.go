package auth

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/leetrack/backend/internal/models"
)

const tokenTTL = 72 * time.Hour

// Service implements single-user access control. The server is
// protected by one password: ACCESS_PASSWORD_HASH holds its bcrypt
// hash. When the hash is unset the API runs open, which is the
// expected mode for local use.
type Service struct {
	secret       []byte
	passwordHash string
}

func NewFromEnv() *Service {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "leetrack-local-signing-key"
	}
	hash := os.Getenv("ACCESS_PASSWORD_HASH")
	if hash == "" {
		log.Println("ACCESS_PASSWORD_HASH not set, API is open")
	}
	return &Service{secret: []byte(secret), passwordHash: hash}
}

// Enabled reports whether login is required.
func (s *Service) Enabled() bool {
	return s.passwordHash != ""
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /auth/login
func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	if !s.Enabled() {
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Authentication is not configured"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Password == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Password is required"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid password"})
		return
	}

	expiresAt := time.Now().Add(tokenTTL)
	token, err := s.generateToken(expiresAt)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token"})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

// Middleware rejects requests without a valid bearer token. It is a
// pass-through when authentication is not configured.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Missing or malformed authorization header"})
			return
		}

		if err := s.validateToken(tokenString); err != nil {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or expired token"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Service) generateToken(expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) validateToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
