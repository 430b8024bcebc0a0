package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/findme/internal/model"
)

// TokenVerifier проверяет Firebase ID token. *auth.Client реализует его.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// NewFirebaseAuthClient создаёт клиент Firebase Auth. Пустой credentialsFile —
// Application Default Credentials (или эмулятор через FIREBASE_AUTH_EMULATOR_HOST).
func NewFirebaseAuthClient(ctx context.Context, projectID, credentialsFile string) (*auth.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firebase: project id is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	return client, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// FirebaseAuth проверяет "Authorization: Bearer <ID token>". Роль — custom claim "role".
func FirebaseAuth(verifier TokenVerifier, dir UserDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
			if token == "" || token == raw {
				// WebSocket: токен в query.
				token = strings.TrimSpace(r.URL.Query().Get("token"))
			}
			if token == "" {
				unauthorized(w)
				return
			}
			tok, err := verifier.VerifyIDToken(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}
			admit(w, r, next, dir, model.User{
				ID:    tok.UID,
				Name:  claimString(tok.Claims, "name"),
				Email: strings.ToLower(claimString(tok.Claims, "email")),
				Role:  parseRole(claimString(tok.Claims, "role")),
			})
		})
	}
}
