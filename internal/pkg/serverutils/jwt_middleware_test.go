package serverutils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJwtMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	app := fiber.New()
	app.Get("/me", JwtMiddleware, func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: fiber.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signed(t, "other", jwt.MapClaims{"user_id": "u1"}), status: fiber.StatusUnauthorized},
		{name: "no user id", header: "Bearer " + signed(t, "test-secret", jwt.MapClaims{"sub": "u1"}), status: fiber.StatusUnauthorized},
		{name: "valid", header: "Bearer " + signed(t, "test-secret", jwt.MapClaims{"user_id": "u1"}), status: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
		Size int    `json:"size" validate:"min=1"`
	}

	err := ValidateRequest(body{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "required", verr.Fields["Name"])
	assert.Equal(t, "min", verr.Fields["Size"])

	assert.NoError(t, ValidateRequest(body{Name: "x", Size: 1}))
}
