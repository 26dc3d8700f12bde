package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/smsinterview/internal/utils"
)

// Authenticator issues admin tokens; see service.AdminAuthService.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

type AuthHandler struct {
	authService Authenticator
}

func NewAuthHandler(authService Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrAccountInactive) {
			utils.Error(c, 401, "ACCOUNT_INACTIVE", err.Error())
			return
		}
		utils.Error(c, 401, "INVALID_CREDENTIALS", utils.ErrInvalidCredentials.Error())
		return
	}

	utils.Success(c, 200, "Login successful", gin.H{
		"token": token,
	})
}
