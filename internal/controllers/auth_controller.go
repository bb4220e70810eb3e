package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"busmate/internal/apperrors"
	"busmate/internal/middleware"
	"busmate/internal/models"
	"busmate/internal/services"
)

type AuthController struct {
	directory *services.DirectoryService
	auth      *middleware.JWTAuth
}

func NewAuthController(directory *services.DirectoryService, auth *middleware.JWTAuth) *AuthController {
	return &AuthController{directory: directory, auth: auth}
}

func (a *AuthController) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := a.directory.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := a.auth.GenerateToken(user.ID)
	if err != nil {
		logrus.WithError(err).Error("Register: could not generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": userResponse(user)})
}

func (a *AuthController) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := a.directory.Authenticate(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	// Users created before profiles existed get one on first login.
	profile, err := a.directory.GetOrCreateProfile(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	user.Profile = profile

	token, err := a.auth.GenerateToken(user.ID)
	if err != nil {
		logrus.WithError(err).Error("Login: could not generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userResponse(user)})
}

func userResponse(user *models.User) gin.H {
	resp := gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"full_name":  user.FullName(),
		"email":      user.Email,
	}
	if user.Profile != nil {
		resp["profile"] = user.Profile
		resp["role"] = roleOf(user.Profile.IsAdmin)
	}
	return resp
}

func roleOf(isAdmin bool) string {
	if isAdmin {
		return "admin"
	}
	return "user"
}
