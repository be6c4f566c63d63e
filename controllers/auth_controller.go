package controllers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propfolio/commission_backend/middleware"
	"github.com/propfolio/commission_backend/models"
	"github.com/propfolio/commission_backend/utils"
)

// AuthController handles agent and admin authentication
type AuthController struct {
	DB *mongo.Database
}

// NewAuthController creates a new auth controller
func NewAuthController(db *mongo.Database) *AuthController {
	return &AuthController{DB: db}
}

// Login handles agent authentication
func (ac *AuthController) Login(c echo.Context) error {
	var loginReq models.LoginRequest
	if err := c.Bind(&loginReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&loginReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email and password are required",
		})
	}

	// Find agent by email
	var agent models.Agent
	err := ac.DB.Collection("agents").FindOne(
		context.Background(),
		bson.M{"email": strings.ToLower(strings.TrimSpace(loginReq.Email))},
	).Decode(&agent)

	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid email or password",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to find agent",
		})
	}

	// Check password
	if err := utils.CheckPassword(agent.Password, loginReq.Password); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	// Generate JWT token
	token, refreshToken, err := middleware.GenerateJWT(agent.ID.Hex(), agent.Email, agent.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	// Update last login time
	_, err = ac.DB.Collection("agents").UpdateOne(
		context.Background(),
		bson.M{"_id": agent.ID},
		bson.M{"$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		log.Printf("Failed to update last login time: %v", err)
	}

	// Remove password from response
	agent.Password = ""

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user":         agent,
		},
	})
}

// Logout invalidates the caller's token
func (ac *AuthController) Logout(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No token provided",
		})
	}

	middleware.BlacklistToken(tokenString, time.Now().Add(24*time.Hour))

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Logged out successfully",
	})
}
