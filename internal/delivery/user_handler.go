package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

type UserHandler struct {
	useCase domain.UserUseCase
	log     *logrus.Logger
}

func NewUserHandler(uc domain.UserUseCase, logger *logrus.Logger) *UserHandler {
	return &UserHandler{
		useCase: uc,
		log:     logger,
	}
}

func (h *UserHandler) RegisterRoutes(router gin.IRouter) {
	users := router.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUserByID)
		users.POST("", h.CreateUser)
	}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.useCase.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Errorf("Failed to list users: %v", err)
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", users)
}

func (h *UserHandler) GetUserByID(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		h.log.Warnf("Invalid user ID parameter: %s", id)
		ErrorResponse(c, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	user, err := h.useCase.GetUser(c.Request.Context(), id)
	if err != nil {
		h.log.Warnf("Failed to get user %s: %v", id, err)
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", user)
}

// CreateUser returns the existing user for a known email, so checkout can
// call it unconditionally.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind JSON for create user: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Email and name are required")
		return
	}

	user, created, err := h.useCase.FindOrCreate(c.Request.Context(), req)
	if err != nil {
		h.log.Errorf("Failed to resolve user %s: %v", req.Email, err)
		respondError(c, err)
		return
	}

	if !created {
		SuccessResponse(c, http.StatusOK, "User already exists", user)
		return
	}
	h.log.Infof("User %s registered", user.ID)
	SuccessResponse(c, http.StatusCreated, "User created successfully", user)
}
