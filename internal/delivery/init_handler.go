package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

type InitHandler struct {
	useCase domain.SeedUseCase
	log     *logrus.Logger
}

func NewInitHandler(uc domain.SeedUseCase, logger *logrus.Logger) *InitHandler {
	return &InitHandler{
		useCase: uc,
		log:     logger,
	}
}

func (h *InitHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/init", h.Initialize)
}

func (h *InitHandler) Initialize(c *gin.Context) {
	result, err := h.useCase.Initialize(c.Request.Context())
	if err != nil {
		h.log.Errorf("Database initialization failed: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "Failed to initialize database")
		return
	}

	message := "Database initialized successfully"
	if result.AlreadyInitialized {
		message = "Database already initialized"
	}
	SuccessResponse(c, http.StatusOK, message, result)
}
