package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	apperrors "giveaway-engine-backend/internal/common/errors"
	"giveaway-engine-backend/internal/common/middleware"
	"giveaway-engine-backend/internal/features/giveaway/models"
	giveawayservice "giveaway-engine-backend/internal/features/giveaway/service"
)

type GiveawayHandler struct {
	service *giveawayservice.GiveawayService
}

func NewGiveawayHandler(service *giveawayservice.GiveawayService) *GiveawayHandler {
	return &GiveawayHandler{service: service}
}

func (h *GiveawayHandler) RegisterRoutes(router *gin.RouterGroup) {
	giveaways := router.Group("/giveaways")
	{
		giveaways.POST("", h.create)
		giveaways.GET("/:id", h.getByID)
		giveaways.POST("/:id/join", h.join)
		giveaways.POST("/:id/finish", h.finishNow)
		giveaways.GET("/:id/winners", h.getWinners)
	}
}

func (h *GiveawayHandler) create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.SendError(c, apperrors.NewUnauthorizedError("missing user"))
		return
	}

	var input models.GiveawayCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.SendError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}

	giveaway, err := h.service.Create(c.Request.Context(), userID, &input)
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, giveaway)
}

func (h *GiveawayHandler) getByID(c *gin.Context) {
	giveaway, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, giveaway)
}

func (h *GiveawayHandler) join(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.SendError(c, apperrors.NewUnauthorizedError("missing user"))
		return
	}

	username := ""
	if u, exists := c.Get("user"); exists {
		if tgUser, ok := u.(initdata.User); ok {
			username = tgUser.Username
		}
	}

	if err := h.service.Join(c.Request.Context(), c.Param("id"), userID, username); err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *GiveawayHandler) finishNow(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.SendError(c, apperrors.NewUnauthorizedError("missing user"))
		return
	}

	result, err := h.service.FinishNow(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GiveawayHandler) getWinners(c *gin.Context) {
	winners, err := h.service.GetWinners(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.SendError(c, err)
		return
	}

	if winners == nil {
		winners = []models.Winner{}
	}
	c.JSON(http.StatusOK, gin.H{"winners": winners})
}
