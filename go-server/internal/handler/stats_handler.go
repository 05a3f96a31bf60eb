package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/middleware"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

const defaultDays = 7

type StatsHandler struct {
	stats  service.StatsService
	logger *zap.Logger
}

func NewStatsHandler(stats service.StatsService) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: zap.L().With(zap.String("component", "StatsHandler")),
	}
}

// daysParam reads ?days=, defaulting to a week. Unsupported values are
// rejected by the service.
func daysParam(c *gin.Context) int {
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultDays)))
	if err != nil {
		return 0
	}
	return days
}

func (h *StatsHandler) LinkStats(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	stats, err := h.stats.LinkStats(c.Request.Context(), middleware.CurrentUser(c), id, daysParam(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *StatsHandler) Dashboard(c *gin.Context) {
	d, err := h.stats.Dashboard(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

func (h *StatsHandler) Global(c *gin.Context) {
	g, err := h.stats.Global(c.Request.Context(), middleware.CurrentUser(c).ID, daysParam(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, g)
}

func (h *StatsHandler) UserStats(c *gin.Context) {
	s, err := h.stats.UserStats(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

func (h *StatsHandler) AdminStats(c *gin.Context) {
	s, err := h.stats.AdminStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, s)
}
