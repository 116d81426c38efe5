package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"investment-core/internal/catalog"
)

type botRequest struct {
	Name               *string          `json:"name"`
	Description        *string          `json:"description"`
	Price              *decimal.Decimal `json:"price"`
	Mode               *string          `json:"mode"`
	DailyReturnPercent *decimal.Decimal `json:"dailyReturnPercent"`
	DurationDays       *int             `json:"durationDays"`
	MaxReturnPercent   *decimal.Decimal `json:"maxReturnPercent"`
	Status             *string          `json:"status"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Server) listBots(c *gin.Context) {
	bots, err := s.Catalog.List(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBotViews(bots))
}

func (s *Server) getBot(c *gin.Context) {
	b, err := s.Catalog.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBotView(b))
}

func (s *Server) adminCreateBot(c *gin.Context) {
	var req botRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	b, err := s.Catalog.Create(c.Request.Context(), currentActor(c), catalog.BotInput{
		Name:               deref(req.Name),
		Description:        deref(req.Description),
		Price:              req.Price,
		Mode:               deref(req.Mode),
		DailyReturnPercent: req.DailyReturnPercent,
		DurationDays:       req.DurationDays,
		MaxReturnPercent:   req.MaxReturnPercent,
		Status:             deref(req.Status),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBotView(b))
}

func (s *Server) adminUpdateBot(c *gin.Context) {
	var req botRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	b, err := s.Catalog.Update(c.Request.Context(), currentActor(c), c.Param("id"), catalog.BotPatch{
		Name:               req.Name,
		Description:        req.Description,
		Price:              req.Price,
		Mode:               req.Mode,
		DailyReturnPercent: req.DailyReturnPercent,
		DurationDays:       req.DurationDays,
		MaxReturnPercent:   req.MaxReturnPercent,
		Status:             req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBotView(b))
}

func (s *Server) adminToggleBot(c *gin.Context) {
	b, err := s.Catalog.ToggleStatus(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBotView(b))
}

func (s *Server) adminDeleteBot(c *gin.Context) {
	if err := s.Catalog.Delete(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bot deleted"})
}
