package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	worklibdomain "github.com/batipilot/batipilot/internal/worklib/domain"
)

func (s *Server) ListWorks(c *gin.Context) {
	var req worklibdomain.ListWorksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.worklibSvc.ListWorks(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateWork(c *gin.Context) {
	var req worklibdomain.CreateWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.Name = strings.TrimSpace(req.Name)

	resp, err := s.worklibSvc.CreateWork(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetWorkByID(c *gin.Context) {
	resp, err := s.worklibSvc.GetWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateWork(c *gin.Context) {
	var req worklibdomain.UpdateWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")

	resp, err := s.worklibSvc.UpdateWork(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteWork(c *gin.Context) {
	if err := s.worklibSvc.DeleteWork(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetWorkCost(c *gin.Context) {
	req := worklibdomain.CostRequest{WorkID: c.Param("id")}

	if raw := strings.TrimSpace(c.Query("margin_percent")); raw != "" {
		margin, err := decimal.NewFromString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("margin_percent", "invalid_margin", "invalid value"))
			return
		}
		req.MarginPercent = &margin
	}

	resp, err := s.worklibSvc.Cost(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWorkIngredients(c *gin.Context) {
	resp, err := s.worklibSvc.ListIngredients(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddWorkIngredient(c *gin.Context) {
	var req worklibdomain.AddIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.WorkID = c.Param("id")

	resp, err := s.worklibSvc.AddIngredient(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateWorkIngredient(c *gin.Context) {
	var req worklibdomain.UpdateIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.WorkID = c.Param("id")
	req.IngredientID = c.Param("ingredientId")

	resp, err := s.worklibSvc.UpdateIngredient(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveWorkIngredient(c *gin.Context) {
	if err := s.worklibSvc.RemoveIngredient(c.Request.Context(), c.Param("id"), c.Param("ingredientId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
