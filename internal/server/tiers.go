package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
)

func (s *Server) ListTiers(c *gin.Context) {
	var req tiersdomain.ListTiersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tiersSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateTiers(c *gin.Context) {
	var req tiersdomain.CreateTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.Name = strings.TrimSpace(req.Name)

	resp, err := s.tiersSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetTiersByID(c *gin.Context) {
	resp, err := s.tiersSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTiers(c *gin.Context) {
	var req tiersdomain.UpdateTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")

	resp, err := s.tiersSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ArchiveTiers(c *gin.Context) {
	if err := s.tiersSvc.Archive(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RestoreTiers(c *gin.Context) {
	if err := s.tiersSvc.Restore(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListTiersAddresses(c *gin.Context) {
	resp, err := s.tiersSvc.ListAddresses(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddTiersAddress(c *gin.Context) {
	var req tiersdomain.UpsertAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TiersID = c.Param("id")

	resp, err := s.tiersSvc.AddAddress(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateTiersAddress(c *gin.Context) {
	var req tiersdomain.UpsertAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TiersID = c.Param("id")
	req.AddressID = c.Param("addressId")

	resp, err := s.tiersSvc.UpdateAddress(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTiersAddress(c *gin.Context) {
	if err := s.tiersSvc.DeleteAddress(c.Request.Context(), c.Param("id"), c.Param("addressId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListTiersContacts(c *gin.Context) {
	resp, err := s.tiersSvc.ListContacts(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddTiersContact(c *gin.Context) {
	var req tiersdomain.UpsertContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TiersID = c.Param("id")

	resp, err := s.tiersSvc.AddContact(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateTiersContact(c *gin.Context) {
	var req tiersdomain.UpsertContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TiersID = c.Param("id")
	req.ContactID = c.Param("contactId")

	resp, err := s.tiersSvc.UpdateContact(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTiersContact(c *gin.Context) {
	if err := s.tiersSvc.DeleteContact(c.Request.Context(), c.Param("id"), c.Param("contactId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListTiersActivities(c *gin.Context) {
	resp, err := s.tiersSvc.ListActivities(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddTiersActivity(c *gin.Context) {
	var req tiersdomain.AddActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TiersID = c.Param("id")

	resp, err := s.tiersSvc.AddActivity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
