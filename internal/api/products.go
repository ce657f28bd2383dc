package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/products"
	"github.com/david/feedback-triage/internal/sanitize"
)

type productRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// productPatchRequest moves the product to the root when parent_id is an
// empty string.
type productPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	ParentID    *string `json:"parent_id"`
}

func (s *Server) handleListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	flat, err := s.products(ctx)
	if err != nil {
		return err
	}
	counts, err := s.Store.ProductCounts(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products.Summarize(flat, counts))
}

func (s *Server) handleProductTree(c echo.Context) error {
	flat, err := s.products(c.Request().Context())
	if err != nil {
		return err
	}
	tree := products.BuildTree(flat)
	if tree == nil {
		tree = []*products.Node{}
	}
	return c.JSON(http.StatusOK, tree)
}

func (s *Server) handleGetProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	flat, err := s.products(ctx)
	if err != nil {
		return err
	}
	counts, err := s.Store.ProductCounts(ctx)
	if err != nil {
		return err
	}
	for _, sum := range products.Summarize(flat, counts) {
		if sum.ID == id {
			return c.JSON(http.StatusOK, sum)
		}
	}
	return apperr.NotFound("product")
}

func (s *Server) handleCreateProduct(c echo.Context) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	name := sanitize.Line(req.Name)
	if name == "" {
		return apperr.Validation("name is required")
	}

	ctx := c.Request().Context()
	p, err := s.Store.CreateProduct(ctx, name, sanitize.Text(req.Description), req.ParentID)
	if err != nil {
		return err
	}
	s.invalidateProducts(ctx)
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req productPatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var patch db.ProductPatch
	if req.Name != nil {
		name := sanitize.Line(*req.Name)
		if name == "" {
			return apperr.Validation("name must not be blank")
		}
		patch.Name = &name
	}
	if req.Description != nil {
		desc := sanitize.Text(*req.Description)
		patch.Description = &desc
	}
	parentID, setParent, err := optionalID(req.ParentID, "parent_id")
	if err != nil {
		return err
	}
	patch.SetParent, patch.ParentID = setParent, parentID

	ctx := c.Request().Context()
	p, err := s.Store.UpdateProduct(ctx, id, patch)
	if err != nil {
		return err
	}
	s.invalidateProducts(ctx)
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.Store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateProducts(ctx)
	return c.NoContent(http.StatusNoContent)
}
