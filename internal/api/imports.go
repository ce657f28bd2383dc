package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
	"github.com/david/feedback-triage/internal/ingest"
	"github.com/david/feedback-triage/internal/models"
	"github.com/david/feedback-triage/internal/sanitize"
)

// uploadedCSV opens the multipart "file" field.
func uploadedCSV(c echo.Context) (io.ReadCloser, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", apperr.Validation("a CSV file is required in the \"file\" field")
	}
	if fh.Size > maxUploadBytes {
		return nil, "", apperr.Validation("file exceeds %d MB", maxUploadBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", apperr.Validation("unreadable upload")
	}
	name := sanitize.Line(filepath.Base(fh.Filename))
	if name == "" || name == "." {
		name = "upload.csv"
	}
	return f, name, nil
}

func (s *Server) handlePreviewImport(c echo.Context) error {
	f, _, err := uploadedCSV(c)
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := ingest.ParseCSV(f)
	if err != nil {
		return apperr.Validation("%v", err)
	}
	return c.JSON(http.StatusOK, ingest.BuildPreview(table))
}

func (s *Server) handleCreateImport(c echo.Context) error {
	mapping := ingest.Mapping{
		TitleColumn:       strings.TrimSpace(c.FormValue("title_column")),
		DescriptionColumn: strings.TrimSpace(c.FormValue("description_column")),
		DateColumn:        strings.TrimSpace(c.FormValue("date_column")),
	}
	raw := c.FormValue("product_id")
	productID, _, err := optionalID(&raw, "product_id")
	if err != nil {
		return err
	}
	mapping.ProductID = productID
	if err := c.Validate(&mapping); err != nil {
		return err
	}

	f, name, err := uploadedCSV(c)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := c.Request().Context()
	rec, err := s.Importer.Import(ctx, name, f, mapping)
	if err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleListImports(c echo.Context) error {
	imports, err := s.Store.ListImports(c.Request().Context())
	if err != nil {
		return err
	}
	if imports == nil {
		imports = []models.ImportRecord{}
	}
	return c.JSON(http.StatusOK, imports)
}

// handleDeleteImport removes the batch and its feedback. Opportunities that
// lose all their feedback are kept.
func (s *Server) handleDeleteImport(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.Store.DeleteImport(ctx, id); err != nil {
		return err
	}
	s.invalidateFeedback(ctx)
	return c.NoContent(http.StatusNoContent)
}
