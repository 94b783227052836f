package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahmed20kamel/project-management-api/internal/document"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

// getDocument serves the single record of a project returned by get.
func getDocument[R any](c echo.Context, get func(context.Context, auth.Principal, uint) (R, error)) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	rec, err := get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// putDocument binds a full record body and stores it with put.
func putDocument[T, R any](c echo.Context, put func(context.Context, auth.Principal, uint, T) (R, error)) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in T
	if err := bind(c, &in); err != nil {
		return err
	}
	rec, err := put(c.Request().Context(), principal(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleGetSitePlan(c echo.Context) error {
	return getDocument(c, s.deps.Documents.SitePlan)
}

func (s *Server) handlePutSitePlan(c echo.Context) error {
	return putDocument(c, s.deps.Documents.PutSitePlan)
}

func (s *Server) handleGetLicense(c echo.Context) error {
	return getDocument(c, s.deps.Documents.License)
}

func (s *Server) handlePutLicense(c echo.Context) error {
	return putDocument(c, s.deps.Documents.PutLicense)
}

func (s *Server) handleGetAwarding(c echo.Context) error {
	return getDocument(c, s.deps.Documents.Awarding)
}

func (s *Server) handlePutAwarding(c echo.Context) error {
	return putDocument(c, s.deps.Documents.PutAwarding)
}

func (s *Server) handleGetContract(c echo.Context) error {
	return getDocument(c, s.deps.Documents.Contract)
}

// handlePutContract returns the contract with totals derived from the
// project's variation orders.
func (s *Server) handlePutContract(c echo.Context) error {
	return putDocument(c, s.deps.Documents.PutContract)
}

func (s *Server) handleListVariations(c echo.Context) error {
	return getDocument(c, s.deps.Documents.Variations)
}

func (s *Server) handleCreateVariation(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in document.VariationFields
	if err := bind(c, &in); err != nil {
		return err
	}
	v, err := s.deps.Documents.CreateVariation(c.Request().Context(), principal(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (s *Server) handleDeleteVariation(c echo.Context) error {
	return s.deleteDocument(c, s.deps.Documents.DeleteVariation)
}

func (s *Server) handleListInvoices(c echo.Context) error {
	return getDocument(c, s.deps.Documents.Invoices)
}

func (s *Server) handleCreateInvoice(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in document.InvoiceFields
	if err := bind(c, &in); err != nil {
		return err
	}
	inv, err := s.deps.Documents.CreateInvoice(c.Request().Context(), principal(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

func (s *Server) handleDeleteInvoice(c echo.Context) error {
	return s.deleteDocument(c, s.deps.Documents.DeleteInvoice)
}

func (s *Server) deleteDocument(c echo.Context, del func(context.Context, auth.Principal, uint, uint) error) error {
	projectID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	docID, err := idParam(c, "docID")
	if err != nil {
		return err
	}
	if err := del(c.Request().Context(), principal(c), projectID, docID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// documentParams reads the project id, record kind and record id of a
// document file route.
func documentParams(c echo.Context) (projectID uint, kind document.Kind, docID uint, err error) {
	if projectID, err = idParam(c, "id"); err != nil {
		return
	}
	if kind, err = document.ParseKind(c.Param("kind")); err != nil {
		return
	}
	docID, err = idParam(c, "docID")
	return
}

func (s *Server) handleListDocumentFiles(c echo.Context) error {
	projectID, kind, docID, err := documentParams(c)
	if err != nil {
		return err
	}
	list, err := s.deps.Documents.Files(c.Request().Context(), principal(c), projectID, kind, docID)
	if err != nil {
		return err
	}
	out := make([]AttachmentResponse, 0, len(list))
	for i := range list {
		out = append(out, attachmentResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// handleUploadDocumentFile stores a file owned by a record. Without a phase
// field it lands in the record's own folder.
func (s *Server) handleUploadDocumentFile(c echo.Context) error {
	projectID, kind, docID, err := documentParams(c)
	if err != nil {
		return err
	}
	in, closeBody, err := uploadInput(c)
	if err != nil {
		return err
	}
	defer closeBody()

	a, err := s.deps.Documents.UploadFile(c.Request().Context(), principal(c), projectID, kind, docID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, attachmentResponse(a))
}
