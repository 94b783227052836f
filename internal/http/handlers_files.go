package http

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ahmed20kamel/project-management-api/internal/attachment"
)

func attachmentResponse(a *attachment.Attachment) AttachmentResponse {
	return AttachmentResponse{Attachment: a, URL: fileURL(a.Path)}
}

func (s *Server) handleListAttachments(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	list, err := s.deps.Attachments.List(c.Request().Context(), principal(c), id, c.QueryParam("phase"))
	if err != nil {
		return err
	}
	out := make([]AttachmentResponse, 0, len(list))
	for i := range list {
		out = append(out, attachmentResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// uploadInput reads the multipart fields file, phase, subfolder, filename
// and numbered_base. The caller closes the returned input's body.
func uploadInput(c echo.Context) (attachment.UploadInput, func() error, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return attachment.UploadInput{}, nil, attachment.ErrMissingFile
		}
		return attachment.UploadInput{}, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
	}
	f, err := fh.Open()
	if err != nil {
		return attachment.UploadInput{}, nil, err
	}
	return attachment.UploadInput{
		Body:         f,
		OriginalName: fh.Filename,
		ContentType:  fh.Header.Get(echo.HeaderContentType),
		Size:         fh.Size,
		Phase:        c.FormValue("phase"),
		Subfolder:    c.FormValue("subfolder"),
		Filename:     c.FormValue("filename"),
		NumberedBase: c.FormValue("numbered_base"),
	}, f.Close, nil
}

func (s *Server) handleUploadAttachment(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	in, closeBody, err := uploadInput(c)
	if err != nil {
		return err
	}
	defer closeBody()

	a, err := s.deps.Attachments.Upload(c.Request().Context(), principal(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, attachmentResponse(a))
}

func (s *Server) handleUploadPaymentAttachment(c echo.Context) error {
	projectID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	paymentID, err := idParam(c, "paymentID")
	if err != nil {
		return err
	}
	in, closeBody, err := uploadInput(c)
	if err != nil {
		return err
	}
	defer closeBody()

	a, err := s.deps.Attachments.UploadForPayment(c.Request().Context(), principal(c), projectID, paymentID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, attachmentResponse(a))
}

// handleDeleteAttachment removes the record. The stored file is kept.
func (s *Server) handleDeleteAttachment(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := s.deps.Attachments.Delete(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

const filesPrefix = "/api/v1/files/"

// escapedWildcard returns the request path after prefix still percent-encoded.
// The router hands out decoded params; stored paths may contain '%' and are
// decoded exactly once by sanitize.RelativePath.
func escapedWildcard(c echo.Context, prefix string) string {
	if p := c.Request().URL.EscapedPath(); strings.HasPrefix(p, prefix) {
		return strings.TrimPrefix(p, prefix)
	}
	return url.PathEscape(c.Param("*"))
}

// handleDownload streams a stored file. Only paths recorded on an
// attachment of the caller's company are served.
func (s *Server) handleDownload(c echo.Context) error {
	d, err := s.deps.Attachments.Open(c.Request().Context(), principal(c), escapedWildcard(c, filesPrefix))
	if err != nil {
		return err
	}
	defer d.Close()

	contentType := d.Info.ContentType
	if contentType == "" {
		contentType = d.Attachment.ContentType
	}
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": d.Name})
	if disposition == "" {
		disposition = "attachment"
	}
	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, disposition)
	if d.Info.Size > 0 {
		h.Set(echo.HeaderContentLength, strconv.FormatInt(d.Info.Size, 10))
	}
	return c.Stream(http.StatusOK, contentType, d)
}
