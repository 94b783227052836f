package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ahmed20kamel/project-management-api/internal/payment"
)

// paymentRequest accepts plain dates ("2025-03-01") as well as RFC 3339
// timestamps.
type paymentRequest struct {
	payment.CreateInput
	Date       string `json:"date"`
	ChequeDate string `json:"cheque_date"`
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (r paymentRequest) input() (payment.CreateInput, error) {
	in := r.CreateInput
	if r.Date != "" {
		d, err := parseDate(r.Date)
		if err != nil {
			return in, echo.NewHTTPError(http.StatusBadRequest, "invalid date")
		}
		in.Date = d
	}
	if r.ChequeDate != "" {
		d, err := parseDate(r.ChequeDate)
		if err != nil {
			return in, echo.NewHTTPError(http.StatusBadRequest, "invalid cheque_date")
		}
		in.ChequeDate = &d
	}
	return in, nil
}

func (s *Server) handleListPayments(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	list, err := s.deps.Payments.List(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// handleCreatePayment records a payment and returns the recomputed project
// status with it.
func (s *Server) handleCreatePayment(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}

	p, status, err := s.deps.Payments.Create(c.Request().Context(), principal(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, PaymentResponse{Payment: p, ProjectStatus: status})
}

func (s *Server) handleDeletePayment(c echo.Context) error {
	projectID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	paymentID, err := idParam(c, "paymentID")
	if err != nil {
		return err
	}
	status, err := s.deps.Payments.Delete(c.Request().Context(), principal(c), projectID, paymentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PaymentResponse{ProjectStatus: status})
}
