// server/http/handlers.go
package http

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/domain"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/memo"
	"github.com/vinizap/memo/server/seed"
	"github.com/vinizap/memo/server/store"
)

type Server struct {
	memos *memo.Service
	log   zerolog.Logger
}

func NewServer(memos *memo.Service, log zerolog.Logger) *Server {
	return &Server{memos: memos, log: log.With().Str("component", "http").Logger()}
}

var validate = validator.New()

type memoRequest struct {
	Text     string   `json:"text"     validate:"required"`
	Priority *float64 `json:"priority" validate:"required"`
}

// parseMemoRequest decodes and checks the request shape. Range checks are
// left to domain.Memo.Validate.
func parseMemoRequest(c *fiber.Ctx) (memoRequest, error) {
	var req memoRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return req, nil
}

func (s *Server) HandleListMemos(c *fiber.Ctx) error {
	opts, err := listOptions(c)
	if err != nil {
		return err
	}
	q, err := opts.Query()
	if err != nil {
		return err
	}

	memos, err := s.memos.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(memos)
}

func (s *Server) HandleGetMemo(c *fiber.Ctx) error {
	m, err := s.memos.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(m)
}

func (s *Server) HandleCreateMemo(c *fiber.Ctx) error {
	req, err := parseMemoRequest(c)
	if err != nil {
		return err
	}

	m, err := s.memos.Add(c.UserContext(), req.Text, *req.Priority)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *Server) HandleUpdateMemo(c *fiber.Ctx) error {
	req, err := parseMemoRequest(c)
	if err != nil {
		return err
	}

	m := &domain.Memo{ID: c.Params("id"), Text: req.Text, Priority: *req.Priority}
	if err := s.memos.Update(c.UserContext(), m); err != nil {
		return err
	}
	return c.JSON(m)
}

func (s *Server) HandleDeleteMemo(c *fiber.Ctx) error {
	if err := s.memos.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleExportMemos writes every memo as a YAML seed file.
func (s *Server) HandleExportMemos(c *fiber.Ctx) error {
	memos, err := s.memos.List(c.UserContext(), memo.DefaultQuery())
	if err != nil {
		return err
	}
	out := make([]domain.Memo, len(memos))
	for i, m := range memos {
		out[i] = *m
	}

	var buf bytes.Buffer
	if err := seed.Write(&buf, out); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/yaml")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="memos.yaml"`)
	return c.Send(buf.Bytes())
}

func (s *Server) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleError renders every handler error as {"error": "..."} with a status
// derived from the error chain.
func (s *Server) HandleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidMemo),
		errors.Is(err, domain.ErrNoIdentity),
		errors.Is(err, store.ErrInvalid),
		errors.Is(err, livequery.ErrInvalidQuery):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func listOptions(c *fiber.Ctx) (memo.ListOptions, error) {
	opts := memo.ListOptions{
		Order: c.Query("order"),
		Dir:   c.Query("dir"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
		}
		opts.Limit = n
	}
	if v := c.Query("min_priority"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fiber.NewError(fiber.StatusBadRequest, "min_priority must be a number")
		}
		opts.MinPriority = &p
	}
	return opts, nil
}
