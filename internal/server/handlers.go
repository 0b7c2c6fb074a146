package server

import (
	"net/http"

	"github.com/gofrs/uuid/v5"
	"github.com/labstack/echo/v4"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/service"
)

type messageResponse struct {
	Message string `json:"message"`
}

type profileResponse struct {
	Profile model.FamilyMember `json:"profile"`
}

type profilesResponse struct {
	Profiles []model.FamilyMember `json:"profiles"`
}

var errBadBody = echo.NewHTTPError(http.StatusBadRequest, "invalid request body")

// --- Auth ---

func (s *Server) register(c echo.Context) error {
	var req service.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	res, err := s.auth.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) login(c echo.Context) error {
	var req service.LoginRequest
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	res, err := s.auth.Login(c.Request().Context(), req, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// --- Entries ---

func (s *Server) listEntries(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	list, err := s.diary.ListEntries(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.DiaryEntry{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createEntry(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var draft model.EntryDraft
	if err := c.Bind(&draft); err != nil {
		return errBadBody
	}
	e, err := s.diary.CreateEntry(c.Request().Context(), owner, draft)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

func (s *Server) updateEntry(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var patch model.EntryPatch
	if err := c.Bind(&patch); err != nil {
		return errBadBody
	}
	e, err := s.diary.UpdateEntry(c.Request().Context(), owner, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (s *Server) deleteEntry(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	if err := s.diary.DeleteEntry(c.Request().Context(), owner, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Diary entry deleted"})
}

// --- Profiles ---

func (s *Server) listProfiles(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	list, err := s.diary.ListProfiles(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.FamilyMember{}
	}
	return c.JSON(http.StatusOK, profilesResponse{Profiles: list})
}

func (s *Server) createProfile(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var draft model.MemberDraft
	if err := c.Bind(&draft); err != nil {
		return errBadBody
	}
	m, err := s.diary.CreateProfile(c.Request().Context(), owner, draft)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, profileResponse{Profile: m})
}

func (s *Server) updateProfile(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var patch model.MemberPatch
	if err := c.Bind(&patch); err != nil {
		return errBadBody
	}
	m, err := s.diary.UpdateProfile(c.Request().Context(), owner, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{Profile: m})
}

func (s *Server) deleteProfile(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	if err := s.diary.DeleteProfile(c.Request().Context(), owner, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Family member deleted"})
}

func ownerID(c echo.Context) (uuid.UUID, error) {
	id, ok := UserIDFromCtx(c.Request().Context())
	if !ok {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}
