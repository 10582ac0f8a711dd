package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ar-cyber/TauriSEQTA/auth"
	"github.com/ar-cyber/TauriSEQTA/portal"
	"github.com/ar-cyber/TauriSEQTA/settings"
	"github.com/labstack/echo/v4"
)

type saveSessionRequest struct {
	BaseURL    string `json:"base_url"`
	JSessionID string `json:"jsessionid"`
}

type loginRequest struct {
	URL string `json:"url"`
}

type fetchRequest struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	Body       map[string]any    `json:"body"`
	Parameters map[string]string `json:"parameters"`
	IsImage    bool              `json:"is_image"`
	ReturnURL  bool              `json:"return_url"`
}

type uploadRequest struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
}

func (s *Server) sessionExists(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"exists": s.auth.SessionExists()})
}

func (s *Server) saveSession(c echo.Context) error {
	var req saveSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.BaseURL == "" || req.JSessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "base_url and jsessionid are required")
	}
	if err := s.auth.SaveSession(req.BaseURL, req.JSessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// login dispatches a login trigger: seqtalearn:// links run the QR flow
// synchronously, anything else opens the interactive login surface and
// returns immediately.
func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	if err := s.auth.Login(c.Request().Context(), auth.RequestForURL(req.URL)); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) authDeepLink(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	handoff, err := auth.ParseAuthDeepLink(req.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.auth.Login(c.Request().Context(), handoff); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// reportSurface receives the shell's login-window snapshot and forwards it
// to the active remote surface.
func (s *Server) reportSurface(c echo.Context) error {
	var req surfaceReport
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.surface.Report(req.URL, req.watcherCookies()); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) logout(c echo.Context) error {
	if err := s.portal.Logout(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) fetchAPI(c echo.Context) error {
	var req fetchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var body any
	if req.Body != nil {
		body = req.Body
	}
	data, err := s.portal.Fetch(c.Request().Context(), portal.Request{
		URL:            req.URL,
		Method:         req.Method,
		Headers:        req.Headers,
		Params:         req.Parameters,
		Body:           body,
		AsBase64:       req.IsImage,
		ReturnFinalURL: req.ReturnURL,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"data": data})
}

func (s *Server) getFile(c echo.Context) error {
	fileType := c.QueryParam("type")
	fileUUID := c.QueryParam("file")
	if fileType == "" || fileUUID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type and file are required")
	}
	fileURL, err := s.portal.GetFile(c.Request().Context(), fileType, fileUUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"url": fileURL})
}

func (s *Server) uploadFile(c echo.Context) error {
	var req uploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.FileName == "" || req.FilePath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_name and file_path are required")
	}
	data, err := s.portal.UploadFile(c.Request().Context(), req.FileName, req.FilePath)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"data": data})
}

func (s *Server) getRSS(c echo.Context) error {
	feedURL := c.QueryParam("feed")
	if feedURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "feed is required")
	}
	parsed, err := s.feeds.Fetch(c.Request().Context(), feedURL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, parsed)
}

func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.settings.Load())
}

func (s *Server) saveSettings(c echo.Context) error {
	var req settings.Settings
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.settings.Save(req); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) saveAnalytics(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.analytics.Save(string(data)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) loadAnalytics(c echo.Context) error {
	data, err := s.analytics.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(data))
}

func (s *Server) deleteAnalytics(c echo.Context) error {
	if err := s.analytics.Delete(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// streamEvents pushes backend events to the UI as server-sent events.
func (s *Server) streamEvents(c echo.Context) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	events, cancel := s.events.Subscribe()
	defer cancel()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case event := <-events:
			if _, err := fmt.Fprintf(resp, "data: %s\n\n", event); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
