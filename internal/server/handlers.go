// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/trialscout/internal/conditions"
	"github.com/pdiddy/trialscout/internal/engine"
	"github.com/pdiddy/trialscout/internal/render"
	"github.com/pdiddy/trialscout/pkg/types"
)

// handleSearch serves GET /api/search.
//
// Query parameters: q (free text), terms (comma-separated), city, country,
// global, max, sources (comma-separated).
func (s *Server) handleSearch(c echo.Context) error {
	req, err := searchRequest(c)
	if err != nil {
		return err
	}
	resp, err := s.search.Search(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render.NewDocument(resp.Result, resp.Conditions, resp.Query.Terms))
}

func searchRequest(c echo.Context) (engine.Request, error) {
	req := engine.Request{
		CallerID: strings.TrimSpace(c.Request().Header.Get(CallerIDHeader)),
		Text:     c.QueryParam("q"),
		Terms:    splitList(c.QueryParam("terms")),
	}

	loc := types.Location{City: strings.TrimSpace(c.QueryParam("city")), Country: strings.TrimSpace(c.QueryParam("country"))}
	if !loc.IsZero() {
		req.Location = &loc
	}

	if v := c.QueryParam("global"); v != "" {
		global, err := strconv.ParseBool(v)
		if err != nil {
			return engine.Request{}, &types.ConfigurationError{Reason: "global must be a boolean"}
		}
		req.Global = global
	}
	if v := c.QueryParam("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return engine.Request{}, &types.ConfigurationError{Reason: "max must be a non-negative integer"}
		}
		req.MaxResults = n
	}
	for _, name := range splitList(c.QueryParam("sources")) {
		kind, err := types.ParseSourceKind(name)
		if err != nil {
			return engine.Request{}, err
		}
		req.Sources = append(req.Sources, kind)
	}
	return req, nil
}

// handleConditions serves GET /api/conditions. With name it returns that
// registry entry; with text, the tags found in the text and their expanded
// search terms; with neither, the full registry.
func (s *Server) handleConditions(c echo.Context) error {
	if name := strings.TrimSpace(c.QueryParam("name")); name != "" {
		tag, ok := conditions.Lookup(name)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "unknown condition "+strconv.Quote(name))
		}
		return c.JSON(http.StatusOK, tag)
	}
	text := strings.TrimSpace(c.QueryParam("text"))
	if text == "" {
		return c.JSON(http.StatusOK, map[string]any{"conditions": conditions.Registry()})
	}
	tags := conditions.Extract(text)
	if tags == nil {
		tags = []types.ConditionTag{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"conditions": tags,
		"terms":      conditions.Expand(conditions.Names(tags)),
	})
}

type profileBody struct {
	Conditions []string        `json:"conditions"`
	Location   *types.Location `json:"location,omitempty"`
}

func (s *Server) getProfile(c echo.Context) error {
	p, err := s.profiles.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) putProfile(c echo.Context) error {
	var body profileBody
	if err := c.Bind(&body); err != nil {
		return &types.ConfigurationError{Reason: "invalid profile body"}
	}
	p, err := s.profiles.Put(c.Request().Context(), types.Profile{
		CallerID:   c.Param("id"),
		Conditions: body.Conditions,
		Location:   body.Location,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProfile(c echo.Context) error {
	if err := s.profiles.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
