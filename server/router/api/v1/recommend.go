package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type recommendRequest struct {
	Query string `json:"query"`
}

type candidateJSON struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type recommendResponse struct {
	Warning    *warningJSON    `json:"warning,omitempty"`
	Reply      string          `json:"reply"`
	Candidates []candidateJSON `json:"candidates"`
	Cached     bool            `json:"cached"`
}

// Recommend answers a one-shot query through the global response cache.
func (s *APIV1Service) Recommend(c echo.Context) error {
	var req recommendRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	result, err := s.Librarian.Recommend(c.Request().Context(), req.Query)
	if err != nil {
		return writeError(c, err)
	}

	candidates := make([]candidateJSON, 0, len(result.Candidates))
	for _, cand := range result.Candidates {
		candidates = append(candidates, candidateJSON{Title: cand.Title, Score: cand.Score})
	}
	return c.JSON(http.StatusOK, recommendResponse{
		Reply:      result.Reply,
		Candidates: candidates,
		Cached:     result.Cached,
		Warning:    convertWarning(result.Warning),
	})
}
