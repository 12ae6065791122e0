package rpapi

import "net/http"

// ListPackage is the response body of a list.
type ListPackage struct {
	Data   []map[string]any `json:"data"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// UpdateResult is the response body of a write to every matching document.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// DeleteResult is the response body of a delete of every matching document.
type DeleteResult struct {
	Deleted int64 `json:"deleted"`
}

// FormatResponse is the default formatting hook. Documents in s.Data are converted
// to public form, restricted to the selected fields; other values pass through.
func FormatResponse(s *Stack) {
	selected := s.Query.Select
	switch d := s.Data.(type) {
	case map[string]any:
		s.Package = s.Resource.ToPublic(d, selected)
	case []map[string]any:
		items := make([]map[string]any, len(d))
		for i, doc := range d {
			items[i] = s.Resource.ToPublic(doc, selected)
		}
		s.Package = ListPackage{
			Data:   items,
			Total:  s.Total,
			Limit:  s.Query.Limit,
			Offset: s.Query.Offset,
		}
	default:
		s.Package = d
	}
	s.Next()
}

// SendJSON is the default sending hook. It writes s.Package with s.StatusCode, or an
// empty body for 204.
func SendJSON(s *Stack) {
	if s.StatusCode == http.StatusNoContent {
		s.C.Status(http.StatusNoContent)
		s.C.Writer.WriteHeaderNow()
	} else {
		s.C.JSON(s.StatusCode, s.Package)
	}
	s.Next()
}
