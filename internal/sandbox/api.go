package sandbox

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alexjbarnes/ampwidgets/internal/graph"
)

const (
	defaultPageLimit = 25
	maxPageLimit     = 100
)

// handleGraph dispatches `/v2.9/<object>/<edge>` requests.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), apiPrefix)
	if rest == "" {
		s.handleLookup(w, r)
		return
	}

	parts := strings.Split(rest, "/")

	ref, err := url.PathUnescape(parts[0])
	if err != nil || ref == "" {
		writeGraphError(w, http.StatusBadRequest, "GraphMethodException", 100, "Malformed object reference")
		return
	}

	switch {
	case len(parts) == 1 && ref == "me":
		s.handleMe(w, r)
	case len(parts) == 2 && parts[1] == "likes":
		s.handleLikes(w, r, ref)
	case len(parts) == 2 && parts[1] == "comments":
		s.handleComments(w, r, ref, parts[0])
	default:
		writeGraphError(w, http.StatusBadRequest, "GraphMethodException", 100, "Unsupported "+strings.ToLower(r.Method)+" request.")
	}
}

// handleLookup answers `?id=<url>` with the object behind the URL.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeGraphError(w, http.StatusBadRequest, "GraphMethodException", 100, "Unsupported "+strings.ToLower(r.Method)+" request.")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeGraphError(w, http.StatusBadRequest, "OAuthException", 100, "(#100) Missing 'id' parameter")
		return
	}

	writeJSON(w, http.StatusOK, graph.ObjectLookup{ID: id, OGObject: s.data.Lookup(id)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Profile(requestToken(r.Context()).UserID))
}

func (s *Server) handleLikes(w http.ResponseWriter, r *http.Request, ref string) {
	ti := requestToken(r.Context())

	switch r.Method {
	case http.MethodGet:
		profiles, summary, ok := s.data.Likes(ref, ti.UserID)
		if !ok {
			writeUnknownObject(w, ref)
			return
		}

		resp := graph.LikesResponse{Data: profiles}
		if r.URL.Query().Get("summary") == "true" {
			resp.Summary = summary
		}

		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost, http.MethodDelete:
		if !ti.HasScope(PublishScope) {
			writeGraphError(w, http.StatusOK, "OAuthException", 200, "(#200) Requires extended permission: "+PublishScope)
			return
		}

		if !s.data.SetLike(ref, ti.UserID, r.Method == http.MethodPost) {
			writeUnknownObject(w, ref)
			return
		}

		writeJSON(w, http.StatusOK, graph.SuccessResponse{Success: true})
	default:
		writeGraphError(w, http.StatusBadRequest, "GraphMethodException", 100, "Unsupported request method.")
	}
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request, ref, escapedRef string) {
	ti := requestToken(r.Context())

	switch r.Method {
	case http.MethodGet:
		comments, ok := s.data.Comments(ref)
		if !ok {
			writeUnknownObject(w, ref)
			return
		}

		writeJSON(w, http.StatusOK, s.pageComments(comments, r.URL.Query(), escapedRef))
	case http.MethodPost:
		if !ti.HasScope(PublishScope) {
			writeGraphError(w, http.StatusOK, "OAuthException", 200, "(#200) Requires extended permission: "+PublishScope)
			return
		}

		message := r.FormValue("message")
		if message == "" {
			writeGraphError(w, http.StatusBadRequest, "OAuthException", 100, "(#100) Missing message or attachment")
			return
		}

		c, ok := s.data.AddComment(ref, ti.UserID, message)
		if !ok {
			writeUnknownObject(w, ref)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"id": c.ID})
	default:
		writeGraphError(w, http.StatusBadRequest, "GraphMethodException", 100, "Unsupported request method.")
	}
}

// pageComments slices comments by the before/after cursors and builds
// absolute paging links. Cursors are comment ids.
func (s *Server) pageComments(comments []graph.Comment, q url.Values, escapedRef string) graph.CommentsResponse {
	limit := defaultPageLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, maxPageLimit)
	}

	start, end := 0, len(comments)

	switch {
	case q.Get("after") != "":
		start = indexOfComment(comments, q.Get("after")) + 1
		end = min(start+limit, len(comments))
	case q.Get("before") != "":
		end = max(indexOfComment(comments, q.Get("before")), 0)
		start = max(end-limit, 0)
	default:
		end = min(limit, len(comments))
	}

	resp := graph.CommentsResponse{Data: comments[start:end]}
	if len(resp.Data) == 0 {
		resp.Data = []graph.Comment{}
		return resp
	}

	first, last := resp.Data[0].ID, resp.Data[len(resp.Data)-1].ID
	resp.Paging.Cursors = graph.Cursors{Before: first, After: last}

	link := func(cursor, value string) string {
		v := url.Values{}
		if f := q.Get("filter"); f != "" {
			v.Set("filter", f)
		}

		v.Set("limit", strconv.Itoa(limit))
		v.Set(cursor, value)

		return s.cfg.ServerURL + apiPrefix + escapedRef + "/comments?" + v.Encode()
	}

	if start > 0 {
		resp.Paging.Previous = link("before", first)
	}

	if end < len(comments) {
		resp.Paging.Next = link("after", last)
	}

	return resp
}

// indexOfComment returns the position of id, or -1. An unknown after
// cursor therefore restarts from the beginning.
func indexOfComment(comments []graph.Comment, id string) int {
	for i, c := range comments {
		if c.ID == id {
			return i
		}
	}

	return -1
}

func writeUnknownObject(w http.ResponseWriter, ref string) {
	writeGraphError(w, http.StatusBadRequest, "GraphMethodException", 100,
		"Unsupported get request. Object with ID '"+ref+"' does not exist")
}
