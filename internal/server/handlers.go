package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentstation/inkwell/internal/server/response"
	"github.com/agentstation/inkwell/pkg/content"
	"github.com/agentstation/inkwell/pkg/drafts"
	"github.com/agentstation/inkwell/pkg/errors"
	"github.com/agentstation/inkwell/pkg/logging"
)

type statusView struct {
	Online  bool    `json:"online"`
	Pending int     `json:"pendingDrafts"`
	Unread  *int    `json:"unreadNotifications,omitempty"`
	Streams int     `json:"eventStreams"`
	Uptime  float64 `json:"uptimeSeconds"`
}

type draftView struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Words           int            `json:"words"`
	ReadingMinutes  int            `json:"readingMinutes"`
	SavedAt         time.Time      `json:"savedAt"`
	OriginIsOffline bool           `json:"originIsOffline"`
	Fields          content.Fields `json:"fields,omitempty"`
}

func newDraftView(d drafts.Draft, withFields bool) draftView {
	v := draftView{
		ID:              d.ID,
		Title:           d.Fields.Title(),
		Words:           d.Fields.WordCount(),
		ReadingMinutes:  d.Fields.ReadingMinutes(),
		SavedAt:         d.SavedAt,
		OriginIsOffline: d.OriginIsOffline,
	}
	if withFields {
		v.Fields = d.Fields
	}
	return v
}

type sweepView struct {
	Attempted   int  `json:"attempted"`
	Committed   int  `json:"committed"`
	Pending     int  `json:"pending"`
	Skipped     bool `json:"skipped"`
	Interrupted bool `json:"interrupted"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	v := statusView{
		Online:  s.client.Connectivity().IsOnline(),
		Pending: s.client.PendingCount(),
		Streams: s.stream.Streams(),
		Uptime:  time.Since(s.started).Seconds(),
	}
	if p, err := s.client.Notifications(); err == nil {
		n := p.UnreadCount()
		v.Unread = &n
	}
	response.OK(w, v)
}

func (s *Server) handleListDrafts(w http.ResponseWriter, _ *http.Request) {
	list := s.client.Drafts()
	out := make([]draftView, 0, len(list))
	for _, d := range list {
		out = append(out, newDraftView(d, false))
	}
	response.OK(w, out)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, ok := s.client.Draft(id)
	if !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("draft", id))
		return
	}
	response.OK(w, newDraftView(d, true))
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.client.Draft(id); !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("draft", id))
		return
	}
	if err := s.client.DiscardDraft(id); err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Str("draft_id", id).Msg("Discard failed")
		response.ErrorFromType(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.client.Connectivity().IsOnline() {
		response.ServiceUnavailable(w, "blog service is unreachable; drafts stay queued")
		return
	}
	result, err := s.client.Sync(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("Sync failed")
		response.ErrorFromType(w, err)
		return
	}
	v := sweepView(result)
	if result.Skipped {
		response.Accepted(w, v)
		return
	}
	response.OK(w, v)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	p, err := s.client.Notifications()
	if err != nil {
		response.Conflict(w, "Notifications are not configured", err.Error())
		return
	}
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, "Invalid unread parameter", err.Error())
			return
		}
	}
	list := p.Notifications()
	if unreadOnly {
		filtered := list[:0]
		for _, n := range list {
			if !n.IsRead {
				filtered = append(filtered, n)
			}
		}
		list = filtered
	}
	response.OK(w, list)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	p, err := s.client.Notifications()
	if err != nil {
		response.Conflict(w, "Notifications are not configured", err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	marked := p.MarkRead(r.Context(), id)
	response.Accepted(w, map[string]any{"id": id, "marked": marked, "unread": p.UnreadCount()})
}
