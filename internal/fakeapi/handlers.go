package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type reactionSummary struct {
	BookID       *int64           `json:"bookId,omitempty"`
	DocumentID   *int64           `json:"documentId,omitempty"`
	LikeCount    int              `json:"likeCount"`
	DislikeCount int              `json:"dislikeCount"`
	MyReaction   *domain.Reaction `json:"myReaction"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[req.Email]
	if !ok || a.password != req.Password {
		respondError(w, http.StatusUnauthorized, "Email ou mot de passe incorrect")
		return
	}
	respondJSON(w, http.StatusOK, s.authResponseLocked(a))
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Email]; exists {
		respondError(w, http.StatusConflict, "Cet email est déjà utilisé")
		return
	}
	a := s.addAccountLocked(req.Name, req.Email, req.Password, "USER", req)
	s.logger.Info("fake api registered user", zap.String("email", req.Email))
	respondJSON(w, http.StatusOK, s.authResponseLocked(a))
}

func (s *Server) authResponseLocked(a *account) api.AuthResponse {
	return api.AuthResponse{
		Token: s.issueTokenLocked(a.profile.Email),
		Email: a.profile.Email,
		Name:  a.profile.Name,
		Role:  a.profile.Role,
	}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[emailFromContext(r.Context())]
	respondJSON(w, http.StatusOK, a.profile)
}

func (s *Server) listSchools(w http.ResponseWriter, r *http.Request) {
	region, city := r.URL.Query().Get("region"), r.URL.Query().Get("city")

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.School{}
	for _, sc := range s.schools {
		if (region == "" || sc.Region == region) && (city == "" || sc.City == city) {
			out = append(out, sc)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids, err := parseIDs(q["ids"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.ToLower(q.Get("q"))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Book{}
	for _, b := range s.books {
		if len(ids) > 0 && !slices.Contains(ids, b.ID) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(b.Title+" "+b.Author), text) {
			continue
		}
		if sub := q.Get("subject"); sub != "" && b.Subject != sub {
			continue
		}
		if lvl := q.Get("level"); lvl != "" && b.Level != lvl {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b api.Book) int { return int(a.ID - b.ID) })
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, found := s.books[id]
	if !found {
		respondError(w, http.StatusNotFound, "Livre introuvable")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) searchDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Document{}
	for _, d := range s.documents {
		if v := q.Get("subject"); v != "" && d.Subject != v {
			continue
		}
		if v := q.Get("level"); v != "" && d.Level != v {
			continue
		}
		if v := q.Get("type"); v != "" && d.Type != v {
			continue
		}
		if v := q.Get("year"); v != "" && d.Year != v {
			continue
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b api.Document) int { return int(a.ID - b.ID) })
	respondJSON(w, http.StatusOK, out)
}

// maxUploadSize bounds the multipart form kept in memory.
const maxUploadSize = 10 << 20

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable file")
		return
	}

	doc := api.Document{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Subject:     r.FormValue("subject"),
		Level:       r.FormValue("level"),
		Type:        r.FormValue("type"),
		Year:        r.FormValue("year"),
		UploadDate:  time.Now().UTC().Format(time.RFC3339),
	}
	for field, value := range map[string]string{"title": doc.Title, "subject": doc.Subject, "level": doc.Level, "type": doc.Type, "year": doc.Year} {
		if strings.TrimSpace(value) == "" {
			respondError(w, http.StatusBadRequest, field+" is required")
			return
		}
	}
	var schoolID int64
	if raw := r.FormValue("schoolId"); raw != "" {
		schoolID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || schoolID <= 0 {
			respondError(w, http.StatusBadRequest, "schoolId must be a positive integer")
			return
		}
	}
	ext := filepath.Ext(header.Filename)
	doc.Format = strings.ToUpper(strings.TrimPrefix(ext, "."))
	viewer := emailFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[viewer]
	if a != nil {
		doc.UploadedBy = &api.Uploader{ID: a.id, Email: a.profile.Email, Name: a.profile.Name}
		doc.School = a.profile.School
	}
	if schoolID > 0 {
		doc.School = nil
		for i := range s.schools {
			if s.schools[i].ID == schoolID {
				school := s.schools[i]
				doc.School = &school
			}
		}
	}
	s.nextID++
	doc.ID = s.nextID
	doc.FilePath = uuid.NewString() + ext
	s.documents[doc.ID] = doc
	s.files[doc.ID] = data
	s.logger.Info("document uploaded", zap.Int64("id", doc.ID), zap.String("format", doc.Format), zap.Int("size", len(data)))
	respondJSON(w, http.StatusCreated, doc)
}

// getDocument counts a view before answering.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, found := s.documents[id]
	if !found {
		respondError(w, http.StatusNotFound, "Document introuvable")
		return
	}
	d.ViewCount++
	s.documents[id] = d
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) downloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	d, found := s.documents[id]
	if found {
		d.DownloadCount++
		s.documents[id] = d
	}
	data, uploaded := s.files[id]
	s.mu.Unlock()
	if !found {
		respondError(w, http.StatusNotFound, "Document introuvable")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, d.FilePath))
	if uploaded {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%%PDF-1.4 %s", d.Title)
}

func (s *Server) reactionSummary(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.pathKind(w, r)
	if !ok {
		return
	}
	ids, err := parseIDs(r.URL.Query()["ids"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	viewer := emailFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reactionSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.summaryLocked(kind, id, viewer))
	}
	respondJSON(w, http.StatusOK, out)
}

// setReaction applies the server-side toggle: repeating the current reaction
// removes it.
func (s *Server) setReaction(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.pathKind(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		ReactionType string `json:"reactionType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reaction := domain.Reaction(req.ReactionType)
	if reaction != domain.ReactionPositive && reaction != domain.ReactionNegative {
		respondError(w, http.StatusBadRequest, "reactionType must be LIKE or DISLIKE")
		return
	}
	viewer := emailFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	votes := s.reactions[kind][id]
	if votes == nil {
		votes = make(map[string]domain.Reaction)
		s.reactions[kind][id] = votes
	}
	if votes[viewer] == reaction {
		delete(votes, viewer)
	} else {
		votes[viewer] = reaction
	}
	respondJSON(w, http.StatusOK, s.summaryLocked(kind, id, viewer))
}

func (s *Server) summaryLocked(kind api.SubjectKind, id int64, viewer string) reactionSummary {
	sum := reactionSummary{}
	subject := id
	if kind == api.KindBook {
		sum.BookID = &subject
	} else {
		sum.DocumentID = &subject
	}
	for email, reaction := range s.reactions[kind][id] {
		switch reaction {
		case domain.ReactionPositive:
			sum.LikeCount++
		case domain.ReactionNegative:
			sum.DislikeCount++
		}
		if email == viewer {
			mine := reaction
			sum.MyReaction = &mine
		}
	}
	return sum
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req api.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "order has no items")
		return
	}
	viewer := emailFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	order := api.Order{Status: "PENDING", CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	for _, item := range req.Items {
		b, found := s.books[item.BookID]
		if !found {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Livre %d introuvable", item.BookID))
			return
		}
		if item.Quantity <= 0 || item.Quantity > b.Stock {
			respondError(w, http.StatusConflict, fmt.Sprintf("Stock insuffisant pour %q", b.Title))
			return
		}
		line := float64(item.Quantity) * b.Price
		order.Items = append(order.Items, api.OrderItem{
			BookID:    b.ID,
			Title:     b.Title,
			Author:    b.Author,
			Quantity:  item.Quantity,
			UnitPrice: b.Price,
			LineTotal: line,
		})
		order.TotalAmount += line
	}
	for _, item := range req.Items {
		b := s.books[item.BookID]
		b.Stock -= item.Quantity
		s.books[item.BookID] = b
	}
	s.nextID++
	order.ID = s.nextID
	s.orders[viewer] = append(s.orders[viewer], order)
	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.orders[emailFromContext(r.Context())]
	if orders == nil {
		orders = []api.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) pathKind(w http.ResponseWriter, r *http.Request) (api.SubjectKind, bool) {
	kind := api.SubjectKind(chi.URLParam(r, "kind"))
	if kind != api.KindBook && kind != api.KindDocument {
		respondError(w, http.StatusNotFound, "unknown reaction subject")
		return "", false
	}
	return kind, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
