// Package fakeapi is an in-memory stand-in for the platform API. It answers
// the same JSON shapes as the real server and is meant for tests and local
// development only.
package fakeapi

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"go.uber.org/zap"
)

type account struct {
	id       int64
	password string
	profile  api.UserMe
}

type failure struct {
	status  int
	message string
}

type Server struct {
	mu        sync.Mutex
	accounts  map[string]*account // email -> account
	tokens    map[string]string   // token -> email
	books     map[int64]api.Book
	documents map[int64]api.Document
	files     map[int64][]byte // uploaded document contents
	schools   []api.School
	reactions map[api.SubjectKind]map[int64]map[string]domain.Reaction // kind -> subject -> email -> reaction
	orders    map[string][]api.Order
	nextID    int64
	failNext  *failure
	logger    *zap.Logger
}

// New returns a server seeded with a small catalog.
func New(logger *zap.Logger) *Server {
	s := &Server{
		accounts:  make(map[string]*account),
		tokens:    make(map[string]string),
		books:     make(map[int64]api.Book),
		documents: make(map[int64]api.Document),
		files:     make(map[int64][]byte),
		reactions: map[api.SubjectKind]map[int64]map[string]domain.Reaction{
			api.KindBook:     {},
			api.KindDocument: {},
		},
		orders: make(map[string][]api.Order),
		nextID: 1000,
		logger: logger,
	}
	s.seed()
	return s
}

func (s *Server) seed() {
	lycee := api.School{ID: 1, Name: "Lycée Issa Korombé", City: "Niamey", Region: "Niamey", Type: "LYCEE"}
	s.schools = []api.School{
		lycee,
		{ID: 2, Name: "Université Abdou Moumouni", City: "Niamey", Region: "Niamey", Type: "UNIVERSITE"},
		{ID: 3, Name: "CEG 1 Zinder", City: "Zinder", Region: "Zinder", Type: "COLLEGE"},
	}
	for _, b := range []api.Book{
		{ID: 1, Title: "Mathématiques Terminale D", Author: "Collectif", Price: 4500, Stock: 12, Subject: "Mathématiques", Level: "Terminale"},
		{ID: 2, Title: "Physique-Chimie 1ère", Author: "A. Moussa", Price: 3800, Stock: 5, Subject: "Physique", Level: "1ère"},
		{ID: 3, Title: "Histoire du Niger", Author: "B. Issoufou", Price: 2500, Stock: 0, Subject: "Histoire", Level: "3ème"},
	} {
		s.books[b.ID] = b
	}
	for _, d := range []api.Document{
		{ID: 1, Title: "BAC 2023 Mathématiques", FilePath: "bac-2023-maths.pdf", Subject: "Mathématiques", Level: "Terminale", Type: "BACCALAUREAT", Year: "2023", School: &lycee, Format: "pdf"},
		{ID: 2, Title: "Devoir de physique", FilePath: "devoir-physique.pdf", Subject: "Physique", Level: "1ère", Type: "DEVOIR", Year: "2024", Format: "pdf"},
	} {
		s.documents[d.ID] = d
	}
}

// Handler returns the API routes, mounted at the root.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.authMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/register", s.register)
	})
	r.With(requireAuth).Get("/users/me", s.me)

	r.Get("/schools", s.listSchools)
	r.Get("/books", s.listBooks)
	r.Get("/books/{id}", s.getBook)
	r.Route("/documents", func(r chi.Router) {
		r.With(requireAuth, s.injectedFailure).Post("/", s.uploadDocument)
		r.Get("/search", s.searchDocuments)
		r.Get("/{id}", s.getDocument)
		r.Get("/download/{id}", s.downloadDocument)
	})

	r.Route("/reactions/{kind}", func(r chi.Router) {
		r.Get("/summary", s.reactionSummary)
		r.With(requireAuth, s.injectedFailure).Post("/{id}", s.setReaction)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(requireAuth)
		r.With(s.injectedFailure).Post("/", s.createOrder)
		r.Get("/mine", s.myOrders)
	})

	return r
}

// FailNextMutation makes the next reaction, order or upload request fail with status
// and message.
func (s *Server) FailNextMutation(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = &failure{status: status, message: message}
}

// AddUser registers an account directly and returns a token for it.
func (s *Server) AddUser(name, email, password, role string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addAccountLocked(name, email, password, role, api.RegisterRequest{})
	return s.issueTokenLocked(email)
}

func (s *Server) addAccountLocked(name, email, password, role string, req api.RegisterRequest) *account {
	s.nextID++
	a := &account{
		id:       s.nextID,
		password: password,
		profile: api.UserMe{
			ID:     s.nextID,
			Email:  email,
			Name:   name,
			City:   req.City,
			Region: req.Region,
			Grade:  req.Grade,
			Role:   role,
		},
	}
	if req.SchoolID != nil {
		for _, sc := range s.schools {
			if sc.ID == *req.SchoolID {
				school := sc
				a.profile.School = &school
			}
		}
	}
	s.accounts[email] = a
	return a
}

func (s *Server) issueTokenLocked(email string) string {
	token := uuid.NewString()
	s.tokens[token] = email
	return token
}
