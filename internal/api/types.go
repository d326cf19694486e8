package api

import (
	"io"

	"github.com/nigersavoir/savoir-client/internal/domain"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Grade    string `json:"grade"`
	SchoolID *int64 `json:"schoolId,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// User converts the response into the profile cached with the session.
func (a AuthResponse) User() *domain.User {
	return &domain.User{DisplayName: a.Name, EmailAddress: a.Email, Role: a.Role}
}

type School struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	City   string `json:"city"`
	Region string `json:"region"`
	Type   string `json:"type"`
}

type UserMe struct {
	ID     int64   `json:"id"`
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	City   string  `json:"city"`
	Region string  `json:"region"`
	Grade  string  `json:"grade,omitempty"`
	Role   string  `json:"role,omitempty"`
	School *School `json:"school,omitempty"`
}

// DocumentUpload is the form sent by UploadDocument. Empty text fields are
// left out of the form.
type DocumentUpload struct {
	Title       string
	Description string
	Subject     string
	Level       string
	Type        string
	Year        string
	SchoolID    int64
	Filename    string
	Content     io.Reader
}

type Uploader struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Document struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	FilePath      string    `json:"filePath"`
	Subject       string    `json:"subject"`
	Level         string    `json:"level"`
	Type          string    `json:"type"`
	Year          string    `json:"year"`
	School        *School   `json:"school,omitempty"`
	UploadedBy    *Uploader `json:"uploadedBy,omitempty"`
	Format        string    `json:"format"`
	DownloadCount int       `json:"downloadCount"`
	ViewCount     int       `json:"viewCount"`
	UploadDate    string    `json:"uploadDate"`
}

type Book struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Description   string  `json:"description,omitempty"`
	Price         float64 `json:"price"`
	CoverImageURL string  `json:"coverImageUrl,omitempty"`
	Stock         int     `json:"stock"`
	Subject       string  `json:"subject,omitempty"`
	Level         string  `json:"level,omitempty"`
	School        *School `json:"school,omitempty"`
}

type OrderItemRequest struct {
	BookID   int64 `json:"bookId"`
	Quantity int   `json:"quantity"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

type OrderItem struct {
	BookID    int64   `json:"bookId"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

type Order struct {
	ID          int64       `json:"id"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
	CreatedAt   string      `json:"createdAt"`
	Items       []OrderItem `json:"items"`
}

// BookFilter narrows ListBooks. Zero values are omitted from the query.
type BookFilter struct {
	Query    string
	Subject  string
	Level    string
	SchoolID int64
	IDs      []int64
}

// DocumentFilter narrows SearchDocuments. Zero values are omitted from the query.
type DocumentFilter struct {
	Subject  string
	Level    string
	Type     string
	Year     string
	SchoolID int64
	Region   string
}

// Download is a fetched document file.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}
